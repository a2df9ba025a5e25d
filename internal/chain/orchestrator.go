// Package chain drives multi-segment video generation: each segment is seeded
// with the last frame of the previous one and the clips are stitched into a
// single video at the end.
package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"videochain/internal/domain"
	"videochain/internal/infra"
	"videochain/internal/progress"
	"videochain/internal/providers/video"
	"videochain/internal/storage"
)

const instrumentationName = "videochain/internal/chain"

// Provider is the slice of the provider API the orchestrator needs.
type Provider interface {
	Submit(ctx context.Context, req video.SubmitRequest) (string, error)
	Poll(ctx context.Context, taskID string) (*video.TaskStatus, error)
	Download(ctx context.Context, resultURL, dest string) error
}

// FrameExtractor returns a still near the end of a local clip.
type FrameExtractor interface {
	ExtractLastFrame(ctx context.Context, path string) ([]byte, error)
}

// Stitcher joins clips without re-encoding.
type Stitcher interface {
	Concat(ctx context.Context, paths []string, output string) error
}

// SleepFunc waits between poll attempts.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options wires the orchestrator collaborators. Publisher, Sleep, Logger,
// Tracer, Meter and NewSessionID are optional.
type Options struct {
	Provider     Provider
	Frames       FrameExtractor
	Stitcher     Stitcher
	Records      domain.VideoRecordRepository
	Store        *storage.FileStore
	Publisher    storage.Publisher
	Profiles     video.Profiles
	Sleep        SleepFunc
	Logger       *infra.Logger
	Tracer       trace.Tracer
	Meter        metric.Meter
	NewSessionID func() string
}

// Orchestrator runs chains. It is safe for concurrent use; every run owns its
// workspace and session id.
type Orchestrator struct {
	provider  Provider
	frames    FrameExtractor
	stitcher  Stitcher
	records   domain.VideoRecordRepository
	store     *storage.FileStore
	publisher storage.Publisher
	profiles  video.Profiles
	sleep     SleepFunc
	logger    zerolog.Logger
	tracer    trace.Tracer
	sessionID func() string

	runs     metric.Int64Counter
	segments metric.Int64Counter
}

// Result describes a finished chain.
type Result struct {
	SessionID string
	RecordID  string
	VideoURL  string
	LocalPath string
	Family    video.Family
	Segments  []domain.Segment
}

// New validates opts and fills defaults.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Provider == nil:
		return nil, errors.New("chain: provider is required")
	case opts.Frames == nil:
		return nil, errors.New("chain: frame extractor is required")
	case opts.Stitcher == nil:
		return nil, errors.New("chain: stitcher is required")
	case opts.Records == nil:
		return nil, errors.New("chain: record repository is required")
	case opts.Store == nil:
		return nil, errors.New("chain: file store is required")
	}
	o := &Orchestrator{
		provider:  opts.Provider,
		frames:    opts.Frames,
		stitcher:  opts.Stitcher,
		records:   opts.Records,
		store:     opts.Store,
		publisher: opts.Publisher,
		profiles:  opts.Profiles,
		sleep:     opts.Sleep,
		tracer:    opts.Tracer,
		sessionID: opts.NewSessionID,
	}
	if o.profiles == nil {
		o.profiles = video.DefaultProfiles()
	}
	if o.sleep == nil {
		o.sleep = Sleep
	}
	if opts.Logger != nil {
		o.logger = *opts.Logger
	} else {
		o.logger = zerolog.New(io.Discard)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	if o.sessionID == nil {
		o.sessionID = uuid.NewString
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	var err error
	if o.runs, err = meter.Int64Counter("chain.runs", metric.WithDescription("Finished chain runs by outcome")); err != nil {
		return nil, fmt.Errorf("chain: runs counter: %w", err)
	}
	if o.segments, err = meter.Int64Counter("chain.segments", metric.WithDescription("Segments generated")); err != nil {
		return nil, fmt.Errorf("chain: segments counter: %w", err)
	}
	return o, nil
}

// IterationCount returns how many segments a request for model and total
// seconds produces.
func (o *Orchestrator) IterationCount(model string, totalSeconds int) (int, error) {
	profile, err := o.profileFor(model)
	if err != nil {
		return 0, err
	}
	return profile.IterationCount(totalSeconds), nil
}

func (o *Orchestrator) profileFor(model string) (video.Profile, error) {
	family, ok := video.ClassifyModel(model)
	if !ok {
		return video.Profile{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedModel, model)
	}
	profile, ok := o.profiles.For(family)
	if !ok {
		return video.Profile{}, fmt.Errorf("%w: no profile for %s", domain.ErrUnsupportedModel, family)
	}
	return profile, nil
}

// Run executes one chain and reports through rep. Every outcome ends in
// exactly one terminal event; the error is also returned for the caller.
//
// Cancelling ctx stops the chain between segments only. In-flight provider
// calls run on a context detached from ctx.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest, rep *progress.Reporter) (*Result, error) {
	if rep == nil {
		rep = progress.NewReporter(nil, req.Locale)
	}
	res, err := o.run(ctx, req, rep)
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
		if errors.Is(err, domain.ErrChainCanceled) {
			outcome = "canceled"
		}
		rep.Fail(err)
	} else {
		rep.Done(res.VideoURL)
	}
	o.runs.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, req domain.GenerationRequest, rep *progress.Reporter) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrInvalidPrompt
	}
	profile, err := o.profileFor(req.Model)
	if err != nil {
		return nil, err
	}
	total := req.TotalSeconds
	if total < 1 {
		total = profile.MinimumSeconds
	}
	n := profile.IterationCount(total)
	sessionID := o.sessionID()
	log := o.logger.With().Str("session_id", sessionID).Str("family", string(profile.Family)).Logger()

	// Provider work must survive the caller going away; cancellation is
	// observed through ctx between segments.
	work := context.WithoutCancel(ctx)
	work, span := o.tracer.Start(work, "chain.Run", trace.WithAttributes(
		attribute.String("chain.session_id", sessionID),
		attribute.String("chain.model", req.Model),
		attribute.Int("chain.seconds", total),
		attribute.Int("chain.iterations", n),
	))
	defer span.End()

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Msg("chain: failed")
		return nil, err
	}

	ws, err := o.store.NewWorkspace(sessionID)
	if err != nil {
		return fail(fmt.Errorf("chain: workspace: %w", err))
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			log.Warn().Err(err).Str("dir", ws.Dir).Msg("chain: workspace cleanup failed")
		}
	}()

	log.Info().Int("iterations", n).Int("seconds", total).Msg("chain: started")
	rep.Note(progress.NoteStarting, profile.Family, total, n)
	if req.Aspect == domain.AspectSquare && profile.Family == video.FamilyVeo {
		rep.Note(progress.NoteAspectSquare)
	}

	fast := video.IsFastModel(req.Model)
	seed := req.ReferenceImages
	var (
		paths           []string
		intermediateIDs []string
		segments        []domain.Segment
	)
	for i := 0; i < n; i++ {
		if i > 0 && ctx.Err() != nil {
			return fail(fmt.Errorf("%w after %d of %d segments", domain.ErrChainCanceled, i, n))
		}
		rep.Note(progress.NoteSegment, i+1, n)

		seg := domain.Segment{
			Index:           i,
			Prompt:          video.SegmentPrompt(profile, req.Prompt, i),
			ReferenceImages: seed,
		}
		if err := o.generateSegment(work, profile, req, fast, n, ws, &seg, rep); err != nil {
			segments = append(segments, seg)
			return fail(err)
		}
		segments = append(segments, seg)
		paths = append(paths, seg.LocalPath)
		o.segments.Add(work, 1, metric.WithAttributes(attribute.String("family", string(profile.Family))))

		name := fmt.Sprintf("seg_%d.mp4", i)
		id, err := o.records.Insert(work, &domain.VideoRecord{
			UserID:         req.UserID,
			Prompt:         seg.Prompt,
			Model:          seg.Model,
			VideoURL:       storage.PublicURL(req.PublicBaseURL, ws.Key(name)),
			IsIntermediate: true,
			SessionID:      sessionID,
			Duration:       profile.SegmentSeconds,
		})
		if err != nil {
			log.Warn().Err(err).Int("segment", i).Msg("chain: intermediate record insert failed")
		} else {
			intermediateIDs = append(intermediateIDs, id)
		}
		rep.Note(progress.NoteSaved, i+1)

		if i < n-1 {
			rep.Note(progress.NoteExtracting)
			frame, err := o.frames.ExtractLastFrame(work, seg.LocalPath)
			if err != nil {
				return fail(wrapAs(err, domain.ErrFrameExtractionFailed, "segment %d", i+1))
			}
			if _, err := ws.Write(work, fmt.Sprintf("frame_%d.jpg", i), frame); err != nil {
				log.Warn().Err(err).Int("segment", i).Msg("chain: keep continuity frame failed")
			}
			seed = [][]byte{frame}
		}
	}

	finalKey := o.store.FinalKey(string(profile.Family))
	finalPath := o.store.Path(finalKey)
	rep.Note(progress.NoteStitching, len(paths))
	if err := o.stitcher.Concat(work, paths, finalPath); err != nil {
		return fail(wrapAs(err, domain.ErrStitchFailed, "%d segments", len(paths)))
	}
	rep.Note(progress.NoteFinalSaved)

	videoURL := storage.PublicURL(req.PublicBaseURL, finalKey)
	if o.publisher != nil {
		signed, err := o.publisher.Publish(work, finalPath, finalKey)
		if err != nil {
			log.Warn().Err(err).Msg("chain: object storage publish failed, serving local copy")
		} else {
			videoURL = signed
			rep.Note(progress.NotePublished)
		}
	}

	recordID, err := o.records.Insert(work, &domain.VideoRecord{
		UserID:    req.UserID,
		Prompt:    req.Prompt,
		Model:     req.Model,
		VideoURL:  videoURL,
		SessionID: sessionID,
		Duration:  total,
	})
	if err != nil {
		if rmErr := os.Remove(finalPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Msg("chain: remove unrecorded output failed")
		}
		return fail(wrapAs(err, domain.ErrPersistFailed, "final record"))
	}

	if len(intermediateIDs) > 0 {
		if err := o.records.DeleteMany(work, intermediateIDs); err != nil {
			log.Warn().Err(err).Int("count", len(intermediateIDs)).Msg("chain: intermediate cleanup failed")
		} else {
			rep.Note(progress.NoteCleanedUp, len(intermediateIDs))
		}
	}

	span.SetStatus(codes.Ok, "")
	log.Info().Str("record_id", recordID).Str("url", videoURL).Msg("chain: completed")
	return &Result{
		SessionID: sessionID,
		RecordID:  recordID,
		VideoURL:  videoURL,
		LocalPath: finalPath,
		Family:    profile.Family,
		Segments:  segments,
	}, nil
}

// generateSegment submits, polls and downloads one segment into ws.
func (o *Orchestrator) generateSegment(ctx context.Context, profile video.Profile, req domain.GenerationRequest, fast bool, n int, ws *storage.Workspace, seg *domain.Segment, rep *progress.Reporter) (err error) {
	ctx, span := o.tracer.Start(ctx, "chain.segment", trace.WithAttributes(attribute.Int("chain.segment", seg.Index)))
	defer func() {
		if err != nil {
			seg.Status = domain.SegmentFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resolution := video.Resolve(req.Model, req.Aspect, fast, len(seg.ReferenceImages) > 0)
	seg.Model = resolution.Model
	span.SetAttributes(attribute.String("chain.provider_model", resolution.Model))

	submit, err := video.BuildSubmit(profile, video.SegmentInput{
		Index:        seg.Index,
		Prompt:       seg.Prompt,
		Resolution:   resolution,
		Aspect:       req.Aspect,
		TotalSeconds: req.TotalSeconds,
		References:   seg.ReferenceImages,
	})
	if err != nil {
		return err
	}

	rep.Note(progress.NoteSubmitting, seg.Index+1)
	taskID, err := o.provider.Submit(ctx, submit)
	if err != nil {
		return err
	}
	seg.TaskID = taskID
	seg.Status = domain.SegmentSubmitted
	rep.Note(progress.NoteTaskCreated, taskID)

	status, err := o.awaitSegment(ctx, profile, n, seg, rep)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("seg_%d.mp4", seg.Index)
	dest := ws.Path(name)
	rep.Note(progress.NoteDownloading, seg.Index+1)
	if err := o.provider.Download(ctx, status.URL, dest); err != nil {
		return wrapAs(err, domain.ErrDownloadFailed, "segment %d", seg.Index+1)
	}
	seg.LocalPath = dest
	seg.Status = domain.SegmentCompleted
	return nil
}

// awaitSegment polls until the task completes, fails or runs out of attempts.
// Unreachable polls consume an attempt and polling continues.
func (o *Orchestrator) awaitSegment(ctx context.Context, profile video.Profile, n int, seg *domain.Segment, rep *progress.Reporter) (*video.TaskStatus, error) {
	seg.Status = domain.SegmentPolling
	for attempt := 1; attempt <= profile.MaxPollAttempts; attempt++ {
		if err := o.sleep(ctx, profile.PollInterval); err != nil {
			return nil, err
		}
		status, err := o.provider.Poll(ctx, seg.TaskID)
		if err != nil {
			if errors.Is(err, domain.ErrProviderUnreachable) {
				o.logger.Warn().Err(err).Str("task_id", seg.TaskID).Int("attempt", attempt).Msg("chain: poll failed")
				continue
			}
			return nil, err
		}

		state := status.RawState
		if state == "" {
			state = string(status.State)
		}
		rep.Status(state, (float64(seg.Index*100)+status.Progress)/float64(n))

		switch status.State {
		case video.TaskCompleted:
			if strings.TrimSpace(status.URL) == "" {
				return nil, fmt.Errorf("%w: segment %d completed without a url", domain.ErrDownloadFailed, seg.Index+1)
			}
			return status, nil
		case video.TaskFailed:
			return nil, fmt.Errorf("%w: segment %d: %s", domain.ErrSegmentGenerationFailed, seg.Index+1, status.FailureReason)
		}
	}
	return nil, fmt.Errorf("%w %d after %s", domain.ErrSegmentTimeout, seg.Index+1, profile.MaxWait())
}

// wrapAs tags err with sentinel unless it already carries it.
func wrapAs(err, sentinel error, format string, args ...any) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", sentinel, fmt.Sprintf(format, args...), err)
}
