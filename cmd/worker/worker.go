package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"videochain/internal/chain"
	"videochain/internal/domain"
	"videochain/internal/domain/jsoncfg"
	"videochain/internal/infra"
	"videochain/internal/progress"
)

const defaultPollInterval = 2 * time.Second

type chainRunner interface {
	Run(ctx context.Context, req domain.GenerationRequest, rep *progress.Reporter) (*chain.Result, error)
}

type jobWorker struct {
	ctx          context.Context
	jobs         domain.ChainJobRepository
	chain        chainRunner
	logger       infra.Logger
	pollInterval time.Duration
	sleep        chain.SleepFunc
}

// Run claims queued chains one at a time until the context is cancelled.
func (w *jobWorker) Run() error {
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.sleep == nil {
		w.sleep = chain.Sleep
	}
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("worker: started")
	for {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		job, err := w.jobs.Claim(w.ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			if err := w.sleep(w.ctx, w.pollInterval); err != nil {
				return err
			}
			continue
		}
		w.handleJob(job)
	}
}

func (w *jobWorker) handleJob(job *domain.ChainJob) {
	log := w.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
	log.Info().Msg("worker: picked job")

	// Terminal writes must land even while shutting down.
	bg := context.WithoutCancel(w.ctx)
	res, err := w.process(job)
	if err != nil {
		log.Error().Err(err).Msg("worker: job failed")
		if ferr := w.jobs.Fail(bg, job.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("worker: mark failed")
		}
		return
	}
	if cerr := w.jobs.Complete(bg, job.ID, res.VideoURL); cerr != nil {
		log.Error().Err(cerr).Msg("worker: mark succeeded")
		return
	}
	log.Info().Str("video_url", res.VideoURL).Msg("worker: job succeeded")
}

func (w *jobWorker) process(job *domain.ChainJob) (*chain.Result, error) {
	var payload jsoncfg.ChainPayload
	if err := json.Unmarshal(job.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode chain payload: %w", err)
	}
	payload.Normalize("")
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPrompt, err)
	}
	req, err := payload.GenerationRequest(job.UserID)
	if err != nil {
		return nil, err
	}
	sink := progress.NewJobSink(context.WithoutCancel(w.ctx), w.jobs, job.ID)
	rep := progress.NewReporter(sink.Emit, req.Locale)
	res, err := w.chain.Run(w.ctx, req, rep)
	if detached, emitErr := rep.Detached(); detached {
		w.logger.Warn().Err(emitErr).Str("job_id", job.ID).Msg("worker: progress updates stopped early")
	}
	return res, err
}
