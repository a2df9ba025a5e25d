package chain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videochain/internal/domain"
	"videochain/internal/progress"
	"videochain/internal/providers/video"
	"videochain/internal/storage"
)

var frameBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'f', 'r', 'a', 'm', 'e'}

type pollStep struct {
	status video.TaskStatus
	err    error
}

// fakeProvider hands out task ids in submit order and replays a poll script
// per segment. The last step of a script repeats once it is exhausted.
type fakeProvider struct {
	mu       sync.Mutex
	scripts  [][]pollStep
	submits  []video.SubmitRequest
	polls    map[string]int
	download error
}

func completedScript() []pollStep {
	return []pollStep{
		{status: video.TaskStatus{State: video.TaskQueued, RawState: "queued"}},
		{status: video.TaskStatus{State: video.TaskProcessing, RawState: "processing", Progress: 50}},
		{status: video.TaskStatus{State: video.TaskCompleted, RawState: "completed", Progress: 100, URL: "https://cdn.example/clip.mp4"}},
	}
}

func (p *fakeProvider) Submit(ctx context.Context, req video.SubmitRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits = append(p.submits, req)
	return fmt.Sprintf("task-%d", len(p.submits)-1), nil
}

func (p *fakeProvider) Poll(ctx context.Context, taskID string) (*video.TaskStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.polls == nil {
		p.polls = map[string]int{}
	}
	var idx int
	fmt.Sscanf(taskID, "task-%d", &idx)
	script := completedScript()
	if idx < len(p.scripts) {
		script = p.scripts[idx]
	}
	n := p.polls[taskID]
	p.polls[taskID] = n + 1
	if n >= len(script) {
		n = len(script) - 1
	}
	step := script[n]
	if step.err != nil {
		return nil, step.err
	}
	st := step.status
	return &st, nil
}

func (p *fakeProvider) Download(ctx context.Context, url, dest string) error {
	if p.download != nil {
		return p.download
	}
	return os.WriteFile(dest, []byte("clip from "+url), 0o644)
}

type fakeFrames struct {
	calls []string
	err   error
}

func (f *fakeFrames) ExtractLastFrame(ctx context.Context, path string) ([]byte, error) {
	f.calls = append(f.calls, filepath.Base(path))
	if f.err != nil {
		return nil, f.err
	}
	return frameBytes, nil
}

type fakeStitcher struct {
	inputs []string
	err    error
}

func (s *fakeStitcher) Concat(ctx context.Context, paths []string, output string) error {
	if s.err != nil {
		return s.err
	}
	for _, p := range paths {
		s.inputs = append(s.inputs, filepath.Base(p))
		if _, err := os.Stat(p); err != nil {
			return err
		}
	}
	return os.WriteFile(output, []byte("stitched"), 0o644)
}

type memRecords struct {
	mu         sync.Mutex
	next       int
	records    map[string]domain.VideoRecord
	inserted   []domain.VideoRecord
	deleted    []string
	failFinal  bool
	failInsert bool
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[string]domain.VideoRecord{}}
}

func (m *memRecords) Insert(ctx context.Context, rec *domain.VideoRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert && rec.IsIntermediate {
		return "", errors.New("db down")
	}
	if m.failFinal && !rec.IsIntermediate {
		return "", errors.New("db down")
	}
	m.next++
	id := fmt.Sprintf("rec-%d", m.next)
	r := *rec
	r.ID = id
	m.records[id] = r
	m.inserted = append(m.inserted, r)
	return id, nil
}

func (m *memRecords) DeleteMany(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
		m.deleted = append(m.deleted, id)
	}
	return nil
}

func (m *memRecords) ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoRecord, error) {
	return nil, nil
}

func (m *memRecords) count(intermediate bool) int {
	n := 0
	for _, r := range m.records {
		if r.IsIntermediate == intermediate {
			n++
		}
	}
	return n
}

type harness struct {
	orch     *Orchestrator
	provider *fakeProvider
	frames   *fakeFrames
	stitcher *fakeStitcher
	records  *memRecords
	store    *storage.FileStore
	events   []progress.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	h := &harness{
		provider: &fakeProvider{},
		frames:   &fakeFrames{},
		stitcher: &fakeStitcher{},
		records:  newMemRecords(),
		store:    store,
	}
	h.orch = h.build(t, nil)
	return h
}

func (h *harness) build(t *testing.T, publisher storage.Publisher) *Orchestrator {
	t.Helper()
	orch, err := New(Options{
		Provider:     h.provider,
		Frames:       h.frames,
		Stitcher:     h.stitcher,
		Records:      h.records,
		Store:        h.store,
		Publisher:    publisher,
		Sleep:        func(context.Context, time.Duration) error { return nil },
		NewSessionID: func() string { return "sess1" },
	})
	require.NoError(t, err)
	return orch
}

func (h *harness) reporter() *progress.Reporter {
	return progress.NewReporter(func(ev progress.Event) error {
		h.events = append(h.events, ev)
		return nil
	}, "en")
}

func (h *harness) run(req domain.GenerationRequest) (*Result, error) {
	return h.orch.Run(context.Background(), req, h.reporter())
}

func (h *harness) terminal() progress.Event {
	return h.events[len(h.events)-1]
}

func (h *harness) workspaceGone(t *testing.T) {
	t.Helper()
	_, err := os.Stat(filepath.Join(h.store.BasePath(), "temp_sess1"))
	assert.True(t, os.IsNotExist(err), "workspace must be removed, stat err = %v", err)
}

func request(model string, seconds int) domain.GenerationRequest {
	return domain.GenerationRequest{
		UserID:        "user-1",
		Prompt:        "a fox running through snow",
		Model:         model,
		TotalSeconds:  seconds,
		Aspect:        domain.AspectLandscape,
		PublicBaseURL: "http://localhost:8080",
	}
}

func TestShortChainSingleSegment(t *testing.T) {
	h := newHarness(t)

	res, err := h.run(request("veo-3", 5))
	require.NoError(t, err)

	require.Len(t, h.provider.submits, 1)
	assert.Empty(t, h.frames.calls, "no frame extraction for a single segment")
	assert.Equal(t, []string{"seg_0.mp4"}, h.stitcher.inputs)
	assert.Equal(t, 1, h.records.count(false))
	assert.Equal(t, 0, h.records.count(true))

	final := h.records.records[res.RecordID]
	assert.Equal(t, "a fox running through snow", final.Prompt)
	assert.Equal(t, "veo-3", final.Model)
	assert.Equal(t, 5, final.Duration)
	assert.False(t, final.IsIntermediate)
	assert.True(t, strings.HasPrefix(res.VideoURL, "http://localhost:8080/generated/veo_complete_"))
	assert.FileExists(t, res.LocalPath)

	done := h.terminal()
	assert.Equal(t, progress.KindDone, done.Kind)
	assert.Equal(t, res.VideoURL, done.URL)
	h.workspaceGone(t)
}

func TestSoraChainOfThreeSegments(t *testing.T) {
	h := newHarness(t)

	n, err := h.orch.IterationCount("sora-2", 32)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	res, err := h.run(request("sora-2", 32))
	require.NoError(t, err)

	require.Len(t, h.provider.submits, 3)
	assert.Equal(t, []string{"seg_0.mp4", "seg_1.mp4"}, h.frames.calls, "frames come from every segment but the last")
	assert.Equal(t, []string{"seg_0.mp4", "seg_1.mp4", "seg_2.mp4"}, h.stitcher.inputs)

	first := h.provider.submits[0].(video.SoraSubmit)
	assert.Equal(t, "a fox running through snow", first.Prompt)
	assert.Empty(t, first.Images)
	assert.Equal(t, "15", first.Seconds)
	assert.Equal(t, "1280x720", first.Size)
	for i := 1; i < 3; i++ {
		sub := h.provider.submits[i].(video.SoraSubmit)
		assert.True(t, strings.HasPrefix(sub.Prompt, "a fox running through snow. Continue the video sequence"), "segment %d prompt", i)
		assert.Equal(t, [][]byte{frameBytes}, sub.Images, "segment %d is seeded by the previous frame only", i)
	}

	var intermediates []string
	for _, r := range h.records.inserted {
		if r.IsIntermediate {
			intermediates = append(intermediates, r.ID)
			assert.Equal(t, "sess1", r.SessionID)
			assert.Contains(t, r.VideoURL, "/generated/temp_sess1/seg_")
		}
	}
	assert.Len(t, intermediates, 3)
	assert.ElementsMatch(t, intermediates, h.records.deleted)
	assert.Equal(t, 0, h.records.count(true))
	assert.Equal(t, 1, h.records.count(false))

	require.Len(t, res.Segments, 3)
	for i, seg := range res.Segments {
		assert.Equal(t, domain.SegmentCompleted, seg.Status)
		assert.Equal(t, fmt.Sprintf("task-%d", i), seg.TaskID)
	}
	h.workspaceGone(t)
}

func TestProgressIsMonotonicAndHundredOnlyAtDone(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(request("sora-2", 45))
	require.NoError(t, err)

	prev := 0.0
	var statuses []string
	for i, ev := range h.events {
		assert.GreaterOrEqual(t, ev.Percent, prev, "event %d", i)
		prev = ev.Percent
		if ev.Kind != progress.KindDone {
			assert.Less(t, ev.Percent, float64(100), "event %d", i)
		}
		if ev.Kind == progress.KindStatus {
			statuses = append(statuses, ev.Text)
		}
	}
	assert.Equal(t, float64(100), h.terminal().Percent)
	assert.Contains(t, statuses, "Status: processing (16.6%)\n")
	assert.Contains(t, statuses, "Status: completed (66.6%)\n")
}

func TestSegmentFailureKeepsEarlierIntermediates(t *testing.T) {
	h := newHarness(t)
	h.provider.scripts = [][]pollStep{
		completedScript(),
		{{status: video.TaskStatus{State: video.TaskFailed, RawState: "failed", FailureReason: "content policy"}}},
	}

	res, err := h.run(request("sora-2", 45))
	require.ErrorIs(t, err, domain.ErrSegmentGenerationFailed)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "content policy")

	require.Len(t, h.provider.submits, 2, "failed segments are not retried")
	assert.Equal(t, 1, h.records.count(true), "segment 0 record stays for diagnosis")
	assert.Equal(t, 0, h.records.count(false))
	assert.Empty(t, h.records.deleted)
	assert.Empty(t, h.stitcher.inputs)

	fail := h.terminal()
	assert.Equal(t, progress.KindError, fail.Kind)
	assert.True(t, strings.HasPrefix(fail.Text, "\n\nError: segment generation failed"))
	h.workspaceGone(t)
}

func TestPollingTimeout(t *testing.T) {
	h := newHarness(t)
	h.provider.scripts = [][]pollStep{
		{{status: video.TaskStatus{State: video.TaskProcessing, RawState: "processing", Progress: 10}}},
	}

	_, err := h.run(request("veo-3", 5))
	require.ErrorIs(t, err, domain.ErrSegmentTimeout)
	assert.Equal(t, 120, h.provider.polls["task-0"])
	assert.Equal(t, 0, h.records.count(false))
	assert.Equal(t, 0, h.records.count(true))
	assert.Equal(t, progress.KindError, h.terminal().Kind)
	h.workspaceGone(t)
}

func TestUnreachablePollConsumesAttempt(t *testing.T) {
	h := newHarness(t)
	h.provider.scripts = [][]pollStep{{
		{err: fmt.Errorf("%w: connection reset", domain.ErrProviderUnreachable)},
		{err: fmt.Errorf("%w: status 502", domain.ErrProviderUnreachable)},
		{status: video.TaskStatus{State: video.TaskCompleted, Progress: 100, URL: "https://cdn.example/a.mp4"}},
	}}

	_, err := h.run(request("veo-3", 5))
	require.NoError(t, err)
	assert.Equal(t, 3, h.provider.polls["task-0"])
}

func TestVeoReferenceSelectsFrameLockedModel(t *testing.T) {
	h := newHarness(t)
	req := request("veo-3-fast", 10)
	req.Aspect = domain.AspectPortrait

	res, err := h.run(req)
	require.NoError(t, err)
	require.Len(t, h.provider.submits, 2)

	first := h.provider.submits[0].(video.VeoSubmit)
	second := h.provider.submits[1].(video.VeoSubmit)
	assert.Equal(t, "veo-3-fast", first.Model)
	assert.Empty(t, first.References)
	assert.Equal(t, "veo-3-fast-fl", second.Model)
	assert.Equal(t, [][]byte{frameBytes}, second.References)
	assert.Equal(t, "veo-3-fast-fl", res.Segments[1].Model)
}

func TestUserReferenceImageSeedsFirstSegment(t *testing.T) {
	h := newHarness(t)
	req := request("veo-3", 5)
	req.ReferenceImages = [][]byte{[]byte("user image")}

	_, err := h.run(req)
	require.NoError(t, err)
	sub := h.provider.submits[0].(video.VeoSubmit)
	assert.Equal(t, "veo-3-landscape-fl", sub.Model)
	assert.Equal(t, req.ReferenceImages, sub.References)
}

func TestFatalStepsConvertToTerminalFailure(t *testing.T) {
	cases := map[string]struct {
		setup func(h *harness)
		want  error
	}{
		"download": {
			setup: func(h *harness) { h.provider.download = errors.New("eof") },
			want:  domain.ErrDownloadFailed,
		},
		"frame": {
			setup: func(h *harness) { h.frames.err = errors.New("corrupt") },
			want:  domain.ErrFrameExtractionFailed,
		},
		"stitch": {
			setup: func(h *harness) { h.stitcher.err = errors.New("exit status 1") },
			want:  domain.ErrStitchFailed,
		},
		"final record": {
			setup: func(h *harness) { h.records.failFinal = true },
			want:  domain.ErrPersistFailed,
		},
		"completed without url": {
			setup: func(h *harness) {
				h.provider.scripts = [][]pollStep{{{status: video.TaskStatus{State: video.TaskCompleted, Progress: 100}}}}
			},
			want: domain.ErrDownloadFailed,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			tc.setup(h)
			_, err := h.run(request("veo-3", 10))
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, progress.KindError, h.terminal().Kind)
			assert.Equal(t, 0, h.records.count(false))
			h.workspaceGone(t)

			finals, globErr := filepath.Glob(filepath.Join(h.store.BasePath(), "veo_complete_*.mp4"))
			require.NoError(t, globErr)
			assert.Empty(t, finals)
		})
	}
}

func TestIntermediateInsertFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.records.failInsert = true

	_, err := h.run(request("veo-3", 10))
	require.NoError(t, err)
	assert.Equal(t, 1, h.records.count(false))
	assert.Empty(t, h.records.deleted)
}

func TestCancellationIsCheckedBetweenSegments(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.provider.scripts = nil
	h.frames = &fakeFrames{}
	orch, err := New(Options{
		Provider: h.provider,
		Frames: frameFunc(func(ctx context.Context, path string) ([]byte, error) {
			cancel()
			return frameBytes, nil
		}),
		Stitcher:     h.stitcher,
		Records:      h.records,
		Store:        h.store,
		Sleep:        func(context.Context, time.Duration) error { return nil },
		NewSessionID: func() string { return "sess1" },
	})
	require.NoError(t, err)

	_, err = orch.Run(ctx, request("veo-3", 15), h.reporter())
	require.ErrorIs(t, err, domain.ErrChainCanceled)
	assert.Len(t, h.provider.submits, 1, "the running segment finishes, the next one never starts")
	assert.Equal(t, 1, h.records.count(true))
	h.workspaceGone(t)
}

type frameFunc func(ctx context.Context, path string) ([]byte, error)

func (f frameFunc) ExtractLastFrame(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

type fakePublisher struct {
	objects []string
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.objects = append(p.objects, objectName)
	return "https://bucket.example/videos/" + objectName + "?sig=1", nil
}

func TestPublisherURLWinsWhenUploadSucceeds(t *testing.T) {
	h := newHarness(t)
	pub := &fakePublisher{}
	h.orch = h.build(t, pub)

	res, err := h.run(request("veo-3", 5))
	require.NoError(t, err)
	require.Len(t, pub.objects, 1)
	assert.True(t, strings.HasPrefix(res.VideoURL, "https://bucket.example/videos/veo_complete_"))
	assert.Equal(t, res.VideoURL, h.records.records[res.RecordID].VideoURL)

	h2 := newHarness(t)
	h2.orch = h2.build(t, &fakePublisher{err: errors.New("denied")})
	res2, err := h2.run(request("veo-3", 5))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res2.VideoURL, "http://localhost:8080/generated/"))
}

func TestRejectsUnknownModelAndEmptyPrompt(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(request("dall-e-3", 10))
	assert.ErrorIs(t, err, domain.ErrUnsupportedModel)
	assert.Equal(t, progress.KindError, h.terminal().Kind)

	req := request("sora-2", 10)
	req.Prompt = "  "
	_, err = h.run(req)
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)
	assert.Empty(t, h.provider.submits)
}
