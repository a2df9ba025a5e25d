package progress

import (
	"context"
	"strings"

	"videochain/internal/domain"
)

// JobSink records events of a queued chain on its job row. Terminal state is
// written by the worker from the run result, not from events.
type JobSink struct {
	ctx   context.Context
	jobs  domain.ChainJobRepository
	jobID string
}

// NewJobSink binds a sink to one job.
func NewJobSink(ctx context.Context, jobs domain.ChainJobRepository, jobID string) *JobSink {
	return &JobSink{ctx: ctx, jobs: jobs, jobID: jobID}
}

// Emit implements EmitFunc.
func (s *JobSink) Emit(ev Event) error {
	if ev.Kind == KindDone || ev.Kind == KindError {
		return nil
	}
	msg := strings.TrimSpace(ev.Text)
	if msg == "" {
		return nil
	}
	return s.jobs.UpdateProgress(s.ctx, s.jobID, ev.Percent, msg)
}
