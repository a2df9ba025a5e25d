package repo

import (
	"context"
	"fmt"

	"videochain/internal/domain"
	"videochain/internal/infra"
	"videochain/internal/sqlinline"
)

// ChainJobRepositoryPG implements domain.ChainJobRepository.
type ChainJobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewChainJobRepository creates a new job repository backed by PostgreSQL.
func NewChainJobRepository(db infra.SQLExecutor) *ChainJobRepositoryPG {
	return &ChainJobRepositoryPG{db: db}
}

// Enqueue inserts a QUEUED job carrying payload.
func (r *ChainJobRepositoryPG) Enqueue(ctx context.Context, userID string, payload []byte) (*domain.ChainJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, sqlinline.QEnqueueChainJob, userID, string(payload)))
	if err != nil {
		return nil, fmt.Errorf("enqueue chain job: %w", err)
	}
	return job, nil
}

// Claim moves the oldest QUEUED job to RUNNING. It returns domain.ErrNotFound
// when the queue is empty.
func (r *ChainJobRepositoryPG) Claim(ctx context.Context) (*domain.ChainJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, sqlinline.QWorkerClaimChainJob))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("claim chain job: %w", err)
	}
	return job, nil
}

// UpdateProgress records the latest progress line. Progress never moves back.
func (r *ChainJobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress float64, message string) error {
	_, err := r.db.Exec(ctx, sqlinline.QUpdateChainJobProgress, jobID, progress, message)
	return err
}

// Complete marks the job SUCCEEDED with the final video location.
func (r *ChainJobRepositoryPG) Complete(ctx context.Context, jobID, videoURL string) error {
	_, err := r.db.Exec(ctx, sqlinline.QCompleteChainJob, jobID, videoURL)
	return err
}

// Fail marks the job FAILED.
func (r *ChainJobRepositoryPG) Fail(ctx context.Context, jobID, reason string) error {
	_, err := r.db.Exec(ctx, sqlinline.QFailChainJob, jobID, reason)
	return err
}

// GetForUser fetches a job owned by userID.
func (r *ChainJobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.ChainJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, sqlinline.QSelectChainJobForUser, jobID, userID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ChainJob, error) {
	var (
		job     domain.ChainJob
		status  string
		payload []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&payload,
		&job.Progress,
		&job.LastMessage,
		&job.VideoURL,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.PayloadJSON = append([]byte(nil), payload...)
	return &job, nil
}

var _ domain.ChainJobRepository = (*ChainJobRepositoryPG)(nil)
