package domain

import "context"

// VideoRecordRepository persists generated video records. Implementations must
// tolerate concurrent inserts and deletes from independent sessions.
type VideoRecordRepository interface {
	Insert(ctx context.Context, record *VideoRecord) (string, error)
	DeleteMany(ctx context.Context, ids []string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]VideoRecord, error)
}

// ChainJobRepository backs the queued chain flow.
type ChainJobRepository interface {
	Enqueue(ctx context.Context, userID string, payload []byte) (*ChainJob, error)
	Claim(ctx context.Context) (*ChainJob, error)
	UpdateProgress(ctx context.Context, jobID string, progress float64, message string) error
	Complete(ctx context.Context, jobID, videoURL string) error
	Fail(ctx context.Context, jobID, reason string) error
	GetForUser(ctx context.Context, jobID, userID string) (*ChainJob, error)
}
