package repo

import (
	"context"
	"fmt"

	"videochain/internal/domain"
	"videochain/internal/infra"
	"videochain/internal/sqlinline"
)

// VideoRecordRepositoryPG implements domain.VideoRecordRepository on
// PostgreSQL through the marker-checked SQL runner.
type VideoRecordRepositoryPG struct {
	db infra.SQLExecutor
}

// NewVideoRecordRepository constructs a repository on db.
func NewVideoRecordRepository(db infra.SQLExecutor) *VideoRecordRepositoryPG {
	return &VideoRecordRepositoryPG{db: db}
}

// Insert stores rec and fills its generated id and timestamp.
func (r *VideoRecordRepositoryPG) Insert(ctx context.Context, rec *domain.VideoRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("insert video record: nil record")
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertVideoRecord,
		rec.UserID,
		rec.Prompt,
		rec.Model,
		rec.VideoURL,
		rec.IsIntermediate,
		rec.SessionID,
		rec.Duration,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return "", fmt.Errorf("insert video record: %w", err)
	}
	return rec.ID, nil
}

// DeleteMany removes the given records. Unknown ids are ignored.
func (r *VideoRecordRepositoryPG) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, sqlinline.QDeleteVideoRecords, ids); err != nil {
		return fmt.Errorf("delete video records: %w", err)
	}
	return nil
}

// ListByUser returns the newest final records of a user.
func (r *VideoRecordRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, sqlinline.QListVideoRecordsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list video records: %w", err)
	}
	defer rows.Close()

	var out []domain.VideoRecord
	for rows.Next() {
		var rec domain.VideoRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Prompt,
			&rec.Model,
			&rec.VideoURL,
			&rec.CreatedAt,
			&rec.IsIntermediate,
			&rec.SessionID,
			&rec.Duration,
		); err != nil {
			return nil, fmt.Errorf("scan video record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.VideoRecordRepository = (*VideoRecordRepositoryPG)(nil)
