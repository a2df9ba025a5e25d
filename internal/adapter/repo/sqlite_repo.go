package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"videochain/internal/domain"
)

// Fixed width keeps lexical order equal to time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
create table if not exists generated_videos (
    id text primary key,
    user_id text not null,
    prompt text not null,
    model text not null,
    video_url text not null,
    created_at text not null,
    is_intermediate integer not null default 0,
    session_id text,
    duration integer
);
create index if not exists generated_videos_user_idx on generated_videos (user_id, created_at);
`

// SQLiteVideoRecordRepository keeps video records in a local SQLite file. It
// backs single-node deployments where DATABASE_URL starts with "sqlite:".
type SQLiteVideoRecordRepository struct {
	db *sql.DB
}

// OpenSQLiteVideoRecords opens (or creates) the database at path.
func OpenSQLiteVideoRecords(ctx context.Context, path string) (*SQLiteVideoRecordRepository, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "sqlite:")
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &SQLiteVideoRecordRepository{db: db}, nil
}

// Close releases the database handle.
func (r *SQLiteVideoRecordRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteVideoRecordRepository) Insert(ctx context.Context, rec *domain.VideoRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("insert video record: nil record")
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
insert into generated_videos (id, user_id, prompt, model, video_url, created_at, is_intermediate, session_id, duration)
values (?, ?, ?, ?, ?, ?, ?, nullif(?, ''), nullif(?, 0));
`, rec.ID, rec.UserID, rec.Prompt, rec.Model, rec.VideoURL, rec.CreatedAt.Format(sqliteTimeLayout), rec.IsIntermediate, rec.SessionID, rec.Duration)
	if err != nil {
		return "", fmt.Errorf("insert video record: %w", err)
	}
	return rec.ID, nil
}

func (r *SQLiteVideoRecordRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, "delete from generated_videos where id in ("+placeholders+");", args...); err != nil {
		return fmt.Errorf("delete video records: %w", err)
	}
	return nil
}

func (r *SQLiteVideoRecordRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
select id, user_id, prompt, model, video_url, created_at, is_intermediate, coalesce(session_id, ''), coalesce(duration, 0)
from generated_videos
where user_id = ? and is_intermediate = 0
order by created_at desc, rowid desc
limit ?;
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list video records: %w", err)
	}
	defer rows.Close()

	var out []domain.VideoRecord
	for rows.Next() {
		var (
			rec     domain.VideoRecord
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Prompt, &rec.Model, &rec.VideoURL, &created, &rec.IsIntermediate, &rec.SessionID, &rec.Duration); err != nil {
			return nil, fmt.Errorf("scan video record: %w", err)
		}
		if ts, err := time.Parse(sqliteTimeLayout, created); err == nil {
			rec.CreatedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ domain.VideoRecordRepository = (*SQLiteVideoRecordRepository)(nil)
