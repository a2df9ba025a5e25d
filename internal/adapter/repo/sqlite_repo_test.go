package repo

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"videochain/internal/domain"
)

func openSQLite(t *testing.T) *SQLiteVideoRecordRepository {
	t.Helper()
	repo, err := OpenSQLiteVideoRecords(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "videos.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)

	var intermediate []string
	for i := 0; i < 2; i++ {
		id, err := repo.Insert(ctx, &domain.VideoRecord{
			UserID:         "u1",
			Prompt:         "p",
			Model:          "sora-2",
			VideoURL:       "http://h/generated/temp_s/seg.mp4",
			IsIntermediate: true,
			SessionID:      "s",
			Duration:       15,
		})
		if err != nil {
			t.Fatalf("insert intermediate: %v", err)
		}
		intermediate = append(intermediate, id)
	}
	final := &domain.VideoRecord{UserID: "u1", Prompt: "p", Model: "sora-2", VideoURL: "http://h/generated/sora_complete_1.mp4", SessionID: "s", Duration: 30}
	finalID, err := repo.Insert(ctx, final)
	if err != nil {
		t.Fatalf("insert final: %v", err)
	}
	if final.ID != finalID || final.CreatedAt.IsZero() {
		t.Fatalf("insert must fill id and created_at, got %+v", final)
	}

	if err := repo.DeleteMany(ctx, append(intermediate, "missing")); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	var remaining int
	if err := repo.db.QueryRowContext(ctx, "select count(*) from generated_videos").Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected only the final record to remain, got %d", remaining)
	}

	list, err := repo.ListByUser(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != finalID || list[0].Duration != 30 || list[0].IsIntermediate {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestSQLiteListHidesIntermediatesAndOtherUsers(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)
	for _, rec := range []domain.VideoRecord{
		{UserID: "u1", Prompt: "first", Model: "veo-3", VideoURL: "a"},
		{UserID: "u1", Prompt: "temp", Model: "veo-3", VideoURL: "b", IsIntermediate: true, SessionID: "s"},
		{UserID: "u2", Prompt: "other", Model: "veo-3", VideoURL: "c"},
		{UserID: "u1", Prompt: "second", Model: "veo-3", VideoURL: "d"},
	} {
		rec := rec
		if _, err := repo.Insert(ctx, &rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	list, err := repo.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].Prompt != "second" || list[1].Prompt != "first" {
		t.Fatalf("expected newest first, got %q then %q", list[0].Prompt, list[1].Prompt)
	}
}

func TestSQLiteConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			var ids []string
			for i := 0; i < 3; i++ {
				id, err := repo.Insert(ctx, &domain.VideoRecord{UserID: "u", Prompt: "p", Model: "m", VideoURL: "x", IsIntermediate: true, SessionID: session})
				if err != nil {
					errs <- err
					return
				}
				ids = append(ids, id)
			}
			if err := repo.DeleteMany(ctx, ids); err != nil {
				errs <- err
			}
		}(string(rune('a' + s)))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent session: %v", err)
	}
	var remaining int
	if err := repo.db.QueryRowContext(ctx, "select count(*) from generated_videos").Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all session records deleted, got %d", remaining)
	}
}
