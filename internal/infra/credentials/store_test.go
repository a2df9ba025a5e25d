package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestVideoAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " sk-video "})
	key, err := store.VideoAPIKey(context.Background())
	if err != nil {
		t.Fatalf("VideoAPIKey error: %v", err)
	}
	if key != "sk-video" {
		t.Fatalf("expected sk-video, got %q", key)
	}
}

func TestVideoAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.VideoAPIKey(context.Background())
	if err != nil {
		t.Fatalf("VideoAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestVideoAPIKey_Error(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("conn refused")})
	if _, err := store.VideoAPIKey(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestSetVideoAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetVideoAPIKey(context.Background(), "secret", "https://api.example.com"); err != nil {
		t.Fatalf("SetVideoAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderVideoAPI {
		t.Fatalf("expected provider argument, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	props, ok := exec.exec.args[2].([]byte)
	if !ok || string(props) != `{"base_url":"https://api.example.com"}` {
		t.Fatalf("unexpected properties %T %v", exec.exec.args[2], exec.exec.args[2])
	}
}

func TestSetVideoAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetVideoAPIKey(context.Background(), " ", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
