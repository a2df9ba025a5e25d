package bootstrap

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videochain/internal/domain"
	"videochain/internal/infra"
)

func TestBuildWithSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := &infra.Config{
		DatabaseURL:   "sqlite:" + filepath.Join(dir, "videos.db"),
		GeneratedRoot: filepath.Join(dir, "generated"),
	}

	svc, err := Build(context.Background(), cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	assert.NotNil(t, svc.Orchestrator)
	assert.Nil(t, svc.Jobs)
	assert.Nil(t, svc.Ping)
	assert.Equal(t, filepath.Join(dir, "generated"), svc.Store.BasePath())

	n, err := svc.Orchestrator.IterationCount("sora-2", 32)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	id, err := svc.Records.Insert(context.Background(), &domain.VideoRecord{
		UserID: "u1", Prompt: "p", Model: "sora-2", VideoURL: "http://h/generated/a.mp4",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestBuildRejectsBadProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &infra.Config{
		DatabaseURL:       "sqlite:" + filepath.Join(dir, "videos.db"),
		GeneratedRoot:     filepath.Join(dir, "generated"),
		VideoProfilesPath: filepath.Join(dir, "missing.toml"),
	}
	_, err := Build(context.Background(), cfg, zerolog.New(io.Discard))
	assert.Error(t, err)
}
