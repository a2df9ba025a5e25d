// Package bootstrap assembles the chain services shared by the api and worker
// binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"videochain/internal/adapter/repo"
	"videochain/internal/chain"
	"videochain/internal/domain"
	"videochain/internal/infra"
	"videochain/internal/infra/credentials"
	"videochain/internal/media"
	"videochain/internal/providers/video"
	"videochain/internal/sqlinline"
	"videochain/internal/storage"
)

// Services are the long lived collaborators of a process.
type Services struct {
	Orchestrator *chain.Orchestrator
	Records      domain.VideoRecordRepository
	// Jobs is nil on SQLite, which only backs the streaming flow.
	Jobs  domain.ChainJobRepository
	Store *storage.FileStore
	Ping  func(ctx context.Context) error

	closers []func()
}

// Close releases database handles in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Build connects storage and the provider and returns ready services. On error
// everything acquired so far is released.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (_ *Services, err error) {
	s := &Services{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.Store, err = storage.NewFileStore(cfg.GeneratedRoot); err != nil {
		return nil, fmt.Errorf("bootstrap: generated root: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.VideoAPIKey)
	if cfg.UsesSQLite() {
		records, openErr := repo.OpenSQLiteVideoRecords(ctx, cfg.DatabaseURL)
		if openErr != nil {
			return nil, fmt.Errorf("bootstrap: %w", openErr)
		}
		s.closers = append(s.closers, func() { _ = records.Close() })
		s.Records = records
		logger.Info().Msg("bootstrap: using sqlite video records, job queue disabled")
	} else {
		pool, poolErr := infra.NewDBPool(ctx, cfg)
		if poolErr != nil {
			return nil, fmt.Errorf("bootstrap: %w", poolErr)
		}
		s.closers = append(s.closers, pool.Close)
		runner := infra.NewSQLRunner(pool, logger)
		if err = infra.ApplySchema(ctx, runner, sqlinline.Schema); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		s.Records = repo.NewVideoRecordRepository(runner)
		s.Jobs = repo.NewChainJobRepository(runner)
		s.Ping = pool.Ping

		if apiKey == "" {
			stored, keyErr := credentials.NewStore(runner).VideoAPIKey(ctx)
			if keyErr != nil {
				logger.Warn().Err(keyErr).Msg("bootstrap: failed to load video api key from store")
			}
			apiKey = stored
		}
	}
	if apiKey == "" {
		logger.Warn().Msg("bootstrap: video api key missing, chains will fail at submit")
	}

	profiles, err := video.LoadProfiles(cfg.VideoProfilesPath)
	if err != nil {
		return nil, err
	}
	client, err := video.NewClient(video.Options{
		APIKey:            apiKey,
		BaseURL:           cfg.VideoAPIBaseURL,
		HTTPClient:        &http.Client{},
		Logger:            &logger,
		RequestsPerSecond: cfg.VideoAPIRPS,
	})
	if err != nil {
		return nil, err
	}
	toolchain := media.New(media.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      &logger,
	})

	opts := chain.Options{
		Provider: client,
		Frames:   toolchain,
		Stitcher: toolchain,
		Records:  s.Records,
		Store:    s.Store,
		Profiles: profiles,
		Logger:   &logger,
	}
	publisher, pubErr := storage.NewMinioPublisher(ctx, storage.MinioOptions{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		UseSSL:        cfg.MinioUseSSL,
		PresignExpiry: cfg.MinioPresignExpiry,
		Prefix:        "final/",
	})
	switch {
	case pubErr != nil:
		logger.Warn().Err(pubErr).Msg("bootstrap: object storage unavailable, serving final videos locally")
	case publisher != nil:
		opts.Publisher = publisher
	}

	if s.Orchestrator, err = chain.New(opts); err != nil {
		return nil, err
	}
	return s, nil
}
