package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"videochain/internal/bootstrap"
	"videochain/internal/http/handlers"
	httpapi "videochain/internal/http/httpapi"
	"videochain/internal/infra"
	"videochain/internal/infra/geoip"
	"videochain/internal/middleware"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	shutdownTelemetry, err := infra.SetupTelemetry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up telemetry")
	}

	svc, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer svc.Close()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		if c, ok := resolver.(io.Closer); ok {
			defer c.Close()
		}
	}

	app := &handlers.App{
		Logger:         logger,
		Chain:          svc.Orchestrator,
		Records:        svc.Records,
		Jobs:           svc.Jobs,
		PublicBaseURL:  cfg.PublicBaseURL,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Ping:           svc.Ping,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:             logger,
		JWTSecret:          cfg.JWTSecret,
		GeneratedRoot:      svc.Store.BasePath(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		DefaultLocale:      cfg.DefaultLocale,
		CountryLookup:      lookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush telemetry")
	}
	logger.Info().Msg("server stopped")
}
