package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"videochain/internal/infra"
	"videochain/internal/infra/credentials"
	"videochain/internal/sqlinline"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag     string
		baseURLFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "Video API key (fallbacks to VIDEO_API_KEY)")
	flag.StringVar(&baseURLFlag, "base-url", "", "Video API base URL stored with the key (fallbacks to VIDEO_API_BASE_URL)")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("VIDEO_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "video API key is required via -key or VIDEO_API_KEY")
		os.Exit(1)
	}
	baseURL := strings.TrimSpace(baseURLFlag)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("VIDEO_API_BASE_URL"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" || strings.HasPrefix(dbURL, "sqlite:") {
		fmt.Fprintln(os.Stderr, "a postgres DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	if err := infra.ApplySchema(ctx, runner, sqlinline.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare schema: %v\n", err)
		os.Exit(1)
	}

	store := credentials.NewStore(runner)
	if err := store.SetVideoAPIKey(ctx, key, baseURL); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist video api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("video API key stored successfully")
}
