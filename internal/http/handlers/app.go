package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"videochain/internal/chain"
	"videochain/internal/domain"
	"videochain/internal/infra"
	"videochain/internal/middleware"
	"videochain/internal/progress"
)

// ChainRunner runs chains. *chain.Orchestrator satisfies it.
type ChainRunner interface {
	Run(ctx context.Context, req domain.GenerationRequest, rep *progress.Reporter) (*chain.Result, error)
	IterationCount(model string, totalSeconds int) (int, error)
}

type App struct {
	Logger  infra.Logger
	Chain   ChainRunner
	Records domain.VideoRecordRepository
	// Jobs is nil when the queued flow is not available.
	Jobs domain.ChainJobRepository
	// PublicBaseURL overrides the scheme and host derived from the request.
	PublicBaseURL  string
	AllowedOrigins []string
	// JobPollInterval paces the job websocket. Defaults to one second.
	JobPollInterval time.Duration
	Ping            func(ctx context.Context) error
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// publicBaseURL returns the origin generated files are linked under.
func (a *App) publicBaseURL(r *http.Request) string {
	if base := strings.TrimRight(a.PublicBaseURL, "/"); base != "" {
		return base
	}
	proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}

func firstHeaderValue(v string) string {
	if idx := strings.Index(v, ","); idx >= 0 {
		v = v[:idx]
	}
	return strings.TrimSpace(v)
}
