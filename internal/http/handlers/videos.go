package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"videochain/internal/domain/jsoncfg"
	"videochain/internal/middleware"
	"videochain/internal/progress"
)

const (
	// maxChainBody bounds request bodies; reference images arrive inline.
	maxChainBody       = 32 << 20
	defaultVideosLimit = 50
	maxVideosLimit     = 200
)

type videoDTO struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	VideoURL  string    `json:"video_url"`
	Duration  int       `json:"duration,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChainGenerate runs a chain and streams progress as server-sent events. The
// run outlives the connection: a disconnected client only stops the stream.
func (a *App) ChainGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	payload, ok := a.decodeChainPayload(w, r)
	if !ok {
		return
	}
	payload.PublicBaseURL = a.publicBaseURL(r)
	req, err := payload.GenerationRequest(userID)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// Chains take minutes; the server write timeout must not cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	log := a.Logger.With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("user_id", userID).
		Str("model", req.Model).
		Logger()

	stream := progress.NewSSEWriter(w)
	rep := progress.NewReporter(stream.Emit, req.Locale)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := a.Chain.Run(context.WithoutCancel(r.Context()), req, rep)
		if err != nil {
			log.Warn().Err(err).Msg("chain: run failed")
			return
		}
		log.Info().Str("session_id", res.SessionID).Str("video_url", res.VideoURL).Msg("chain: run finished")
	}()

	select {
	case <-done:
		if err := stream.Close(); err != nil {
			log.Debug().Err(err).Msg("chain: close stream")
		}
	case <-r.Context().Done():
		stream.Detach()
		log.Info().Msg("chain: client disconnected, run continues")
	}
}

// MyVideos lists the caller's final videos, newest first.
func (a *App) MyVideos(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := defaultVideosLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxVideosLimit)
	}
	records, err := a.Records.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("list videos failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list videos")
		return
	}
	items := make([]videoDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, videoDTO{
			ID:        rec.ID,
			Prompt:    rec.Prompt,
			Model:     rec.Model,
			VideoURL:  rec.VideoURL,
			Duration:  rec.Duration,
			CreatedAt: rec.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "videos": items})
}

// decodeChainPayload reads, normalizes and validates a chain request. It
// writes the error response itself and reports whether the caller may go on.
func (a *App) decodeChainPayload(w http.ResponseWriter, r *http.Request) (jsoncfg.ChainPayload, bool) {
	var payload jsoncfg.ChainPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChainBody)).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return payload, false
	}
	payload.Normalize(middleware.LocaleFromContext(r.Context()))
	if err := payload.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return payload, false
	}
	if _, err := a.Chain.IterationCount(payload.Model, int(payload.Seconds)); err != nil {
		a.error(w, http.StatusBadRequest, "unsupported_model", err.Error())
		return payload, false
	}
	return payload, true
}
