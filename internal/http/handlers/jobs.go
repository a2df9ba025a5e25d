package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"videochain/internal/domain"
	"videochain/internal/domain/jsoncfg"
)

const defaultJobPollInterval = time.Second

type jobDTO struct {
	ID           string    `json:"job_id"`
	Status       string    `json:"status"`
	Progress     float64   `json:"progress"`
	LastMessage  string    `json:"last_message,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newJobDTO(job *domain.ChainJob) jobDTO {
	return jobDTO{
		ID:           job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		LastMessage:  job.LastMessage,
		VideoURL:     job.VideoURL,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// ChainEnqueue queues a chain for the worker and returns immediately.
func (a *App) ChainEnqueue(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Jobs == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "job queue is not configured")
		return
	}
	payload, ok := a.decodeChainPayload(w, r)
	if !ok {
		return
	}
	payload.PublicBaseURL = a.publicBaseURL(r)
	job, err := a.Jobs.Enqueue(r.Context(), userID, jsoncfg.MustMarshal(payload))
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("enqueue chain failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue chain")
		return
	}
	a.json(w, http.StatusAccepted, newJobDTO(job))
}

// ChainJobStatus returns the current state of a queued chain.
func (a *App) ChainJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, newJobDTO(job))
}

// ChainJobStream pushes job changes over a websocket until the job is terminal
// or the client goes away.
func (a *App) ChainJobStream(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: a.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The read pump only notices the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(newJobDTO(job)); err != nil {
		return
	}
	interval := a.JobPollInterval
	if interval <= 0 {
		interval = defaultJobPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := *job
	for !prev.Status.Terminal() {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		cur, err := a.Jobs.GetForUser(r.Context(), prev.ID, prev.UserID)
		if err != nil {
			a.Logger.Debug().Err(err).Str("job_id", prev.ID).Msg("job stream: reload failed")
			continue
		}
		if cur.Status == prev.Status && cur.Progress == prev.Progress && cur.LastMessage == prev.LastMessage {
			continue
		}
		if err := conn.WriteJSON(newJobDTO(cur)); err != nil {
			return
		}
		prev = *cur
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}

func (a *App) loadJob(w http.ResponseWriter, r *http.Request) (*domain.ChainJob, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	if a.Jobs == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "job queue is not configured")
		return nil, false
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return nil, false
	}
	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return nil, false
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return nil, false
	}
	return job, true
}

// checkOrigin accepts same-host upgrades and origins allowed for CORS.
func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range a.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
