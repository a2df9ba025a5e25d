package progress

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
)

// ErrStreamClosed is returned once the terminator has been written.
var ErrStreamClosed = errors.New("progress: stream closed")

type chunk struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Delta delta `json:"delta"`
}

type delta struct {
	Content string `json:"content"`
}

// SSEWriter frames events as chat-completion style deltas:
//
//	data: {"choices":[{"delta":{"content":"..."}}]}
//
// and finishes the stream with "data: [DONE]".
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter prepares w for streaming. Headers are written immediately.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
		f.Flush()
	}
	return s
}

// NewSSEEncoder frames events onto a plain writer.
func NewSSEEncoder(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Emit implements EmitFunc.
func (s *SSEWriter) Emit(ev Event) error {
	payload, err := json.Marshal(chunk{Choices: []choice{{Delta: delta{Content: ev.Text}}}})
	if err != nil {
		return err
	}
	return s.write("data: " + string(payload) + "\n\n")
}

// Close writes the terminator. Further writes fail.
func (s *SSEWriter) Close() error {
	if err := s.write("data: [DONE]\n\n"); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Detach stops all further writes without sending the terminator. Use it when
// the underlying response is no longer owned by the caller.
func (s *SSEWriter) Detach() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *SSEWriter) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
