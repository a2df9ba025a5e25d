// Package progress turns chain progress into ordered text events.
package progress

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"golang.org/x/text/message"
)

// Kind classifies an event.
type Kind string

const (
	KindStatus Kind = "status"
	KindNote   Kind = "note"
	KindDone   Kind = "done"
	KindError  Kind = "error"
)

// Event is one outbound message. Percent is the global progress at the time
// the event was produced.
type Event struct {
	Kind    Kind
	Text    string
	Percent float64
	URL     string
}

// EmitFunc delivers an event to the transport.
type EmitFunc func(Event) error

// Reporter formats events and hands them to the injected emitter in the order
// they are produced. Percent never decreases and only the success event
// reports 100.
type Reporter struct {
	mu       sync.Mutex
	emit     EmitFunc
	printer  *message.Printer
	percent  float64
	detached bool
	finished bool
	emitErr  error
}

// NewReporter builds a reporter whose notes are localized for locale.
func NewReporter(emit EmitFunc, locale string) *Reporter {
	return &Reporter{emit: emit, printer: Printer(locale)}
}

// Status emits "Status: <state> (<pct>%)".
func (r *Reporter) Status(state string, pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	if pct > r.percent {
		r.percent = math.Min(pct, 99)
	}
	text := fmt.Sprintf("Status: %s (%s%%)\n", state, formatPercent(r.percent))
	r.send(Event{Kind: KindStatus, Text: text, Percent: r.percent})
}

// Note emits a localized free-text line. format is the English message key.
func (r *Reporter) Note(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.send(Event{Kind: KindNote, Text: r.printer.Sprintf(format, args...), Percent: r.percent})
}

// Done emits the terminal success event.
func (r *Reporter) Done(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	r.percent = 100
	r.send(Event{Kind: KindDone, Text: fmt.Sprintf("\n\nDONE: [Download Video](%s)", url), Percent: 100, URL: url})
}

// Fail emits the terminal failure event.
func (r *Reporter) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	r.send(Event{Kind: KindError, Text: "\n\nError: " + msg, Percent: r.percent})
}

// Percent returns the last reported global progress.
func (r *Reporter) Percent() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Detached reports whether the transport stopped accepting events, and why.
func (r *Reporter) Detached() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached, r.emitErr
}

// send must be called with mu held. The first transport error detaches the
// sink; the run keeps going without a listener.
func (r *Reporter) send(ev Event) {
	if r.detached || r.emit == nil {
		return
	}
	if err := r.emit(ev); err != nil {
		r.detached = true
		r.emitErr = err
	}
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(math.Floor(p*10)/10, 'f', -1, 64)
}
