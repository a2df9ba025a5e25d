package progress

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videochain/internal/domain"
)

type recorder struct {
	events []Event
	failAt int
}

func (r *recorder) emit(ev Event) error {
	if r.failAt > 0 && len(r.events)+1 >= r.failAt {
		return errors.New("broken pipe")
	}
	r.events = append(r.events, ev)
	return nil
}

func TestStatusIsMonotonicAndCapped(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec.emit, "en")

	r.Status("processing", 40)
	r.Status("processing", 20)
	r.Status("processing", 120)
	r.Done("http://x/generated/a.mp4")
	r.Status("processing", 10)

	require.Len(t, rec.events, 4)
	assert.Equal(t, "Status: processing (40%)\n", rec.events[0].Text)
	assert.Equal(t, "Status: processing (40%)\n", rec.events[1].Text)
	assert.Equal(t, "Status: processing (99%)\n", rec.events[2].Text)
	assert.Equal(t, KindDone, rec.events[3].Kind)
	assert.Equal(t, "\n\nDONE: [Download Video](http://x/generated/a.mp4)", rec.events[3].Text)
	assert.Equal(t, float64(100), r.Percent())

	prev := 0.0
	for _, ev := range rec.events {
		assert.GreaterOrEqual(t, ev.Percent, prev)
		prev = ev.Percent
	}
}

func TestFailIsTerminal(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec.emit, "")
	r.Status("queued", 33.37)
	r.Fail(domain.ErrSegmentTimeout)
	r.Done("http://ignored")

	require.Len(t, rec.events, 2)
	assert.Equal(t, "Status: queued (33.3%)\n", rec.events[0].Text)
	assert.Equal(t, "\n\nError: timeout waiting for segment", rec.events[1].Text)
	assert.Less(t, r.Percent(), float64(100))
}

func TestEmitFailureDetaches(t *testing.T) {
	rec := &recorder{failAt: 2}
	r := NewReporter(rec.emit, "en")
	r.Note(NoteExtracting)
	r.Note(NoteExtracting)
	r.Note(NoteExtracting)
	r.Status("processing", 50)

	detached, err := r.Detached()
	assert.True(t, detached)
	assert.Error(t, err)
	assert.Len(t, rec.events, 1)
	assert.Equal(t, float64(50), r.Percent(), "progress still advances without a listener")
}

func TestNotesAreLocalized(t *testing.T) {
	cases := []struct {
		locale string
		want   string
	}{
		{"en", "Submitting segment 2...\n"},
		{"es-MX", "Enviando segmento 2...\n"},
		{"id", "Mengirim segmen 2...\n"},
		{"fr", "Submitting segment 2...\n"},
		{"id-ID,id;q=0.9,en;q=0.8", "Mengirim segmen 2...\n"},
	}
	for _, tc := range cases {
		rec := &recorder{}
		NewReporter(rec.emit, tc.locale).Note(NoteSubmitting, 2)
		require.Len(t, rec.events, 1, tc.locale)
		assert.Equal(t, tc.want, rec.events[0].Text, tc.locale)
	}
}

func TestSSEEncoderFraming(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSSEEncoder(&buf)
	r := NewReporter(enc.Emit, "en")
	r.Status("processing", 10)
	r.Done(`http://h/generated/"q".mp4`)
	require.NoError(t, enc.Close())
	assert.ErrorIs(t, enc.Emit(Event{Text: "late"}), ErrStreamClosed)

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	assert.Equal(t, `data: {"choices":[{"delta":{"content":"Status: processing (10%)\n"}}]}`, frames[0])
	assert.Contains(t, frames[1], `DONE: [Download Video](http://h/generated/\"q\".mp4)`)
	assert.Equal(t, "data: [DONE]", frames[2])
}

type jobRepoStub struct {
	domain.ChainJobRepository
	updates []string
	pcts    []float64
}

func (s *jobRepoStub) UpdateProgress(ctx context.Context, jobID string, pct float64, msg string) error {
	s.updates = append(s.updates, jobID+":"+msg)
	s.pcts = append(s.pcts, pct)
	return nil
}

func TestJobSinkSkipsTerminalEvents(t *testing.T) {
	repo := &jobRepoStub{}
	sink := NewJobSink(context.Background(), repo, "job-1")
	r := NewReporter(sink.Emit, "en")
	r.Status("processing", 25)
	r.Note(NoteFinalSaved)
	r.Done("http://x")

	assert.Equal(t, []string{"job-1:Status: processing (25%)", "job-1:Final video saved."}, repo.updates)
	assert.Equal(t, []float64{25, 25}, repo.pcts)
}
