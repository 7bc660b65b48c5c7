// Package audit records every quota attempt, allowed or not, as a JSON line.
// Recording is fire-and-forget: entries flow through a buffered channel to a
// single writer goroutine and are dropped when the buffer is full, so the
// request path never blocks on the sink.
package audit

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one recorded quota attempt.
type Entry struct {
	ID        string
	Time      time.Time
	Endpoint  string
	Identity  string
	Allowed   bool
	Remaining int
}

type Recorder struct {
	logger zerolog.Logger
	ch     chan Entry
	once   sync.Once
	done   chan struct{}
}

// NewRecorder writes entries to w. buffer bounds how many entries may be
// queued before new ones are dropped.
func NewRecorder(w io.Writer, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		logger: zerolog.New(w).With().Timestamp().Logger(),
		ch:     make(chan Entry, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues e, filling in ID and Time when unset. Never blocks.
func (r *Recorder) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case r.ch <- e:
	default:
		// Sink is behind; losing audit entries beats stalling requests.
	}
}

// Close drains queued entries and stops the writer.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.ch)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		r.logger.Info().
			Str("id", e.ID).
			Time("at", e.Time).
			Str("endpoint", e.Endpoint).
			Str("identity", e.Identity).
			Bool("allowed", e.Allowed).
			Int("remaining", e.Remaining).
			Msg("quota_attempt")
	}
}
