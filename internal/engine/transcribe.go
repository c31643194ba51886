package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Recognizer is the optional speech-to-text capability. Fragments returns
// a stream of recognized text fragments for the active recording window.
type Recognizer interface {
	Fragments(ctx context.Context) (<-chan string, error)
}

// Transcriber streams a best-effort live transcript alongside a recording.
// It is purely advisory: errors are swallowed and surfaced only as
// "unavailable", the transcript is discarded when recording stops, and it
// never touches the answer store.
type Transcriber struct {
	rec Recognizer
	log zerolog.Logger

	mu     sync.Mutex
	text   strings.Builder
	cancel context.CancelFunc
}

// NewTranscriber creates a transcriber; rec may be nil when the platform
// has no speech-to-text capability.
func NewTranscriber(rec Recognizer, log zerolog.Logger) *Transcriber {
	return &Transcriber{
		rec: rec,
		log: log.With().Str("component", "transcriber").Logger(),
	}
}

// HasSupport reports whether live transcription is available at all.
func (t *Transcriber) HasSupport() bool {
	return t.rec != nil
}

// Attach binds the transcriber to the current recording window and returns
// a channel of monotonically-growing partial transcripts. Without support,
// or on any recognizer error, the channel just closes; recording and
// submission are never blocked.
func (t *Transcriber) Attach(ctx context.Context) <-chan string {
	out := make(chan string, 8)

	if t.rec == nil {
		close(out)
		return out
	}

	t.mu.Lock()
	t.text.Reset()
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	fragments, err := t.rec.Fragments(ctx)
	if err != nil {
		t.log.Debug().Err(err).Msg("Recognizer unavailable")
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for frag := range fragments {
			t.mu.Lock()
			if t.text.Len() > 0 {
				t.text.WriteByte(' ')
			}
			t.text.WriteString(frag)
			partial := t.text.String()
			t.mu.Unlock()

			select {
			case out <- partial:
			default: // advisory stream, drop under load
			}
		}
	}()

	return out
}

// Partial returns the transcript accumulated so far for this window.
func (t *Transcriber) Partial() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// Detach ends the window and discards the transcript. A new recording
// re-derives its transcript from scratch.
func (t *Transcriber) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.text.Reset()
}
