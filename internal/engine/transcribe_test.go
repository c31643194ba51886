package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestTranscriberWithoutSupportClosesImmediately(t *testing.T) {
	tr := NewTranscriber(nil, zerolog.Nop())
	if tr.HasSupport() {
		t.Fatal("HasSupport() = true for nil recognizer")
	}

	out := tr.Attach(context.Background())
	if _, ok := <-out; ok {
		t.Fatal("channel delivered a value without support")
	}
}

func TestTranscriberGrowsMonotonically(t *testing.T) {
	rec := &fakeRecognizer{frags: make(chan string, 4)}
	tr := NewTranscriber(rec, zerolog.Nop())

	out := tr.Attach(context.Background())
	rec.frags <- "the quick"
	rec.frags <- "brown fox"
	close(rec.frags)

	var partials []string
	for p := range out {
		partials = append(partials, p)
	}

	if len(partials) == 0 {
		t.Fatal("no partials delivered")
	}
	last := partials[len(partials)-1]
	if last != "the quick brown fox" {
		t.Fatalf("final partial = %q, want accumulated text", last)
	}
	for i := 1; i < len(partials); i++ {
		if len(partials[i]) < len(partials[i-1]) {
			t.Fatalf("partials shrank: %q then %q", partials[i-1], partials[i])
		}
	}
	if tr.Partial() != last {
		t.Errorf("Partial() = %q, want %q", tr.Partial(), last)
	}
}

func TestDetachDiscardsTranscript(t *testing.T) {
	rec := &fakeRecognizer{frags: make(chan string, 1)}
	tr := NewTranscriber(rec, zerolog.Nop())

	out := tr.Attach(context.Background())
	rec.frags <- "hello"
	close(rec.frags)
	for range out {
	}

	tr.Detach()
	if tr.Partial() != "" {
		t.Errorf("Partial() = %q after Detach, want empty", tr.Partial())
	}
}
