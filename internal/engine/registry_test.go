package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRegistrySharesEngineAcrossConnections(t *testing.T) {
	reg := NewRegistry()
	paper, _ := testPaper(2)
	sessionID := uuid.New()

	builds := 0
	build := func() (*Engine, error) {
		builds++
		return New(testConfig(paper, time.Minute))
	}

	first, err := reg.GetOrCreate(sessionID, build)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := reg.GetOrCreate(sessionID, build)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if first != second {
		t.Error("two connections got distinct engines for one session")
	}
	if builds != 1 {
		t.Errorf("build ran %d times, want 1", builds)
	}
}

func TestRegistryBuildFailureNotCached(t *testing.T) {
	reg := NewRegistry()
	sessionID := uuid.New()

	wantErr := errors.New("paper unavailable")
	if _, err := reg.GetOrCreate(sessionID, func() (*Engine, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("GetOrCreate() error = %v, want build error", err)
	}

	if _, ok := reg.Get(sessionID); ok {
		t.Error("failed build left an engine in the registry")
	}
}

func TestRegistryRemoveEvicts(t *testing.T) {
	reg := NewRegistry()
	paper, _ := testPaper(2)
	sessionID := uuid.New()

	if _, err := reg.GetOrCreate(sessionID, func() (*Engine, error) {
		return New(testConfig(paper, time.Minute))
	}); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	reg.Remove(sessionID)
	if _, ok := reg.Get(sessionID); ok {
		t.Error("engine still present after Remove")
	}
	// Removing twice must not panic.
	reg.Remove(sessionID)
}
