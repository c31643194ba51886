package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

func newCaptureFixture(device *fakeDevice, uploader *fakeUploader) (*CaptureUnit, *AnswerStore) {
	store := NewAnswerStore(uuid.New(), nil)
	return NewCaptureUnit(device, uploader, store, zerolog.Nop()), store
}

func TestCapturePermissionDeniedIsRemembered(t *testing.T) {
	device := &fakeDevice{granted: false}
	unit, _ := newCaptureFixture(device, &fakeUploader{})

	if err := unit.Start(context.Background(), uuid.New()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	if err := unit.Start(context.Background(), uuid.New()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("second Start() error = %v, want ErrPermissionDenied", err)
	}

	// The verdict is cached; the device is not re-probed per attempt.
	if device.probeCount() != 1 {
		t.Errorf("permission probes = %d, want 1", device.probeCount())
	}
}

func TestCapturePermissionProbeErrorNotCached(t *testing.T) {
	device := &fakeDevice{granted: false, permErr: errors.New("probe failed")}
	unit, _ := newCaptureFixture(device, &fakeUploader{})

	if _, err := unit.RequestPermission(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("RequestPermission() error = %v, want ErrDeviceUnavailable", err)
	}

	// Once the probe succeeds the fresh verdict is used.
	device.mu.Lock()
	device.permErr = nil
	device.granted = true
	device.mu.Unlock()

	granted, err := unit.RequestPermission(context.Background())
	if err != nil || !granted {
		t.Fatalf("RequestPermission() = %v %v, want granted", granted, err)
	}
}

func TestCaptureStopUploadsAndBindsAnswer(t *testing.T) {
	device := &fakeDevice{granted: true}
	unit, store := newCaptureFixture(device, &fakeUploader{})
	qid := uuid.New()

	if err := unit.Start(context.Background(), qid); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if unit.Phase() != PhaseRecording {
		t.Fatalf("phase = %s, want recording", unit.Phase())
	}
	if active, ok := unit.ActiveQuestion(); !ok || active != qid {
		t.Fatalf("ActiveQuestion() = %v %v, want %s", active, ok, qid)
	}

	url, err := unit.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if unit.Phase() != PhaseReview {
		t.Errorf("phase = %s, want review", unit.Phase())
	}
	if artifact, ok := unit.Artifact(); !ok || artifact != url {
		t.Errorf("Artifact() = %q %v, want %q", artifact, ok, url)
	}
	if got, ok := store.Get(qid); !ok || got.Text != url {
		t.Errorf("bound answer = %v, want %q", got, url)
	}
}

func TestCaptureTokenIsExclusive(t *testing.T) {
	device := &fakeDevice{granted: true}
	unit, _ := newCaptureFixture(device, &fakeUploader{})
	q1, q2 := uuid.New(), uuid.New()

	if err := unit.Start(context.Background(), q1); err != nil {
		t.Fatalf("Start(q1) error = %v", err)
	}
	if err := unit.Start(context.Background(), q2); err != nil {
		t.Fatalf("Start(q2) error = %v", err)
	}

	if len(device.recordings) != 2 {
		t.Fatalf("recordings = %d, want 2", len(device.recordings))
	}
	if !device.recordings[0].wasDiscarded() {
		t.Error("first recording not discarded when token moved")
	}
	if active, _ := unit.ActiveQuestion(); active != q2 {
		t.Errorf("token holder = %s, want %s", active, q2)
	}
}

func TestCaptureStopWithoutRecording(t *testing.T) {
	unit, _ := newCaptureFixture(&fakeDevice{granted: true}, &fakeUploader{})

	if _, err := unit.Stop(context.Background()); !errors.Is(err, ErrNoActiveRecording) {
		t.Fatalf("Stop() error = %v, want ErrNoActiveRecording", err)
	}
}

func TestCaptureUploadFailureKeepsQuestionUnanswered(t *testing.T) {
	device := &fakeDevice{granted: true}
	unit, store := newCaptureFixture(device, &fakeUploader{err: errors.New("disk full")})
	qid := uuid.New()

	if err := unit.Start(context.Background(), qid); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := unit.Stop(context.Background()); !errors.Is(err, ErrRetryablePersistence) {
		t.Fatalf("Stop() error = %v, want ErrRetryablePersistence", err)
	}
	if store.IsAnswered(qid) {
		t.Error("failed upload still bound an answer")
	}
	if unit.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle after failed upload", unit.Phase())
	}
}

func TestCaptureResetDiscardsArtifact(t *testing.T) {
	device := &fakeDevice{granted: true}
	unit, _ := newCaptureFixture(device, &fakeUploader{})
	qid := uuid.New()

	_ = unit.Start(context.Background(), qid)
	if _, err := unit.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	unit.Reset()
	if unit.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", unit.Phase())
	}
	if _, ok := unit.Artifact(); ok {
		t.Error("artifact survived reset")
	}
}

func TestCaptureAnswerValueCountsAsAnswered(t *testing.T) {
	// An artifact URL is a plain text answer as far as review counting
	// goes.
	v := model.TextAnswer("/uploads/rec-1.webm")
	if !v.IsAnswered() {
		t.Error("artifact URL answer not counted as answered")
	}
}
