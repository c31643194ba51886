package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// CapturePhase is the recording lifecycle of the media capture unit.
type CapturePhase string

const (
	PhaseIdle      CapturePhase = "idle"
	PhaseRecording CapturePhase = "recording"
	PhaseReview    CapturePhase = "review"
)

// CaptureDevice acquires the microphone. The production implementation is
// fed by audio frames from the client stream; tests use fakes.
type CaptureDevice interface {
	// RequestPermission reflects OS/browser-level consent. Idempotent.
	RequestPermission(ctx context.Context) (bool, error)
	// Acquire starts a recording, or fails with ErrDeviceUnavailable.
	Acquire(ctx context.Context) (Recording, error)
}

// Recording is one active capture. Amplitude samples are advisory and may
// be dropped under load; they never affect the final artifact.
type Recording interface {
	Samples() <-chan float64
	// Stop ends the capture and returns the complete audio data.
	Stop() (data []byte, mime string, err error)
	// Discard ends the capture and throws the partial data away.
	Discard()
}

// ArtifactUploader turns recorded bytes into a durable public URL.
type ArtifactUploader interface {
	Upload(ctx context.Context, data []byte, mime string) (string, error)
}

// CaptureUnit owns microphone acquisition and the recording lifecycle for
// one session. At most one recording is active across the whole session:
// starting a new one implicitly stops and discards any other. On Stop the
// produced artifact URL becomes the answer for the bound question.
type CaptureUnit struct {
	device   CaptureDevice
	uploader ArtifactUploader
	store    *AnswerStore
	log      zerolog.Logger

	mu         sync.Mutex
	phase      CapturePhase
	granted    *bool // nil until consent was probed
	active     Recording
	questionID uuid.UUID
	artifact   string

	samples chan float64
}

// NewCaptureUnit creates an idle capture unit bound to the session's
// answer store.
func NewCaptureUnit(device CaptureDevice, uploader ArtifactUploader, store *AnswerStore, log zerolog.Logger) *CaptureUnit {
	return &CaptureUnit{
		device:   device,
		uploader: uploader,
		store:    store,
		log:      log.With().Str("component", "capture").Logger(),
		phase:    PhaseIdle,
		samples:  make(chan float64, 64),
	}
}

// RequestPermission probes consent once and caches the result. Repeated
// calls return the cached verdict.
func (u *CaptureUnit) RequestPermission(ctx context.Context) (bool, error) {
	u.mu.Lock()
	if u.granted != nil {
		g := *u.granted
		u.mu.Unlock()
		return g, nil
	}
	u.mu.Unlock()

	if u.device == nil {
		return false, ErrDeviceUnavailable
	}
	granted, err := u.device.RequestPermission(ctx)
	if err != nil {
		return false, ErrDeviceUnavailable
	}

	u.mu.Lock()
	u.granted = &granted
	u.mu.Unlock()
	return granted, nil
}

// Start begins recording for the given speaking question. A recording
// already in flight is stopped first and its partial artifact discarded;
// the capture token always belongs to exactly one question.
func (u *CaptureUnit) Start(ctx context.Context, questionID uuid.UUID) error {
	granted, err := u.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrPermissionDenied
	}

	u.mu.Lock()
	if u.active != nil {
		u.active.Discard()
		u.active = nil
	}
	u.mu.Unlock()

	rec, err := u.device.Acquire(ctx)
	if err != nil {
		return ErrDeviceUnavailable
	}

	u.mu.Lock()
	u.phase = PhaseRecording
	u.active = rec
	u.questionID = questionID
	u.artifact = ""
	u.mu.Unlock()

	go u.forwardSamples(rec)
	return nil
}

// forwardSamples relays live amplitude from the recording to the unit's
// sample channel, dropping when the consumer falls behind.
func (u *CaptureUnit) forwardSamples(rec Recording) {
	for s := range rec.Samples() {
		select {
		case u.samples <- s:
		default: // consumer is behind, drop
		}
	}
}

// Samples exposes the live amplitude stream for level meters.
func (u *CaptureUnit) Samples() <-chan float64 {
	return u.samples
}

// Stop ends the active recording, uploads the artifact, binds its URL as
// the answer for the recorded question, and moves to review.
func (u *CaptureUnit) Stop(ctx context.Context) (string, error) {
	u.mu.Lock()
	rec := u.active
	qid := u.questionID
	u.mu.Unlock()

	if rec == nil {
		return "", ErrNoActiveRecording
	}

	data, mime, err := rec.Stop()
	if err != nil {
		u.mu.Lock()
		u.active = nil
		u.phase = PhaseIdle
		u.mu.Unlock()
		return "", ErrDeviceUnavailable
	}

	url, err := u.uploader.Upload(ctx, data, mime)
	if err != nil {
		u.mu.Lock()
		u.active = nil
		u.phase = PhaseIdle
		u.mu.Unlock()
		return "", ErrRetryablePersistence
	}

	u.mu.Lock()
	u.active = nil
	u.phase = PhaseReview
	u.artifact = url
	u.mu.Unlock()

	u.store.Set(qid, model.TextAnswer(url))
	return url, nil
}

// Reset discards the current artifact or active recording and releases the
// device handle.
func (u *CaptureUnit) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.active != nil {
		u.active.Discard()
		u.active = nil
	}
	u.phase = PhaseIdle
	u.artifact = ""
	u.questionID = uuid.Nil
}

// Release is Reset for session teardown; the submission coordinator calls
// it after a successful submit.
func (u *CaptureUnit) Release() {
	u.Reset()
}

// Phase returns the current lifecycle phase.
func (u *CaptureUnit) Phase() CapturePhase {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.phase
}

// Artifact returns the last produced artifact URL, if in review.
func (u *CaptureUnit) Artifact() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.artifact, u.artifact != ""
}

// ActiveQuestion returns the question holding the capture token.
func (u *CaptureUnit) ActiveQuestion() (uuid.UUID, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.phase != PhaseRecording {
		return uuid.Nil, false
	}
	return u.questionID, true
}
