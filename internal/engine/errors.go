package engine

import "errors"

// Sentinel errors for the session engine. Handlers map these onto the
// response error codes.
var (
	// ErrPermissionDenied means microphone consent was refused. Not
	// retryable without an OS-level settings change; the session stays
	// usable for non-audio question types.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrDeviceUnavailable means no capture device exists or it could not
	// be acquired. Same user-visible treatment as denied.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrRetryablePersistence marks a transient persistence failure. The
	// submission coordinator returns to idle so the caller can retry.
	ErrRetryablePersistence = errors.New("retryable persistence failure")

	// ErrNotFound covers unknown sections and questions in navigation.
	ErrNotFound = errors.New("not found")

	// ErrEmptyContent means the exam has zero available sections. Fatal
	// for starting a session, distinct from ErrNotFound.
	ErrEmptyContent = errors.New("exam has no available sections")

	// ErrSessionClosed rejects mutations after the session reached a
	// terminal state.
	ErrSessionClosed = errors.New("session already submitted")

	// ErrNoActiveRecording rejects Stop without a running recording.
	ErrNoActiveRecording = errors.New("no active recording")
)
