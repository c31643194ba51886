package handler

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/linguaprep/examroom-backend/internal/engine"
)

// streamDevice is the production engine.CaptureDevice. The client owns the
// physical microphone; this device is fed the encoded audio frames the
// client streams over the WebSocket. Consent is whatever the client's
// permission prompt reported.
type streamDevice struct {
	mu       sync.Mutex
	reported bool
	granted  bool
	active   *streamRecording

	// chunks tees incoming frames to the speech recognizer.
	chunks chan []byte
}

func newStreamDevice() *streamDevice {
	return &streamDevice{chunks: make(chan []byte, 16)}
}

// SetPermission records the client's consent decision.
func (d *streamDevice) SetPermission(granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reported = true
	d.granted = granted
}

// Chunks is the audio frame stream for live transcription.
func (d *streamDevice) Chunks() <-chan []byte {
	return d.chunks
}

// RequestPermission implements engine.CaptureDevice. Until the client
// reports its prompt outcome the verdict is unknown, which must not be
// cached as a denial.
func (d *streamDevice) RequestPermission(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.reported {
		return false, errors.New("consent not reported yet")
	}
	return d.granted, nil
}

// Acquire implements engine.CaptureDevice.
func (d *streamDevice) Acquire(ctx context.Context) (engine.Recording, error) {
	rec := &streamRecording{
		mime:    "audio/webm",
		samples: make(chan float64, 16),
	}
	d.mu.Lock()
	d.active = rec
	d.mu.Unlock()
	return rec, nil
}

// Feed routes one binary frame into the active recording and to the
// transcription tee. Frames arriving with no recording active are dropped.
func (d *streamDevice) Feed(frame []byte) {
	d.mu.Lock()
	rec := d.active
	d.mu.Unlock()
	if rec == nil {
		return
	}
	rec.feed(frame)

	select {
	case d.chunks <- frame:
	default: // recognizer is behind, drop
	}
}

// streamRecording buffers the streamed frames for one recording window.
type streamRecording struct {
	mime string

	mu      sync.Mutex
	buf     bytes.Buffer
	closed  bool
	samples chan float64
}

func (r *streamRecording) feed(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.buf.Write(frame)

	select {
	case r.samples <- frameLevel(frame):
	default:
	}
}

func (r *streamRecording) Samples() <-chan float64 {
	return r.samples
}

func (r *streamRecording) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, "", errors.New("recording already closed")
	}
	r.closed = true
	close(r.samples)
	return r.buf.Bytes(), r.mime, nil
}

func (r *streamRecording) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.samples)
	r.buf.Reset()
}

// frameLevel is a crude 0..1 level estimate over the encoded frame, enough
// to drive a client meter. It never affects the stored artifact.
func frameLevel(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum int
	for _, b := range frame {
		d := int(b) - 128
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(frame)) / 128.0
}
