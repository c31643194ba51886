package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/rs/zerolog"
)

// SpeechService talks to an external speech-to-text endpoint and adapts it
// to engine.Recognizer. Transcription is best-effort throughout: any HTTP
// or decode failure just ends the fragment stream.
type SpeechService struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// NewSpeechService creates the service; an empty endpoint means the
// deployment has no speech-to-text capability and RecognizerFor returns
// nil recognizers.
func NewSpeechService(endpoint string, log zerolog.Logger) *SpeechService {
	return &SpeechService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log.With().Str("component", "speech_service").Logger(),
	}
}

// Enabled reports whether live transcription is configured.
func (s *SpeechService) Enabled() bool {
	return s.endpoint != ""
}

// RecognizerFor binds a recognizer to one recording's audio chunk stream.
// Returns nil when transcription is not configured, which the engine
// treats as "no support".
func (s *SpeechService) RecognizerFor(chunks <-chan []byte) engine.Recognizer {
	if !s.Enabled() {
		return nil
	}
	return &httpRecognizer{svc: s, chunks: chunks}
}

// httpRecognizer posts each audio chunk to the endpoint and relays the
// recognized text fragments.
type httpRecognizer struct {
	svc    *SpeechService
	chunks <-chan []byte
}

func (r *httpRecognizer) Fragments(ctx context.Context) (<-chan string, error) {
	out := make(chan string, 8)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-r.chunks:
				if !ok {
					return
				}
				frag, err := r.svc.recognize(ctx, chunk)
				if err != nil {
					r.svc.log.Debug().Err(err).Msg("Recognition request failed")
					return
				}
				if frag == "" {
					continue
				}
				select {
				case out <- frag:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *SpeechService) recognize(ctx context.Context, chunk []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(chunk))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recognizer returned %d", resp.StatusCode)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Text, nil
}
