package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/linguaprep/examroom-backend/internal/middleware"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/linguaprep/examroom-backend/internal/response"
	"github.com/linguaprep/examroom-backend/internal/service"
	ws "github.com/linguaprep/examroom-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// sessionLink binds a session's engine collaborators to whichever
// connection is currently live. Engine callbacks (ticks, timeout submit)
// outlive individual connections, so they write through the link instead
// of holding a conn.
type sessionLink struct {
	device *streamDevice

	mu   sync.Mutex
	conn *ws.Conn
}

func (l *sessionLink) attach(conn *ws.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
}

func (l *sessionLink) detach(conn *ws.Conn) {
	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
	}
	l.mu.Unlock()
}

func (l *sessionLink) send(v interface{}) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		_ = conn.WriteTyped(v)
	}
}

// WSHandler runs the live exam stream: JSON action frames drive the
// session engine, binary frames carry recording audio.
type WSHandler struct {
	registry       *engine.Registry
	examService    *service.ExamService
	sessionService *service.SessionService
	persister      *service.AnswerPersister
	mediaService   *service.MediaService
	speechService  *service.SpeechService
	log            zerolog.Logger
	upgrader       websocket.Upgrader

	mu    sync.Mutex
	links map[uuid.UUID]*sessionLink
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	registry *engine.Registry,
	examService *service.ExamService,
	sessionService *service.SessionService,
	persister *service.AnswerPersister,
	mediaService *service.MediaService,
	speechService *service.SpeechService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		registry:       registry,
		examService:    examService,
		sessionService: sessionService,
		persister:      persister,
		mediaService:   mediaService,
		speechService:  speechService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		links:          make(map[uuid.UUID]*sessionLink),
	}
}

func (h *WSHandler) linkFor(sessionID uuid.UUID) *sessionLink {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.links[sessionID]; ok {
		return l
	}
	l := &sessionLink{device: newStreamDevice()}
	h.links[sessionID] = l
	return l
}

func (h *WSHandler) dropLink(sessionID uuid.UUID) {
	h.mu.Lock()
	delete(h.links, sessionID)
	h.mu.Unlock()
}

// SessionStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket for the live exam session: autosave, flags,
// recording, transcription, ticks, and submission.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// The student must have entered the exam over REST first.
	session, err := h.sessionService.GetSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("session_id", session.ID.String()).
		Logger()

	link := h.linkFor(session.ID)
	link.attach(conn)
	defer link.detach(conn)

	eng, err := h.registry.GetOrCreate(session.ID, func() (*engine.Engine, error) {
		e, buildErr := h.buildEngine(c.Request.Context(), session, link)
		if buildErr != nil {
			return nil, buildErr
		}
		e.Start()
		return e, nil
	})
	if err != nil {
		wsLog.Error().Err(err).Msg("Engine build failed")
		_ = conn.WriteError(string(wsErrorCode(err)), response.GetMessage(wsErrorCode(err)))
		return
	}

	wsLog.Info().Msg("Student connected")
	h.readLoop(conn, link, eng, wsLog)
}

// finishSession evicts a terminal session's engine and link. Submission can
// complete on the timer goroutine with no connection attached, or inside
// the registry build when a resume lands past the deadline, so eviction
// runs on its own goroutine instead of under the caller's locks.
func (h *WSHandler) finishSession(sessionID uuid.UUID) {
	go func() {
		h.registry.Remove(sessionID)
		h.dropLink(sessionID)
	}()
}

// buildEngine assembles the runtime for one session from its durable
// state. Runs once per session under the registry lock.
func (h *WSHandler) buildEngine(ctx context.Context, session *model.ExamSession, link *sessionLink) (*engine.Engine, error) {
	paper, err := h.examService.GetPaper(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}
	saved, err := h.sessionService.SavedAnswers(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return engine.New(h.engineConfig(session, paper, saved, link))
}

// engineConfig wires the engine's collaborators and event hooks. The
// terminal transition evicts the engine here, whatever triggered it, so a
// session auto-submitted after its client disconnected does not linger in
// the registry.
func (h *WSHandler) engineConfig(session *model.ExamSession, paper *model.ExamPaper, saved map[string]string, link *sessionLink) engine.Config {
	return engine.Config{
		Session:      *session,
		Paper:        paper,
		SavedAnswers: saved,
		Persister:    h.persister,
		Finalizer:    h.sessionService,
		Device:       link.device,
		Uploader:     h.mediaService,
		Recognizer:   h.speechService.RecognizerFor(link.device.Chunks()),
		OnTick: func(remaining int64) {
			link.send(ws.TickResponse{Event: ws.EventTick, Remaining: remaining})
		},
		OnSubmitted: func(trigger engine.SubmitTrigger) {
			link.send(ws.SubmittedResponse{Event: ws.EventSubmitted, Trigger: string(trigger)})
			h.finishSession(session.ID)
		},
		OnAutoSubmitError: func(err error) {
			link.send(ws.ErrorResponse{
				Event: ws.EventError,
				Code:  string(response.ErrRetryablePersistence),
				Error: response.GetMessage(response.ErrRetryablePersistence),
			})
		},
		Log: h.log,
	}
}

func (h *WSHandler) readLoop(conn *ws.Conn, link *sessionLink, eng *engine.Engine, wsLog zerolog.Logger) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		// Binary frames are audio for the active recording.
		if msgType == websocket.BinaryMessage {
			link.device.Feed(data)
			continue
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = conn.WriteError(string(response.ErrInvalidPayload), "malformed frame")
			continue
		}

		switch env.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, eng, data)
		case ws.ActionFlag:
			h.handleFlag(conn, eng, data)
		case ws.ActionPermission:
			h.handlePermission(conn, link, data)
		case ws.ActionRecordStart:
			h.handleRecordStart(conn, link, eng, data)
		case ws.ActionRecordStop:
			h.handleRecordStop(conn, eng)
		case ws.ActionRecordReset:
			h.handleRecordReset(conn, eng)
		case ws.ActionSubmit:
			h.handleSubmit(conn, eng, wsLog)
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(env.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *ws.Conn, eng *engine.Engine, data []byte) {
	var msg ws.AutosaveRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = conn.WriteError(string(response.ErrInvalidPayload), "malformed autosave")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		_ = conn.WriteError(string(response.ErrInvalidID), "invalid q_id format")
		return
	}

	var value model.AnswerValue
	if len(msg.Parts) > 0 {
		value = model.PartsAnswer(msg.Parts)
	} else {
		value = model.TextAnswer(msg.Answer)
	}

	if err := eng.SetAnswer(questionID, value); err != nil {
		h.writeEngineError(conn, err)
		return
	}
	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QID: msg.QID})
}

func (h *WSHandler) handleFlag(conn *ws.Conn, eng *engine.Engine, data []byte) {
	var msg ws.FlagRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = conn.WriteError(string(response.ErrInvalidPayload), "malformed flag")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		_ = conn.WriteError(string(response.ErrInvalidID), "invalid q_id format")
		return
	}

	flagged, err := eng.ToggleFlag(questionID)
	if err != nil {
		h.writeEngineError(conn, err)
		return
	}
	_ = conn.WriteTyped(ws.FlaggedResponse{Event: ws.EventFlagged, QID: msg.QID, Flagged: flagged})
}

func (h *WSHandler) handlePermission(conn *ws.Conn, link *sessionLink, data []byte) {
	var msg ws.PermissionRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = conn.WriteError(string(response.ErrInvalidPayload), "malformed permission")
		return
	}
	link.device.SetPermission(msg.Granted)
	_ = conn.WriteTyped(ws.PermissionResponse{Event: ws.EventPermission, Granted: msg.Granted})
}

func (h *WSHandler) handleRecordStart(conn *ws.Conn, link *sessionLink, eng *engine.Engine, data []byte) {
	var msg ws.RecordRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = conn.WriteError(string(response.ErrInvalidPayload), "malformed record_start")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		_ = conn.WriteError(string(response.ErrInvalidID), "invalid q_id format")
		return
	}

	question := findQuestion(eng.Paper, questionID)
	if question == nil {
		_ = conn.WriteError(string(response.ErrNotFound), "unknown question")
		return
	}
	if !question.IsSpeaking() {
		_ = conn.WriteError(string(response.ErrValidation), "recording is only available on speaking questions")
		return
	}

	transcript, err := eng.StartRecording(context.Background(), questionID)
	if err != nil {
		h.writeEngineError(conn, err)
		return
	}

	// Relay growing partials until the window closes. Advisory stream;
	// the channel closes on stop, reset, or submit.
	go func() {
		for partial := range transcript {
			link.send(ws.TranscriptResponse{Event: ws.EventTranscript, Text: partial})
		}
	}()

	_ = conn.WriteTyped(ws.RecordingResponse{
		Event: ws.EventRecording,
		QID:   msg.QID,
		Phase: string(engine.PhaseRecording),
	})
}

func (h *WSHandler) handleRecordStop(conn *ws.Conn, eng *engine.Engine) {
	questionID, active := eng.Capture.ActiveQuestion()
	if !active {
		h.writeEngineError(conn, engine.ErrNoActiveRecording)
		return
	}

	url, err := eng.StopRecording(context.Background())
	if err != nil {
		h.writeEngineError(conn, err)
		return
	}
	_ = conn.WriteTyped(ws.ArtifactResponse{
		Event: ws.EventArtifact,
		QID:   questionID.String(),
		URL:   url,
	})
}

func (h *WSHandler) handleRecordReset(conn *ws.Conn, eng *engine.Engine) {
	eng.Capture.Reset()
	_ = conn.WriteTyped(ws.RecordingResponse{
		Event: ws.EventRecording,
		Phase: string(engine.PhaseIdle),
	})
}

func (h *WSHandler) handleSubmit(conn *ws.Conn, eng *engine.Engine, wsLog zerolog.Logger) {
	if err := eng.Submit(context.Background()); err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		h.writeEngineError(conn, err)
		return
	}
	// OnSubmitted already pushed the submitted event through the link.
}

func (h *WSHandler) writeEngineError(conn *ws.Conn, err error) {
	code := wsErrorCode(err)
	_ = conn.WriteError(string(code), response.GetMessage(code))
}

// wsErrorCode maps engine sentinels onto wire error codes.
func wsErrorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, engine.ErrSessionClosed):
		return response.ErrSessionClosed
	case errors.Is(err, engine.ErrRetryablePersistence):
		return response.ErrRetryablePersistence
	case errors.Is(err, engine.ErrPermissionDenied):
		return response.ErrPermissionDenied
	case errors.Is(err, engine.ErrDeviceUnavailable):
		return response.ErrDeviceUnavailable
	case errors.Is(err, engine.ErrNoActiveRecording):
		return response.ErrNoActiveRecording
	case errors.Is(err, engine.ErrEmptyContent):
		return response.ErrEmptyContent
	case errors.Is(err, engine.ErrNotFound):
		return response.ErrNotFound
	default:
		return response.ErrInternal
	}
}

// findQuestion scans the paper for a question by ID.
func findQuestion(paper *model.ExamPaper, questionID uuid.UUID) *model.Question {
	for si := range paper.Sections {
		questions := paper.Sections[si].Questions()
		for qi := range questions {
			if questions[qi].ID == questionID {
				return &questions[qi]
			}
		}
	}
	return nil
}
