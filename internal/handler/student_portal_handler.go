package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/linguaprep/examroom-backend/internal/middleware"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/linguaprep/examroom-backend/internal/response"
	"github.com/linguaprep/examroom-backend/internal/service"
	"github.com/linguaprep/examroom-backend/internal/validator"
)

// StudentPortalHandler handles the student-facing session endpoints:
// entering an exam, fetching the paper, restoring state after a reload,
// and the REST submission retry path.
type StudentPortalHandler struct {
	sessionService *service.SessionService
	examService    *service.ExamService
	registry       *engine.Registry
	persister      *service.AnswerPersister
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.SessionService,
	examService *service.ExamService,
	registry *engine.Registry,
	persister *service.AnswerPersister,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		examService:    examService,
		registry:       registry,
		persister:      persister,
	}
}

// EnterExam godoc
// POST /api/v1/student/exams/:exam_id/enter
// Creates a session or resumes the open one (idempotent).
func (h *StudentPortalHandler) EnterExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.EnterExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the normalized paper from Redis (bypasses PostgreSQL).
// SECURITY: Requires an open session for this exam — prevents IDOR.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.sessionService.GetSession(c.Request.Context(), examID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), examID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, engine.ErrEmptyContent):
			response.Fail(c, http.StatusConflict, response.ErrEmptyContent)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetSessionState godoc
// GET /api/v1/student/exams/:exam_id/state
// Returns remaining time and saved answers so the client can restore the
// exam screen after a page reload.
func (h *StudentPortalHandler) GetSessionState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), session)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// POST /api/v1/student/exams/:exam_id/answers
// REST autosave fallback for clients without a live WebSocket. Prefers
// the live engine so in-memory state stays consistent; otherwise queues
// the write directly.
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	var value model.AnswerValue
	if len(req.Parts) > 0 {
		value = model.PartsAnswer(req.Parts)
	} else {
		value = model.TextAnswer(req.Answer)
	}

	if eng, ok := h.registry.Get(session.ID); ok {
		if err := eng.SetAnswer(questionID, value); err != nil {
			response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
			return
		}
	} else {
		h.persister.Queue(engine.PersistIntent{
			SessionID:  session.ID,
			QuestionID: questionID,
			Value:      value.Encode(),
		})
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// SubmitSession godoc
// POST /api/v1/student/exams/:exam_id/submit
// REST submission path, used to retry after a transient failure or when
// the WebSocket is gone. Coalesces with any in-flight or completed
// submission; a retryable failure returns 503 so the client tries again.
func (h *StudentPortalHandler) SubmitSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			// No open session. Either never entered or already submitted;
			// a submit retry after success lands here and is a no-op.
			response.Success(c, http.StatusOK, gin.H{"status": "submitted"})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Prefer the live engine so its in-memory answers win; fall back to
	// the saved snapshot when no engine is running.
	if eng, ok := h.registry.Get(session.ID); ok {
		err = eng.Submit(c.Request.Context())
	} else {
		err = h.sessionService.SubmitFromSaved(c.Request.Context(), session.ID)
	}
	if err != nil {
		if errors.Is(err, engine.ErrRetryablePersistence) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrRetryablePersistence)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "submitted"})
}
