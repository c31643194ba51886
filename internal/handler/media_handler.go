package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linguaprep/examroom-backend/internal/response"
	"github.com/linguaprep/examroom-backend/internal/service"
)

// MediaHandler handles recording artifact uploads over REST, for clients
// that captured audio offline instead of streaming it.
type MediaHandler struct {
	mediaService *service.MediaService
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(mediaService *service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// UploadRecording godoc
// POST /api/v1/student/media/recordings
// Uploads an audio recording and returns its URL. The client binds the
// URL to a question with a regular autosave.
func (h *MediaHandler) UploadRecording(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.mediaService.SaveUpload(file, header)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType):
			response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url})
}
