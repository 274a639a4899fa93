package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/response"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

// maxBodyBytes caps JSON request bodies; image bytes never travel through
// these endpoints.
const maxBodyBytes = 1 << 20

func capRequestBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
}

func statusForKind(kind services.FailureKind) int {
	switch kind {
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError maps a service failure onto the wire: the kind picks
// the status and code slug, the cause becomes the human-readable reason.
func respondServiceError(c *gin.Context, err error) {
	var pe *services.PipelineError
	if errors.As(err, &pe) {
		cause := pe.Err
		if cause == nil {
			cause = err
		}
		response.RespondError(c, statusForKind(pe.Kind), string(pe.Kind), cause)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
}
