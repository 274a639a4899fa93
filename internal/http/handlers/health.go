package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/response"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/tiler"
)

type HealthHandler struct {
	log   *logger.Logger
	tools tiler.Tools
}

func NewHealthHandler(log *logger.Logger, tools tiler.Tools) *HealthHandler {
	return &HealthHandler{
		log:   log.With("handler", "HealthHandler"),
		tools: tools,
	}
}

// GET /health
//
// The tool probe runs per call, not just at startup, so a vips install or
// removal on a live host shows up without a restart.
func (h *HealthHandler) Health(c *gin.Context) {
	toolAvailable := false
	if h.tools != nil {
		toolAvailable = h.tools.AssertReady(c.Request.Context()) == nil
	}

	status := "ok"
	if !toolAvailable {
		status = "degraded"
	}

	response.RespondOK(c, gin.H{
		"status":                status,
		"externalToolAvailable": toolAvailable,
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
	})
}
