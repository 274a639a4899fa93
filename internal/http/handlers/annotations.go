package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/response"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

type AnnotationHandler struct {
	log         *logger.Logger
	annotations services.AnnotationService
}

func NewAnnotationHandler(log *logger.Logger, annotations services.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{
		log:         log.With("handler", "AnnotationHandler"),
		annotations: annotations,
	}
}

// addAnnotationReq uses pointer coordinates so a missing point.x is
// distinguishable from a legitimate 0, and a non-numeric one fails the bind.
type addAnnotationReq struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Point struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	} `json:"point"`
}

// GET /images/:id/annotations
func (h *AnnotationHandler) List(c *gin.Context) {
	list, err := h.annotations.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, list)
}

// POST /images/:id/annotations
func (h *AnnotationHandler) Add(c *gin.Context) {
	capRequestBody(c)

	var req addAnnotationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput), err)
		return
	}
	if req.Point.X == nil {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput),
			fmt.Errorf("point.x is required"))
		return
	}
	if req.Point.Y == nil {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput),
			fmt.Errorf("point.y is required"))
		return
	}

	rec := types.AnnotationRecord{
		ID:   req.ID,
		Text: req.Text,
		Point: types.Point{
			X: *req.Point.X,
			Y: *req.Point.Y,
		},
	}
	saved, err := h.annotations.Add(c.Request.Context(), c.Param("id"), rec)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, saved)
}
