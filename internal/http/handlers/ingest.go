package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/response"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

type IngestHandler struct {
	log    *logger.Logger
	ingest services.IngestService
}

func NewIngestHandler(log *logger.Logger, ingest services.IngestService) *IngestHandler {
	return &IngestHandler{
		log:    log.With("handler", "IngestHandler"),
		ingest: ingest,
	}
}

type processNASAImageReq struct {
	NasaID   string `json:"nasa_id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
}

type processURLReq struct {
	ImageURL string `json:"imageUrl"`
}

// POST /process-nasa-image
func (h *IngestHandler) ProcessNASAImage(c *gin.Context) {
	capRequestBody(c)

	var req processNASAImageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput), err)
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), services.IngestRequest{
		Source:      types.SourceNASA,
		NasaID:      req.NasaID,
		Title:       req.Title,
		ResolvedURL: req.ImageURL,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /process-url
func (h *IngestHandler) ProcessURL(c *gin.Context) {
	capRequestBody(c)

	var req processURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput), err)
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), services.IngestRequest{
		Source: types.SourceURL,
		URL:    req.ImageURL,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, res)
}
