package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/response"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

type ImageHandler struct {
	log      *logger.Logger
	library  services.LibraryService
	tilesDir string
}

func NewImageHandler(log *logger.Logger, library services.LibraryService, tilesDir string) *ImageHandler {
	return &ImageHandler{
		log:      log.With("handler", "ImageHandler"),
		library:  library,
		tilesDir: tilesDir,
	}
}

// GET /images
func (h *ImageHandler) List(c *gin.Context) {
	images, err := h.library.ListImages(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, images)
}

// DELETE /images/:id
func (h *ImageHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.library.DeleteImage(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondMessage(c, fmt.Sprintf("image %s deleted", id))
}

// GET /images/:id/preview
func (h *ImageHandler) Preview(c *gin.Context) {
	id := c.Param("id")
	if !types.ValidImageID(id) {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput),
			fmt.Errorf("image id %q is not a valid identifier", id))
		return
	}
	previewPath := filepath.Join(h.tilesDir, id, "preview.png")
	if _, err := os.Stat(previewPath); err != nil {
		response.RespondError(c, http.StatusNotFound, string(services.KindNotFound),
			fmt.Errorf("no preview for image %s", id))
		return
	}
	c.File(previewPath)
}
