package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/response"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/nasa"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

const (
	minSearchQueryLen = 2
	maxSearchQueryLen = 200
)

type NASAHandler struct {
	log    *logger.Logger
	client nasa.Client
}

func NewNASAHandler(log *logger.Logger, client nasa.Client) *NASAHandler {
	return &NASAHandler{
		log:    log.With("handler", "NASAHandler"),
		client: client,
	}
}

// GET /nasa/search?q=
func (h *NASAHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if n := utf8.RuneCountInString(q); n < minSearchQueryLen || n > maxSearchQueryLen {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput),
			fmt.Errorf("query length must be between %d and %d characters", minSearchQueryLen, maxSearchQueryLen))
		return
	}

	items, err := h.client.Search(c.Request.Context(), q)
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "nasa_search_failed", err)
		return
	}
	response.RespondOK(c, items)
}

// GET /nasa/asset-info/:nasa_id
func (h *NASAHandler) AssetInfo(c *gin.Context) {
	nasaID := strings.TrimSpace(c.Param("nasa_id"))
	if nasaID == "" {
		response.RespondError(c, http.StatusBadRequest, string(services.KindInvalidInput),
			fmt.Errorf("nasa_id is required"))
		return
	}

	info, err := h.client.AssetInfo(c.Request.Context(), nasaID)
	if err != nil {
		if errors.Is(err, nasa.ErrNoDownloadableAsset) {
			response.RespondError(c, http.StatusNotFound, string(services.KindNotFound),
				fmt.Errorf("no downloadable asset for %s", nasaID))
			return
		}
		response.RespondError(c, http.StatusBadGateway, "nasa_asset_lookup_failed", err)
		return
	}
	response.RespondOK(c, info)
}
