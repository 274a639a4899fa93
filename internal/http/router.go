package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/handlers"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/middleware"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	ImageHandler      *handlers.ImageHandler
	AnnotationHandler *handlers.AnnotationHandler
	IngestHandler     *handlers.IngestHandler
	NASAHandler       *handlers.NASAHandler
	HealthHandler     *handlers.HealthHandler

	// TilesDir, when set, is served at /tiles so the viewer can reach the
	// descriptor and tile files at their registered paths.
	TilesDir string

	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("dzi-pipeline"))
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
	}

	if cfg.ImageHandler != nil {
		r.GET("/images", cfg.ImageHandler.List)
		r.DELETE("/images/:id", cfg.ImageHandler.Delete)
		r.GET("/images/:id/preview", cfg.ImageHandler.Preview)
	}

	if cfg.AnnotationHandler != nil {
		r.GET("/images/:id/annotations", cfg.AnnotationHandler.List)
		r.POST("/images/:id/annotations", cfg.AnnotationHandler.Add)
	}

	if cfg.IngestHandler != nil {
		r.POST("/process-nasa-image", cfg.IngestHandler.ProcessNASAImage)
		r.POST("/process-url", cfg.IngestHandler.ProcessURL)
	}

	if cfg.NASAHandler != nil {
		r.GET("/nasa/search", cfg.NASAHandler.Search)
		r.GET("/nasa/asset-info/:nasa_id", cfg.NASAHandler.AssetInfo)
	}

	if cfg.TilesDir != "" {
		r.Static("/tiles", cfg.TilesDir)
	}

	return r
}
