package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/data/catalog"
	httpx "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/http/handlers"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/observability"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/download"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/nasa"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/preview"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/tiler"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/services"
)

type Services struct {
	Ingest      services.IngestService
	Library     services.LibraryService
	Annotations services.AnnotationService
}

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Store    catalog.Store
	Services Services
	Server   *httpx.Server

	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.TilesDir(), cfg.StagingDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Sync()
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "dzi-pipeline",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	store, err := catalog.NewFileStore(cfg.DataDir, cfg.CatalogLockTimeout, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init catalog store: %w", err)
	}

	nasaClient, err := nasa.NewClient(nasa.Config{
		BaseURL:     cfg.NASABaseURL,
		Timeout:     cfg.NASATimeout,
		SearchLimit: cfg.NASASearchLimit,
	}, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init nasa client: %w", err)
	}

	fetcher := download.NewFetcher(download.Config{
		StagingDir: cfg.StagingDir(),
		MaxBytes:   cfg.MaxDownloadBytes(),
		Timeout:    cfg.StageTimeout,
	}, log)

	tools := tiler.New(tiler.Options{
		VipsBin:     cfg.VipsBin,
		GDALBin:     cfg.GDALBin,
		TileSize:    cfg.TileSize,
		Overlap:     cfg.TileOverlap,
		JPEGQuality: cfg.TileQuality,
		Timeout:     cfg.StageTimeout,
	}, log)

	previewRenderer := preview.NewRenderer(cfg.PreviewMaxEdge, log)

	svcs := Services{
		Ingest: services.NewIngestService(
			store, nasaClient, fetcher, tools, previewRenderer,
			cfg.TilesDir(), cfg.NameMaxLen, log,
		),
		Library: services.NewLibraryService(store, cfg.TilesDir(), log),
		Annotations: services.NewAnnotationService(
			store, cfg.TilesDir(),
			cfg.AnnotationIDMaxLen, cfg.AnnotationTextMaxLen, log,
		),
	}

	// The startup probe only warns: the catalog and annotation endpoints
	// stay useful on a host without vips, and /health reports the gap.
	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := tools.AssertReady(probeCtx); err != nil {
		log.Warn("external tiling tools unavailable; ingestion will fail until installed", "error", err)
	} else {
		log.Info("external tiling tools available", "vips", cfg.VipsBin, "gdal", cfg.GDALBin)
	}
	cancel()

	server := httpx.NewServer(httpx.RouterConfig{
		Log:               log,
		ImageHandler:      handlers.NewImageHandler(log, svcs.Library, cfg.TilesDir()),
		AnnotationHandler: handlers.NewAnnotationHandler(log, svcs.Annotations),
		IngestHandler:     handlers.NewIngestHandler(log, svcs.Ingest),
		NASAHandler:       handlers.NewNASAHandler(log, nasaClient),
		HealthHandler:     handlers.NewHealthHandler(log, tools),
		TilesDir:          cfg.TilesDir(),
		AllowedOrigins:    cfg.AllowedOrigins,
	}, cfg.Addr)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        store,
		Services:     svcs,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.Cfg.Addr)
		errCh <- a.Server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
