package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/data/catalog"
	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/download"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/nasa"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/tiler"
)

// IngestRequest describes one image submission. Source selects which of the
// reference fields apply.
type IngestRequest struct {
	Source types.Source

	// NASA submissions.
	NasaID      string
	Title       string
	ResolvedURL string

	// Direct URL submissions.
	URL string
}

type IngestResult struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Cached bool   `json:"cached,omitempty"`
}

// Downloader stages a remote file locally. The cleanup removes every staging
// artifact, including files later stages drop next to the staged one.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (string, func(), error)
}

// AssetResolver picks the download URL for a NASA asset id.
type AssetResolver interface {
	ResolveDownloadURL(ctx context.Context, nasaID string) (string, error)
}

// PreviewRenderer writes a small preview of srcPath to dstPath.
type PreviewRenderer interface {
	RenderFile(srcPath, dstPath, label string) error
}

// IngestService runs the download -> convert -> tile -> register pipeline.
// Same source, same id, and at most one pyramid build per id: a present
// descriptor short-circuits everything.
type IngestService interface {
	Ingest(ctx context.Context, req IngestRequest) (IngestResult, error)
}

type ingestService struct {
	log      *logger.Logger
	store    catalog.Store
	resolver AssetResolver
	fetcher  Downloader
	tools    tiler.Tools
	preview  PreviewRenderer

	tilesDir   string
	maxNameLen int
	maxRefLen  int
	maxURLLen  int

	group singleflight.Group
}

func NewIngestService(
	store catalog.Store,
	resolver AssetResolver,
	fetcher Downloader,
	tools tiler.Tools,
	preview PreviewRenderer,
	tilesDir string,
	maxNameLen int,
	baseLog *logger.Logger,
) IngestService {
	serviceLog := baseLog.With("service", "IngestService")
	if maxNameLen <= 0 {
		maxNameLen = 200
	}
	return &ingestService{
		log:        serviceLog,
		store:      store,
		resolver:   resolver,
		fetcher:    fetcher,
		tools:      tools,
		preview:    preview,
		tilesDir:   tilesDir,
		maxNameLen: maxNameLen,
		maxRefLen:  128,
		maxURLLen:  2048,
	}
}

func (s *ingestService) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	ref, err := s.canonicalRef(req)
	if err != nil {
		return IngestResult{}, err
	}
	id := types.ContentID(req.Source, ref)

	// Concurrent submissions of the same source share one pipeline run
	// instead of racing the cache check.
	v, err, _ := s.group.Do(id, func() (any, error) {
		res, err := s.ingestOnce(ctx, id, ref, req)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	return v.(IngestResult), nil
}

// canonicalRef validates the request and returns the logical source
// reference the id is derived from.
func (s *ingestService) canonicalRef(req IngestRequest) (string, error) {
	switch req.Source {
	case types.SourceNASA:
		nasaID := strings.TrimSpace(req.NasaID)
		if nasaID == "" {
			return "", failf(KindInvalidInput, "nasa_id is required")
		}
		if len(nasaID) > s.maxRefLen {
			return "", failf(KindInvalidInput, "nasa_id exceeds %d characters", s.maxRefLen)
		}
		if req.ResolvedURL != "" {
			if err := validateHTTPURL(req.ResolvedURL, s.maxURLLen); err != nil {
				return "", fail(KindInvalidInput, fmt.Errorf("imageUrl: %w", err))
			}
		}
		return nasaID, nil
	case types.SourceURL:
		raw := strings.TrimSpace(req.URL)
		if raw == "" {
			return "", failf(KindInvalidInput, "imageUrl is required")
		}
		if err := validateHTTPURL(raw, s.maxURLLen); err != nil {
			return "", fail(KindInvalidInput, fmt.Errorf("imageUrl: %w", err))
		}
		return raw, nil
	default:
		return "", failf(KindInvalidInput, "unknown source %q", req.Source)
	}
}

func (s *ingestService) ingestOnce(ctx context.Context, id, ref string, req IngestRequest) (IngestResult, error) {
	relPath := path.Join("tiles", id, "image.dzi")
	descriptor := filepath.Join(s.tilesDir, id, "image.dzi")

	// Descriptor presence is the authoritative cache signal; a stale catalog
	// row neither helps nor hurts here.
	if _, err := os.Stat(descriptor); err == nil {
		s.log.Info("tile cache hit", "id", id, "source", req.Source)
		return IngestResult{ID: id, Path: relPath, Cached: true}, nil
	}

	downloadURL, err := s.resolveDownloadURL(ctx, req)
	if err != nil {
		return IngestResult{}, err
	}

	staged, cleanupStaging, err := s.fetcher.Fetch(ctx, downloadURL)
	if cleanupStaging != nil {
		defer cleanupStaging()
	}
	if err != nil {
		return IngestResult{}, classifyFetchError(err)
	}

	name := s.displayName(req, ref)
	tileDir := filepath.Join(s.tilesDir, id)

	res, err := s.buildAndRegister(ctx, id, ref, relPath, name, staged, tileDir, req.Source)
	if err != nil {
		// A retry must start from a clean slate: no partial pyramid blocks
		// the next attempt at this id.
		if rmErr := os.RemoveAll(tileDir); rmErr != nil {
			s.log.Warn("partial tile cleanup failed", "id", id, "error", rmErr)
		}
		return IngestResult{}, err
	}
	return res, nil
}

func (s *ingestService) buildAndRegister(ctx context.Context, id, ref, relPath, name, staged, tileDir string, source types.Source) (IngestResult, error) {
	tileInput := staged
	if strings.EqualFold(filepath.Ext(staged), ".img") {
		converted, err := s.tools.ConvertPDSToTIFF(ctx, staged, filepath.Dir(staged))
		if err != nil {
			return IngestResult{}, fail(KindConversionFailed, err)
		}
		tileInput = converted
	}

	if _, err := s.tools.BuildPyramid(ctx, tileInput, tileDir); err != nil {
		return IngestResult{}, fail(KindTilingFailed, err)
	}

	if s.preview != nil {
		if err := s.preview.RenderFile(tileInput, filepath.Join(tileDir, "preview.png"), name); err != nil {
			s.log.Warn("preview render failed", "id", id, "error", err)
		}
	}

	rec := types.ImageRecord{
		ID:        id,
		Name:      name,
		Path:      relPath,
		Source:    source,
		SourceRef: ref,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.RegisterImage(ctx, rec); err != nil {
		if errors.Is(err, catalog.ErrInconsistent) {
			s.log.Error("catalog and annotation files diverged during registration; manual repair needed",
				"id", id, "error", err)
			return IngestResult{}, fail(KindPersistenceInconsistent, err)
		}
		return IngestResult{}, fmt.Errorf("register image %s: %w", id, err)
	}

	s.log.Info("image ingested", "id", id, "source", source, "name", name)
	return IngestResult{ID: id, Path: relPath}, nil
}

func (s *ingestService) resolveDownloadURL(ctx context.Context, req IngestRequest) (string, error) {
	if req.Source == types.SourceURL {
		return strings.TrimSpace(req.URL), nil
	}
	if req.ResolvedURL != "" {
		return req.ResolvedURL, nil
	}
	href, err := s.resolver.ResolveDownloadURL(ctx, strings.TrimSpace(req.NasaID))
	if err != nil {
		if errors.Is(err, nasa.ErrNoDownloadableAsset) {
			return "", fail(KindNoDownloadableAsset, err)
		}
		return "", fail(KindDownloadFailed, err)
	}
	return href, nil
}

func (s *ingestService) displayName(req IngestRequest, ref string) string {
	if req.Source == types.SourceNASA {
		if strings.TrimSpace(req.Title) != "" {
			return types.SanitizeName(req.Title, s.maxNameLen)
		}
		return types.SanitizeName(ref, s.maxNameLen)
	}
	if u, err := url.Parse(ref); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return types.SanitizeName(base, s.maxNameLen)
		}
	}
	return types.SanitizeName(ref, s.maxNameLen)
}

func classifyFetchError(err error) error {
	switch {
	case errors.Is(err, download.ErrTooLarge):
		return fail(KindDownloadTooLarge, err)
	case errors.Is(err, download.ErrTimeout):
		return fail(KindDownloadTimeout, err)
	case errors.Is(err, download.ErrNotImage):
		return fail(KindNotAnImage, err)
	default:
		return fail(KindDownloadFailed, err)
	}
}

func validateHTTPURL(raw string, maxLen int) error {
	if len(raw) > maxLen {
		return fmt.Errorf("exceeds %d characters", maxLen)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
