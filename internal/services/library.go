package services

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/data/catalog"
	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// ImageSummary is one gallery row.
type ImageSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	HasPreview bool   `json:"has_preview,omitempty"`
}

// LibraryService lists and deletes ingested images. The tile directory tree
// is the source of existence truth; the catalog only decorates it.
type LibraryService interface {
	ListImages(ctx context.Context) ([]ImageSummary, error)
	DeleteImage(ctx context.Context, imageID string) error
}

type libraryService struct {
	log      *logger.Logger
	store    catalog.Store
	tilesDir string
}

func NewLibraryService(store catalog.Store, tilesDir string, baseLog *logger.Logger) LibraryService {
	return &libraryService{
		log:      baseLog.With("service", "LibraryService"),
		store:    store,
		tilesDir: tilesDir,
	}
}

// ListImages enumerates pyramids present on disk, taking display names from
// the catalog where a row exists and falling back to the raw id. A broken
// catalog degrades names, never the listing.
func (s *libraryService) ListImages(ctx context.Context) ([]ImageSummary, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if errors.Is(err, os.ErrNotExist) {
		return []ImageSummary{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	if rows, err := s.store.ReadCatalog(); err != nil {
		s.log.Warn("catalog unreadable; listing with raw ids", "error", err)
	} else {
		for _, r := range rows {
			names[r.ID] = r.Name
		}
	}

	out := []ImageSummary{}
	for _, e := range entries {
		if !e.IsDir() || !types.ValidImageID(e.Name()) {
			continue
		}
		id := e.Name()
		if _, err := os.Stat(filepath.Join(s.tilesDir, id, "image.dzi")); err != nil {
			continue
		}
		name := names[id]
		if name == "" {
			name = id
		}
		_, previewErr := os.Stat(filepath.Join(s.tilesDir, id, "preview.png"))
		out = append(out, ImageSummary{
			ID:         id,
			Name:       name,
			Path:       path.Join("tiles", id, "image.dzi"),
			HasPreview: previewErr == nil,
		})
	}
	return out, nil
}

// DeleteImage removes the catalog row, the annotation list and the tile
// directory. Metadata removal is the part that can fail the operation; a
// filesystem straggler is only warned about so the catalog never outlives
// its pyramid.
func (s *libraryService) DeleteImage(ctx context.Context, imageID string) error {
	if !types.ValidImageID(imageID) {
		return failf(KindInvalidInput, "image id %q is not a valid identifier", imageID)
	}

	removed, err := s.store.RemoveImage(ctx, imageID)
	if err != nil {
		if errors.Is(err, catalog.ErrInconsistent) {
			s.log.Error("catalog and annotation files diverged during deletion; manual repair needed",
				"id", imageID, "error", err)
			return fail(KindPersistenceInconsistent, err)
		}
		return err
	}

	if err := os.RemoveAll(filepath.Join(s.tilesDir, imageID)); err != nil {
		s.log.Warn("tile directory removal failed; metadata already gone", "id", imageID, "error", err)
	}

	s.log.Info("image deleted", "id", imageID, "had_catalog_row", removed)
	return nil
}
