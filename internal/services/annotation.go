package services

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/data/catalog"
	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// AnnotationService reads and appends viewer pins.
type AnnotationService interface {
	// List returns the pins for an image, oldest first. Unknown images get
	// an empty list, matching the viewer's empty-gallery behavior.
	List(ctx context.Context, imageID string) ([]types.AnnotationRecord, error)

	// Add validates and appends one pin. The image's pyramid must exist.
	Add(ctx context.Context, imageID string, rec types.AnnotationRecord) (types.AnnotationRecord, error)
}

type annotationService struct {
	log        *logger.Logger
	store      catalog.Store
	tilesDir   string
	maxIDLen   int
	maxTextLen int
}

func NewAnnotationService(store catalog.Store, tilesDir string, maxIDLen, maxTextLen int, baseLog *logger.Logger) AnnotationService {
	if maxIDLen <= 0 {
		maxIDLen = 128
	}
	if maxTextLen <= 0 {
		maxTextLen = 500
	}
	return &annotationService{
		log:        baseLog.With("service", "AnnotationService"),
		store:      store,
		tilesDir:   tilesDir,
		maxIDLen:   maxIDLen,
		maxTextLen: maxTextLen,
	}
}

func (s *annotationService) List(ctx context.Context, imageID string) ([]types.AnnotationRecord, error) {
	if !types.ValidImageID(imageID) {
		return nil, failf(KindInvalidInput, "image id %q is not a valid identifier", imageID)
	}
	m, err := s.store.ReadAnnotations()
	if err != nil {
		return nil, err
	}
	list := m[imageID]
	if list == nil {
		list = []types.AnnotationRecord{}
	}
	return list, nil
}

func (s *annotationService) Add(ctx context.Context, imageID string, rec types.AnnotationRecord) (types.AnnotationRecord, error) {
	if !types.ValidImageID(imageID) {
		return types.AnnotationRecord{}, failf(KindInvalidInput, "image id %q is not a valid identifier", imageID)
	}
	if err := rec.Validate(s.maxIDLen, s.maxTextLen); err != nil {
		return types.AnnotationRecord{}, fail(KindInvalidInput, err)
	}
	if _, err := os.Stat(filepath.Join(s.tilesDir, imageID, "image.dzi")); err != nil {
		return types.AnnotationRecord{}, failf(KindNotFound, "image %s not found", imageID)
	}
	if err := s.store.AppendAnnotation(ctx, imageID, rec); err != nil {
		return types.AnnotationRecord{}, err
	}
	s.log.Info("annotation added", "image_id", imageID, "annotation_id", rec.ID)
	return rec, nil
}
