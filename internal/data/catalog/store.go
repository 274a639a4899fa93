package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// ErrInconsistent flags a joint mutation that updated the catalog file but
// failed before the annotation file caught up. The two files are out of sync
// until an operator intervenes; callers must surface this loudly.
var ErrInconsistent = errors.New("catalog and annotation files are out of sync")

// Store persists the image catalog and its annotations. Both live in flat
// JSON files so the data directory stays inspectable and portable.
type Store interface {
	ReadCatalog() ([]types.ImageRecord, error)
	WriteCatalog(ctx context.Context, rows []types.ImageRecord) error

	ReadAnnotations() (map[string][]types.AnnotationRecord, error)
	WriteAnnotations(ctx context.Context, m map[string][]types.AnnotationRecord) error

	// AppendAnnotation reloads, appends and persists under the store lock.
	AppendAnnotation(ctx context.Context, imageID string, rec types.AnnotationRecord) error

	// RegisterImage appends a catalog row and seeds an empty annotation list
	// for it in one locked step. Registering an id that already has a row is
	// a no-op.
	RegisterImage(ctx context.Context, rec types.ImageRecord) error

	// RemoveImage deletes the catalog row and the annotation list for id,
	// tolerating absence of either. It reports whether a row was removed.
	RemoveImage(ctx context.Context, imageID string) (bool, error)
}

type fileStore struct {
	catalogPath     string
	annotationsPath string

	mu          sync.Mutex
	fl          *flock.Flock
	lockTimeout time.Duration
	log         *logger.Logger
}

// NewFileStore returns a Store rooted at dir. The directory is created if
// missing. lockTimeout bounds how long a mutation waits for the cross-process
// file lock before giving up.
func NewFileStore(dir string, lockTimeout time.Duration, baseLog *logger.Logger) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &fileStore{
		catalogPath:     filepath.Join(dir, "images.json"),
		annotationsPath: filepath.Join(dir, "annotations.json"),
		fl:              flock.New(filepath.Join(dir, "catalog.lock")),
		lockTimeout:     lockTimeout,
		log:             baseLog.With("repo", "CatalogStore"),
	}, nil
}

// acquire takes the in-process mutex then the file lock, so concurrent
// handlers in this process queue on the mutex and other processes queue on
// the flock. The returned release undoes both.
func (s *fileStore) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	deadline := time.Now().Add(s.lockTimeout)
	for {
		locked, err := s.fl.TryLock()
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("acquire catalog lock: %w", err)
		}
		if locked {
			return func() {
				_ = s.fl.Unlock()
				s.mu.Unlock()
			}, nil
		}
		if time.Now().After(deadline) {
			s.mu.Unlock()
			return nil, fmt.Errorf("catalog lock held by another process (lock: %s)", s.fl.Path())
		}
		select {
		case <-ctx.Done():
			s.mu.Unlock()
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (s *fileStore) ReadCatalog() ([]types.ImageRecord, error) {
	return s.loadCatalog()
}

func (s *fileStore) loadCatalog() ([]types.ImageRecord, error) {
	raw, err := os.ReadFile(s.catalogPath)
	if errors.Is(err, os.ErrNotExist) {
		return []types.ImageRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var rows []types.ImageRecord
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", s.catalogPath, err)
	}
	if rows == nil {
		rows = []types.ImageRecord{}
	}
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return nil, fmt.Errorf("catalog row %d: %w", i, err)
		}
	}
	return rows, nil
}

func (s *fileStore) WriteCatalog(ctx context.Context, rows []types.ImageRecord) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.writeCatalogLocked(rows)
}

func (s *fileStore) writeCatalogLocked(rows []types.ImageRecord) error {
	if rows == nil {
		rows = []types.ImageRecord{}
	}
	return writeJSONAtomic(s.catalogPath, rows)
}

func (s *fileStore) ReadAnnotations() (map[string][]types.AnnotationRecord, error) {
	return s.loadAnnotations()
}

func (s *fileStore) loadAnnotations() (map[string][]types.AnnotationRecord, error) {
	raw, err := os.ReadFile(s.annotationsPath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]types.AnnotationRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	var m map[string][]types.AnnotationRecord
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse annotations %s: %w", s.annotationsPath, err)
	}
	if m == nil {
		m = map[string][]types.AnnotationRecord{}
	}
	return m, nil
}

func (s *fileStore) WriteAnnotations(ctx context.Context, m map[string][]types.AnnotationRecord) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.writeAnnotationsLocked(m)
}

func (s *fileStore) writeAnnotationsLocked(m map[string][]types.AnnotationRecord) error {
	if m == nil {
		m = map[string][]types.AnnotationRecord{}
	}
	return writeJSONAtomic(s.annotationsPath, m)
}

func (s *fileStore) AppendAnnotation(ctx context.Context, imageID string, rec types.AnnotationRecord) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	m, err := s.loadAnnotations()
	if err != nil {
		return err
	}
	m[imageID] = append(m[imageID], rec)
	return s.writeAnnotationsLocked(m)
}

func (s *fileStore) RegisterImage(ctx context.Context, rec types.ImageRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	rows, err := s.loadCatalog()
	if err != nil {
		return err
	}
	present := false
	for i := range rows {
		if rows[i].ID == rec.ID {
			present = true
			break
		}
	}
	if !present {
		rows = append(rows, rec)
		if err := s.writeCatalogLocked(rows); err != nil {
			return err
		}
	}

	// The annotation key is ensured even for an already-present row, so a
	// retry after an interrupted registration closes the gap.
	m, err := s.loadAnnotations()
	if err != nil {
		return s.registrationFailure(rec.ID, !present, err)
	}
	if _, ok := m[rec.ID]; !ok {
		m[rec.ID] = []types.AnnotationRecord{}
		if err := s.writeAnnotationsLocked(m); err != nil {
			return s.registrationFailure(rec.ID, !present, err)
		}
	}
	return nil
}

// registrationFailure wraps an annotation-side failure. Only a failure that
// follows a catalog write in the same step leaves the two files diverged.
func (s *fileStore) registrationFailure(id string, catalogWritten bool, err error) error {
	if catalogWritten {
		s.log.Error("annotation update failed after catalog write", "image_id", id, "error", err)
		return fmt.Errorf("register image %s: %w: %w", id, ErrInconsistent, err)
	}
	return fmt.Errorf("register image %s: %w", id, err)
}

func (s *fileStore) RemoveImage(ctx context.Context, imageID string) (bool, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	rows, err := s.loadCatalog()
	if err != nil {
		return false, err
	}
	kept := rows[:0]
	removed := false
	for i := range rows {
		if rows[i].ID == imageID {
			removed = true
			continue
		}
		kept = append(kept, rows[i])
	}
	if removed {
		if err := s.writeCatalogLocked(kept); err != nil {
			return false, err
		}
	}

	m, err := s.loadAnnotations()
	if err != nil {
		if removed {
			s.log.Error("annotation reload failed after catalog update", "image_id", imageID, "error", err)
			return true, fmt.Errorf("remove image %s: %w: %w", imageID, ErrInconsistent, err)
		}
		return false, err
	}
	if _, ok := m[imageID]; ok {
		delete(m, imageID)
		if err := s.writeAnnotationsLocked(m); err != nil {
			if removed {
				s.log.Error("annotation write failed after catalog update", "image_id", imageID, "error", err)
				return true, fmt.Errorf("remove image %s: %w: %w", imageID, ErrInconsistent, err)
			}
			return false, err
		}
	}
	return removed, nil
}

// writeJSONAtomic replaces path with the marshalled value via a temp sibling
// and rename, so readers never observe a partially written file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()
	writeErr := func() error {
		if _, err := tmp.Write(data); err != nil {
			return err
		}
		if err := tmp.Sync(); err != nil {
			return err
		}
		return tmp.Close()
	}()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), writeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
