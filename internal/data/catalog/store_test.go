package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dir := t.TempDir()
	st, err := NewFileStore(dir, time.Second, log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return st, dir
}

func testRecord(ref string) types.ImageRecord {
	id := types.ContentID(types.SourceURL, ref)
	return types.ImageRecord{
		ID:        id,
		Name:      "Test Image",
		Path:      "tiles/" + id + "/image.dzi",
		Source:    types.SourceURL,
		SourceRef: ref,
		CreatedAt: time.Now().UTC(),
	}
}

func TestReadCatalogMissingFile(t *testing.T) {
	st, _ := newTestStore(t)
	rows, err := st.ReadCatalog()
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty catalog, got %d rows", len(rows))
	}
	m, err := st.ReadAnnotations()
	if err != nil {
		t.Fatalf("ReadAnnotations: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty annotation map, got %d keys", len(m))
	}
}

func TestRegisterImageIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	rec := testRecord("https://example.com/moon.jpg")

	if err := st.RegisterImage(ctx, rec); err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}
	if err := st.RegisterImage(ctx, rec); err != nil {
		t.Fatalf("second RegisterImage: %v", err)
	}

	rows, err := st.ReadCatalog()
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 catalog row, got %d", len(rows))
	}
	if rows[0].ID != rec.ID || rows[0].Name != rec.Name {
		t.Fatalf("row mismatch: %+v", rows[0])
	}

	m, err := st.ReadAnnotations()
	if err != nil {
		t.Fatalf("ReadAnnotations: %v", err)
	}
	list, ok := m[rec.ID]
	if !ok {
		t.Fatal("annotation list not seeded for registered image")
	}
	if len(list) != 0 {
		t.Fatalf("expected empty seeded list, got %d entries", len(list))
	}
}

func TestRegisterImageRestoresMissingAnnotationKey(t *testing.T) {
	st, dir := newTestStore(t)
	ctx := context.Background()
	rec := testRecord("https://example.com/heal.jpg")
	if err := st.RegisterImage(ctx, rec); err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "annotations.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("wipe annotations: %v", err)
	}

	if err := st.RegisterImage(ctx, rec); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	rows, err := st.ReadCatalog()
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after re-register, got %d", len(rows))
	}
	m, err := st.ReadAnnotations()
	if err != nil {
		t.Fatalf("ReadAnnotations: %v", err)
	}
	if _, ok := m[rec.ID]; !ok {
		t.Fatal("annotation key not restored on re-register")
	}
}

func TestRegisterImageRejectsInvalidRecord(t *testing.T) {
	st, _ := newTestStore(t)
	rec := testRecord("https://example.com/x.jpg")
	rec.Name = ""
	if err := st.RegisterImage(context.Background(), rec); err == nil {
		t.Fatal("expected validation error, got nil")
	}
	rows, err := st.ReadCatalog()
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("invalid record was persisted: %d rows", len(rows))
	}
}

func TestAppendAnnotationReloadsBeforeMutate(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dir := t.TempDir()
	a, err := NewFileStore(dir, time.Second, log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	b, err := NewFileStore(dir, time.Second, log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	rec := testRecord("https://example.com/p.jpg")
	if err := a.RegisterImage(ctx, rec); err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}
	if err := b.AppendAnnotation(ctx, rec.ID, types.AnnotationRecord{ID: "n1", Text: "first", Point: types.Point{X: 0.1, Y: 0.2}}); err != nil {
		t.Fatalf("AppendAnnotation via b: %v", err)
	}
	if err := a.AppendAnnotation(ctx, rec.ID, types.AnnotationRecord{ID: "n2", Text: "second", Point: types.Point{X: 0.3, Y: 0.4}}); err != nil {
		t.Fatalf("AppendAnnotation via a: %v", err)
	}

	m, err := a.ReadAnnotations()
	if err != nil {
		t.Fatalf("ReadAnnotations: %v", err)
	}
	list := m[rec.ID]
	if len(list) != 2 {
		t.Fatalf("expected 2 annotations after cross-handle appends, got %d", len(list))
	}
	if list[0].ID != "n1" || list[1].ID != "n2" {
		t.Fatalf("append order lost: %+v", list)
	}
}

func TestRemoveImage(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	rec := testRecord("https://example.com/r.jpg")
	if err := st.RegisterImage(ctx, rec); err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}
	if err := st.AppendAnnotation(ctx, rec.ID, types.AnnotationRecord{ID: "x", Text: "t", Point: types.Point{}}); err != nil {
		t.Fatalf("AppendAnnotation: %v", err)
	}

	removed, err := st.RemoveImage(ctx, rec.ID)
	if err != nil {
		t.Fatalf("RemoveImage: %v", err)
	}
	if !removed {
		t.Fatal("expected removed=true")
	}

	rows, err := st.ReadCatalog()
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("catalog row survived removal: %d rows", len(rows))
	}
	m, err := st.ReadAnnotations()
	if err != nil {
		t.Fatalf("ReadAnnotations: %v", err)
	}
	if _, ok := m[rec.ID]; ok {
		t.Fatal("annotation key survived removal")
	}

	removed, err = st.RemoveImage(ctx, rec.ID)
	if err != nil {
		t.Fatalf("second RemoveImage: %v", err)
	}
	if removed {
		t.Fatal("expected removed=false on absent id")
	}
}

func TestReadCatalogRejectsMalformedRow(t *testing.T) {
	st, dir := newTestStore(t)
	bad := `[{"id":"0123456789abcdef","name":"","path":"p","source":"url","source_ref":"r","created_at":"2026-01-02T15:04:05Z"}]`
	if err := os.WriteFile(filepath.Join(dir, "images.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	_, err := st.ReadCatalog()
	if err == nil {
		t.Fatal("expected error for malformed row, got nil")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Fatalf("error %q does not name the missing field", err)
	}
}

func TestWriteCatalogLeavesNoTempFiles(t *testing.T) {
	st, dir := newTestStore(t)
	if err := st.WriteCatalog(context.Background(), []types.ImageRecord{testRecord("https://example.com/t.jpg")}); err != nil {
		t.Fatalf("WriteCatalog: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteCatalogNilRowsPersistsEmptyArray(t *testing.T) {
	st, dir := newTestStore(t)
	if err := st.WriteCatalog(context.Background(), nil); err != nil {
		t.Fatalf("WriteCatalog(nil): %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "images.json"))
	if err != nil {
		t.Fatalf("read catalog file: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected [], got %q", raw)
	}
}

func TestMutationFailsWhenLockHeldElsewhere(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dir := t.TempDir()
	st, err := NewFileStore(dir, 150*time.Millisecond, log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	outside := flock.New(filepath.Join(dir, "catalog.lock"))
	locked, err := outside.TryLock()
	if err != nil || !locked {
		t.Fatalf("seed lock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = outside.Unlock() }()

	err = st.RegisterImage(context.Background(), testRecord("https://example.com/l.jpg"))
	if err == nil {
		t.Fatal("expected lock timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "lock") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInconsistencyWrapsErrInconsistent(t *testing.T) {
	st, dir := newTestStore(t)
	ctx := context.Background()
	// A directory where the annotations file should be makes the second write
	// of the joint registration fail after the catalog write succeeded.
	if err := os.Mkdir(filepath.Join(dir, "annotations.json"), 0o755); err != nil {
		t.Fatalf("plant directory: %v", err)
	}
	err := st.RegisterImage(ctx, testRecord("https://example.com/i.jpg"))
	if err == nil {
		t.Fatal("expected inconsistency error, got nil")
	}
	if !errors.Is(err, ErrInconsistent) {
		t.Fatalf("error %v is not ErrInconsistent", err)
	}
	rows, readErr := st.ReadCatalog()
	if readErr != nil {
		t.Fatalf("ReadCatalog: %v", readErr)
	}
	if len(rows) != 1 {
		t.Fatalf("catalog write should have landed before the failure, got %d rows", len(rows))
	}
}
