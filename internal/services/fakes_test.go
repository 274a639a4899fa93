package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []types.ImageRecord
	ann  map[string][]types.AnnotationRecord

	registerCalls int
	removeCalls   int
	appendCalls   int

	registerErr error
	removeErr   error
	readErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{ann: map[string][]types.AnnotationRecord{}}
}

func (f *fakeStore) ReadCatalog() ([]types.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]types.ImageRecord, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeStore) WriteCatalog(ctx context.Context, rows []types.ImageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
	return nil
}

func (f *fakeStore) ReadAnnotations() (map[string][]types.AnnotationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := map[string][]types.AnnotationRecord{}
	for k, v := range f.ann {
		out[k] = append([]types.AnnotationRecord{}, v...)
	}
	return out, nil
}

func (f *fakeStore) WriteAnnotations(ctx context.Context, m map[string][]types.AnnotationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ann = m
	return nil
}

func (f *fakeStore) AppendAnnotation(ctx context.Context, imageID string, rec types.AnnotationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	f.ann[imageID] = append(f.ann[imageID], rec)
	return nil
}

func (f *fakeStore) RegisterImage(ctx context.Context, rec types.ImageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerErr != nil {
		return f.registerErr
	}
	for i := range f.rows {
		if f.rows[i].ID == rec.ID {
			return nil
		}
	}
	f.rows = append(f.rows, rec)
	if _, ok := f.ann[rec.ID]; !ok {
		f.ann[rec.ID] = []types.AnnotationRecord{}
	}
	return nil
}

func (f *fakeStore) RemoveImage(ctx context.Context, imageID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	if f.removeErr != nil {
		return false, f.removeErr
	}
	removed := false
	kept := f.rows[:0]
	for i := range f.rows {
		if f.rows[i].ID == imageID {
			removed = true
			continue
		}
		kept = append(kept, f.rows[i])
	}
	f.rows = kept
	delete(f.ann, imageID)
	return removed, nil
}

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
}

func (f *fakeResolver) ResolveDownloadURL(ctx context.Context, nasaID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeDownloader struct {
	mu       sync.Mutex
	root     string
	ext      string
	err      error
	calls    int
	cleanups int

	// gate, when set, blocks Fetch until released (coalescing tests).
	started chan struct{}
	release chan struct{}
}

func (f *fakeDownloader) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	f.mu.Lock()
	f.calls++
	started := f.started
	release := f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if f.err != nil {
		return "", func() {}, f.err
	}

	ext := f.ext
	if ext == "" {
		ext = ".jpg"
	}
	dir, err := os.MkdirTemp(f.root, "dl-*")
	if err != nil {
		return "", func() {}, err
	}
	path := filepath.Join(dir, "original"+ext)
	if err := os.WriteFile(path, []byte("image bytes"), 0o644); err != nil {
		return "", func() {}, err
	}
	cleanup := func() {
		f.mu.Lock()
		f.cleanups++
		f.mu.Unlock()
		_ = os.RemoveAll(dir)
	}
	return path, cleanup, nil
}

func (f *fakeDownloader) stats() (calls, cleanups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.cleanups
}

type fakeTools struct {
	mu sync.Mutex

	convertCalls int
	buildCalls   int

	convertErr error
	buildErr   error

	lastConvertInput string
	lastBuildInput   string
	lastBuildOutDir  string
}

func (f *fakeTools) AssertReady(ctx context.Context) error { return nil }

func (f *fakeTools) ConvertPDSToTIFF(ctx context.Context, inputPath, outDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convertCalls++
	f.lastConvertInput = inputPath
	if f.convertErr != nil {
		return "", f.convertErr
	}
	tiffPath := filepath.Join(outDir, "converted.tif")
	if err := os.WriteFile(tiffPath, []byte("tiff bytes"), 0o644); err != nil {
		return "", err
	}
	return tiffPath, nil
}

func (f *fakeTools) BuildPyramid(ctx context.Context, inputPath, outDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildCalls++
	f.lastBuildInput = inputPath
	f.lastBuildOutDir = outDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	if f.buildErr != nil {
		// Leave half-written output behind, like a tool dying mid-run.
		_ = os.WriteFile(filepath.Join(outDir, "image_files.partial"), []byte("x"), 0o644)
		return "", f.buildErr
	}
	descriptor := filepath.Join(outDir, "image.dzi")
	if err := os.WriteFile(descriptor, []byte("<Image/>"), 0o644); err != nil {
		return "", err
	}
	return descriptor, nil
}

func (f *fakeTools) counts() (convert, build int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convertCalls, f.buildCalls
}

type fakePreview struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePreview) RenderFile(srcPath, dstPath, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dstPath, []byte("png bytes"), 0o644)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func mustMkDescriptor(root, id string) error {
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "image.dzi"), []byte("<Image/>"), 0o644)
}

var errBoom = fmt.Errorf("boom")
