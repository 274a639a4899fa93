package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// Failure sentinels for the fetch stage. Callers classify with errors.Is.
var (
	ErrTooLarge = errors.New("download exceeds size limit")
	ErrTimeout  = errors.New("download timed out")
	ErrNotImage = errors.New("response is not an image")
)

type Config struct {
	StagingDir string
	MaxBytes   int64
	Timeout    time.Duration

	// HTTPClient overrides the default client when set (tests).
	HTTPClient *http.Client
}

// Fetcher streams remote images into per-download staging directories.
type Fetcher struct {
	httpClient *http.Client
	stagingDir string
	maxBytes   int64
	timeout    time.Duration
	log        *logger.Logger
}

func NewFetcher(cfg Config, baseLog *logger.Logger) *Fetcher {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 512 << 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Fetcher{
		httpClient: hc,
		stagingDir: cfg.StagingDir,
		maxBytes:   maxBytes,
		timeout:    timeout,
		log:        baseLog.With("stage", "fetch"),
	}
}

// Fetch downloads rawURL into a fresh staging directory and returns the
// staged file path plus a cleanup that removes the whole directory. Later
// stages may drop derived artifacts next to the staged file; the one cleanup
// covers them all. cleanup is non-nil on every return.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	noop := func() {}

	if err := os.MkdirAll(f.stagingDir, 0o755); err != nil {
		return "", noop, fmt.Errorf("create staging dir: %w", err)
	}
	dir := filepath.Join(f.stagingDir, "dl-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", noop, fmt.Errorf("create staging dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Accept", "image/*, application/octet-stream;q=0.9, */*;q=0.1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		cleanup()
		if ctx.Err() == context.DeadlineExceeded {
			return "", noop, fmt.Errorf("fetch %s: %w", rawURL, ErrTimeout)
		}
		return "", noop, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cleanup()
		return "", noop, fmt.Errorf("fetch %s: http %d", rawURL, resp.StatusCode)
	}
	if err := checkImageLike(resp.Header.Get("Content-Type")); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	path := filepath.Join(dir, "original"+stagedExt(rawURL, resp.Header.Get("Content-Type")))
	out, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("create staging file: %w", err)
	}

	bw := bufio.NewWriterSize(out, 1<<20)
	n, copyErr := io.Copy(bw, io.LimitReader(resp.Body, f.maxBytes+1))
	if flushErr := bw.Flush(); copyErr == nil {
		copyErr = flushErr
	}
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		cleanup()
		if ctx.Err() == context.DeadlineExceeded {
			return "", noop, fmt.Errorf("fetch %s: %w", rawURL, ErrTimeout)
		}
		return "", noop, fmt.Errorf("write staging file: %w", copyErr)
	}
	if n > f.maxBytes {
		cleanup()
		return "", noop, fmt.Errorf("fetch %s: %d bytes: %w", rawURL, n, ErrTooLarge)
	}

	f.log.Debug("download staged", "url", rawURL, "bytes", n, "path", path)
	return path, cleanup, nil
}

// checkImageLike rejects declared non-image payloads. Planetary rasters come
// over as application/octet-stream or with no type at all, so only a clearly
// foreign declaration fails.
func checkImageLike(contentType string) error {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil
	}
	if strings.HasPrefix(mt, "image/") || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		return nil
	}
	return fmt.Errorf("content type %s: %w", mt, ErrNotImage)
}

// stagedExt picks the staged file's extension, preferring the URL path so a
// planetary .img keeps its identity for the conversion stage.
func stagedExt(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(filepath.Ext(u.Path)); ext != "" && len(ext) <= 6 {
			return ext
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/tiff":
			return ".tif"
		case "image/gif":
			return ".gif"
		case "image/webp":
			return ".webp"
		}
	}
	return ".bin"
}
