package tiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/ctxutil"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// Tools is the glue around the system binaries the tiling pipeline shells
// out to.
//
// REQUIRED BINARIES in server runtime:
// - vips (libvips-tools) for deep-zoom pyramid generation
// - gdal_translate (gdal-bin) for planetary PDS .IMG -> TIFF conversion
//
// Calls are synchronous; the per-call timeout bounds runaway tools.
type Tools interface {
	AssertReady(ctx context.Context) error

	// ConvertPDSToTIFF turns a planetary raster into a standard TIFF next to
	// nothing else in outDir. The input file is left untouched.
	ConvertPDSToTIFF(ctx context.Context, inputPath string, outDir string) (tiffPath string, err error)

	// BuildPyramid tiles inputPath into outDir and returns the descriptor
	// path (outDir/image.dzi). outDir is created if missing.
	BuildPyramid(ctx context.Context, inputPath string, outDir string) (descriptorPath string, err error)
}

type Options struct {
	VipsBin     string
	GDALBin     string
	TileSize    int
	Overlap     int
	JPEGQuality int
	Timeout     time.Duration
}

type tools struct {
	log *logger.Logger

	vipsPath string
	gdalPath string

	tileSize int
	overlap  int
	quality  int

	defaultTimeout time.Duration
}

func New(opts Options, log *logger.Logger) Tools {
	slog := log.With("service", "TilerTools")
	t := &tools{
		log:            slog,
		vipsPath:       opts.VipsBin,
		gdalPath:       opts.GDALBin,
		tileSize:       opts.TileSize,
		overlap:        opts.Overlap,
		quality:        opts.JPEGQuality,
		defaultTimeout: opts.Timeout,
	}
	if t.vipsPath == "" {
		t.vipsPath = "vips"
	}
	if t.gdalPath == "" {
		t.gdalPath = "gdal_translate"
	}
	if t.tileSize <= 0 {
		t.tileSize = 254
	}
	if t.overlap < 0 {
		t.overlap = 1
	}
	if t.quality <= 0 || t.quality > 100 {
		t.quality = 90
	}
	if t.defaultTimeout <= 0 {
		t.defaultTimeout = 10 * time.Minute
	}
	return t
}

func (m *tools) AssertReady(ctx context.Context) error {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, bin := range []string{m.vipsPath, m.gdalPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

func (m *tools) ConvertPDSToTIFF(ctx context.Context, inputPath string, outDir string) (string, error) {
	ctx = ctxutil.Default(ctx)
	if inputPath == "" {
		return "", fmt.Errorf("inputPath required")
	}
	if outDir == "" {
		return "", fmt.Errorf("outDir required")
	}
	if _, err := exec.LookPath(m.gdalPath); err != nil {
		return "", fmt.Errorf("missing required binary %q in PATH: %w", m.gdalPath, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	tiffPath := filepath.Join(outDir, "converted.tif")
	cmd := exec.CommandContext(ctx, m.gdalPath, gdalArgs(inputPath, tiffPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gdal_translate convert failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(tiffPath); err != nil {
		return "", fmt.Errorf("converted tiff missing at %s; out=%s", tiffPath, string(out))
	}

	m.log.Debug("pds raster converted", "input", inputPath, "output", tiffPath)
	return tiffPath, nil
}

func (m *tools) BuildPyramid(ctx context.Context, inputPath string, outDir string) (string, error) {
	ctx = ctxutil.Default(ctx)
	if inputPath == "" {
		return "", fmt.Errorf("inputPath required")
	}
	if outDir == "" {
		return "", fmt.Errorf("outDir required")
	}
	if _, err := exec.LookPath(m.vipsPath); err != nil {
		return "", fmt.Errorf("missing required binary %q in PATH: %w", m.vipsPath, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	base := filepath.Join(outDir, "image")
	cmd := exec.CommandContext(ctx, m.vipsPath, dzsaveArgs(inputPath, base, m.tileSize, m.overlap, m.quality)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("vips dzsave failed: %w; out=%s", err, string(out))
	}

	descriptor := base + ".dzi"
	if _, err := os.Stat(descriptor); err != nil {
		return "", fmt.Errorf("pyramid descriptor missing at %s; out=%s", descriptor, string(out))
	}

	m.log.Debug("pyramid built", "input", inputPath, "descriptor", descriptor)
	return descriptor, nil
}

func gdalArgs(inputPath, tiffPath string) []string {
	return []string{"-of", "GTiff", inputPath, tiffPath}
}

func dzsaveArgs(inputPath, base string, tileSize, overlap, quality int) []string {
	return []string{
		"dzsave", inputPath, base,
		"--suffix", ".jpg[Q=" + strconv.Itoa(quality) + "]",
		"--tile-size", strconv.Itoa(tileSize),
		"--overlap", strconv.Itoa(overlap),
	}
}
