package preview

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// Renderer produces the small preview written next to each tile pyramid.
// Sources that cannot be decoded get a generated placeholder card instead,
// so the gallery never shows a broken thumbnail.
type Renderer struct {
	maxEdge  int
	log      *logger.Logger
	fontFace font.Face
}

var placeholderColors = []color.NRGBA{
	{R: 0x1F, G: 0x3A, B: 0x5F, A: 0xFF},
	{R: 0x2D, G: 0x6A, B: 0x4F, A: 0xFF},
	{R: 0x6B, G: 0x2D, B: 0x5B, A: 0xFF},
	{R: 0x8A, G: 0x4F, B: 0x1D, A: 0xFF},
	{R: 0x3B, G: 0x3B, B: 0x6E, A: 0xFF},
	{R: 0x57, G: 0x2A, B: 0x2A, A: 0xFF},
}

// NewRenderer reads PREVIEW_FONT for an optional TTF used on placeholder
// cards. A missing or unreadable font only degrades the card lettering.
func NewRenderer(maxEdge int, baseLog *logger.Logger) *Renderer {
	slog := baseLog.With("service", "PreviewRenderer")
	if maxEdge <= 0 {
		maxEdge = 512
	}
	r := &Renderer{maxEdge: maxEdge, log: slog}

	fontPath := strings.TrimSpace(os.Getenv("PREVIEW_FONT"))
	if fontPath != "" {
		face, err := loadFontFace(fontPath, float64(maxEdge)/2.5)
		if err != nil {
			slog.Warn("preview font unusable; placeholder cards use built-in face", "font", fontPath, "error", err)
		} else {
			r.fontFace = face
		}
	}
	return r
}

// RenderFile writes a preview of srcPath to dstPath. label feeds the
// placeholder card when the source does not decode.
func (r *Renderer) RenderFile(srcPath, dstPath, label string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("mkdir preview dir: %w", err)
	}

	img, err := decodeFile(srcPath)
	if err != nil {
		r.log.Debug("source not decodable; rendering placeholder", "path", srcPath, "error", err)
		return r.renderPlaceholder(dstPath, label)
	}

	scaled := scaleDown(img, r.maxEdge)
	dc := gg.NewContextForImage(scaled)
	if err := dc.SavePNG(dstPath); err != nil {
		return fmt.Errorf("encode preview png: %w", err)
	}
	return nil
}

func (r *Renderer) renderPlaceholder(dstPath, label string) error {
	size := r.maxEdge
	dc := gg.NewContext(size, size)

	dc.SetColor(pickPlaceholderColor(label))
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()

	initial := "?"
	for _, ru := range strings.TrimSpace(label) {
		initial = strings.ToUpper(string(ru))
		break
	}

	if r.fontFace != nil {
		dc.SetFontFace(r.fontFace)
	}
	tw, th := dc.MeasureString(initial)
	cx, cy := float64(size)/2, float64(size)/2
	dc.SetColor(color.White)
	dc.DrawString(initial, cx-tw/2, cy+th/2)

	if err := dc.SavePNG(dstPath); err != nil {
		return fmt.Errorf("encode placeholder png: %w", err)
	}
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// scaleDown shrinks img so the longer edge is at most maxEdge, preserving
// aspect. Images already small enough pass through unscaled.
func scaleDown(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}
	outW, outH := maxEdge, maxEdge
	if w > h {
		outH = h * maxEdge / w
	} else {
		outW = w * maxEdge / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func pickPlaceholderColor(label string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return placeholderColors[int(h.Sum32())%len(placeholderColors)]
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
