package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// Source says where an image was submitted from.
type Source string

const (
	SourceNASA Source = "nasa"
	SourceURL  Source = "url"
)

// ContentID derives the stable cache key for a source reference. The hash is
// over the logical reference (NASA asset id or the submitted URL string), not
// the resolved download link, so re-submissions map to the same id even when
// the binary URL rotates.
func ContentID(source Source, ref string) string {
	sum := sha256.Sum256([]byte(string(source) + ":" + ref))
	return hex.EncodeToString(sum[:])[:16]
}

// ValidImageID reports whether s has the exact shape ContentID produces.
// Everything that joins an id into a filesystem path must check this first.
func ValidImageID(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ImageRecord is one catalog row. Rows are append-only: re-ingesting the same
// source is a cache hit, never an update.
type ImageRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Source    Source    `json:"source"`
	SourceRef string    `json:"source_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate rejects rows missing required fields, naming the first offender.
// Persisted rows go through this at the deserialization boundary.
func (r ImageRecord) Validate() error {
	if !ValidImageID(r.ID) {
		return fmt.Errorf("image record: invalid id %q", r.ID)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("image record %s: missing name", r.ID)
	}
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("image record %s: missing path", r.ID)
	}
	if r.Source != SourceNASA && r.Source != SourceURL {
		return fmt.Errorf("image record %s: unknown source %q", r.ID, r.Source)
	}
	if strings.TrimSpace(r.SourceRef) == "" {
		return fmt.Errorf("image record %s: missing source_ref", r.ID)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("image record %s: missing created_at", r.ID)
	}
	return nil
}

// Point is a pin position in the viewer's normalized viewport space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnnotationRecord is one pin on an image. IDs are caller-supplied tokens.
type AnnotationRecord struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Point Point  `json:"point"`
}

func (a AnnotationRecord) Validate(maxIDLen, maxTextLen int) error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("annotation: missing id")
	}
	if len(a.ID) > maxIDLen {
		return fmt.Errorf("annotation: id exceeds %d characters", maxIDLen)
	}
	if strings.TrimSpace(a.Text) == "" {
		return fmt.Errorf("annotation: missing text")
	}
	if len([]rune(a.Text)) > maxTextLen {
		return fmt.Errorf("annotation: text exceeds %d characters", maxTextLen)
	}
	if math.IsNaN(a.Point.X) || math.IsInf(a.Point.X, 0) {
		return fmt.Errorf("annotation: point.x is not a finite number")
	}
	if math.IsNaN(a.Point.Y) || math.IsInf(a.Point.Y, 0) {
		return fmt.Errorf("annotation: point.y is not a finite number")
	}
	return nil
}

// SanitizeName cleans a display title for catalog storage: control characters
// stripped, whitespace collapsed, length capped at max runes.
func SanitizeName(s string, max int) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if max > 0 {
		runes := []rune(out)
		if len(runes) > max {
			out = strings.TrimSpace(string(runes[:max]))
		}
	}
	if out == "" {
		out = "Untitled image"
	}
	return out
}
