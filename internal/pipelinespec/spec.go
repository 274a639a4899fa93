package pipelinespec

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

const assetSelectSpecEnv = "NASA_ASSET_SELECT_YAML"

//go:embed asset_select.yaml
var assetSelectFS embed.FS

// Tier is one rung of the download-selection ladder. A manifest URL belongs
// to the first tier that matches it; earlier tiers win regardless of the
// URL's position in the manifest.
type Tier struct {
	Name       string   `yaml:"name"`
	Suffixes   []string `yaml:"suffixes"`
	Extensions []string `yaml:"extensions"`
}

// Matches reports whether rawURL falls into this tier. Comparison is
// case-insensitive and ignores query strings.
func (t Tier) Matches(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, s := range t.Suffixes {
		if strings.HasSuffix(u, strings.ToLower(s)) {
			return true
		}
	}
	for _, e := range t.Extensions {
		if strings.HasSuffix(u, strings.ToLower(e)) {
			return true
		}
	}
	return false
}

// fallback ladder used when the YAML is missing or invalid
var fallbackTiers = []Tier{
	{Name: "original", Suffixes: []string{"~orig.tif", "~orig.tiff", "~orig.jpg", "~orig.jpeg"}},
	{Name: "large", Suffixes: []string{"~large.jpg", "~large.jpeg"}},
	{Name: "medium", Suffixes: []string{"~medium.jpg", "~medium.jpeg"}},
	{Name: "any_jpeg", Extensions: []string{".jpg", ".jpeg"}},
}

type yamlAssetSpec struct {
	Pipeline string `yaml:"pipeline"`
	Version  int    `yaml:"version"`
	Tiers    []Tier `yaml:"tiers"`
}

var tiersOnce sync.Once
var tiersCache []Tier
var tiersErr error

// AssetSelectTiers returns the active ladder, loaded once per process: from
// NASA_ASSET_SELECT_YAML when set, else the embedded copy, with the hardcoded
// fallback covering load failures.
func AssetSelectTiers(log *logger.Logger) []Tier {
	tiersOnce.Do(func() {
		tiersCache, tiersErr = loadTiers()
	})
	if tiersErr != nil {
		if log != nil {
			log.Warn("asset select spec load failed; using fallback ladder", "error", tiersErr)
		}
		return fallbackTiers
	}
	return tiersCache
}

func loadTiers() ([]Tier, error) {
	data, err := readAssetSelectSpec()
	if err != nil {
		return nil, err
	}
	return parseTiers(data)
}

func readAssetSelectSpec() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(assetSelectSpecEnv)); path != "" {
		return os.ReadFile(path)
	}
	return assetSelectFS.ReadFile("asset_select.yaml")
}

func parseTiers(data []byte) ([]Tier, error) {
	var spec yamlAssetSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Pipeline) != "nasa_asset_select" {
		return nil, fmt.Errorf("unexpected pipeline: %s", spec.Pipeline)
	}
	if len(spec.Tiers) == 0 {
		return nil, errors.New("no tiers defined")
	}
	seen := map[string]bool{}
	for i, tier := range spec.Tiers {
		name := strings.TrimSpace(tier.Name)
		if name == "" {
			return nil, fmt.Errorf("tier %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate tier name: %s", name)
		}
		seen[name] = true
		if len(tier.Suffixes) == 0 && len(tier.Extensions) == 0 {
			return nil, fmt.Errorf("tier %s: no suffixes or extensions", name)
		}
	}
	return spec.Tiers, nil
}
