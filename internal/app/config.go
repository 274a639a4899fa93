package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/envutil"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// Config is resolved in three layers: hardcoded defaults, then an optional
// JSON file named by DZI_CONFIG_PATH, then environment overrides.
type Config struct {
	Addr        string `json:"addr"`
	Environment string `json:"environment"`
	Version     string `json:"version"`

	DataDir string `json:"data_dir"`

	MaxDownloadMB int           `json:"max_download_mb"`
	StageTimeout  time.Duration `json:"-"`
	StageTimeoutS string        `json:"stage_timeout"`

	VipsBin     string `json:"vips_bin"`
	GDALBin     string `json:"gdal_bin"`
	TileSize    int    `json:"tile_size"`
	TileOverlap int    `json:"tile_overlap"`
	TileQuality int    `json:"tile_quality"`

	NASABaseURL     string        `json:"nasa_base_url"`
	NASATimeout     time.Duration `json:"-"`
	NASATimeoutS    string        `json:"nasa_timeout"`
	NASASearchLimit int           `json:"nasa_search_limit"`

	NameMaxLen           int `json:"name_max_len"`
	AnnotationIDMaxLen   int `json:"annotation_id_max_len"`
	AnnotationTextMaxLen int `json:"annotation_text_max_len"`

	CatalogLockTimeout time.Duration `json:"-"`

	PreviewMaxEdge int `json:"preview_max_edge"`

	AllowedOrigins []string `json:"allowed_origins"`
}

func defaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		Environment:          "development",
		Version:              "dev",
		DataDir:              "./data",
		MaxDownloadMB:        512,
		StageTimeout:         10 * time.Minute,
		VipsBin:              "vips",
		GDALBin:              "gdal_translate",
		TileSize:             254,
		TileOverlap:          1,
		TileQuality:          90,
		NASABaseURL:          "https://images-api.nasa.gov",
		NASATimeout:          30 * time.Second,
		NASASearchLimit:      20,
		NameMaxLen:           200,
		AnnotationIDMaxLen:   128,
		AnnotationTextMaxLen: 500,
		CatalogLockTimeout:   5 * time.Second,
		PreviewMaxEdge:       512,
	}
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()

	if path := strings.TrimSpace(os.Getenv("DZI_CONFIG_PATH")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if cfg.StageTimeoutS != "" {
			d, err := time.ParseDuration(cfg.StageTimeoutS)
			if err != nil {
				return Config{}, fmt.Errorf("config stage_timeout: %w", err)
			}
			cfg.StageTimeout = d
		}
		if cfg.NASATimeoutS != "" {
			d, err := time.ParseDuration(cfg.NASATimeoutS)
			if err != nil {
				return Config{}, fmt.Errorf("config nasa_timeout: %w", err)
			}
			cfg.NASATimeout = d
		}
		log.Info("config file loaded", "path", path)
	}

	if port := envutil.Str("PORT", ""); port != "" {
		if strings.Contains(port, ":") {
			cfg.Addr = port
		} else {
			cfg.Addr = ":" + port
		}
	}
	cfg.Environment = envutil.Str("APP_ENV", cfg.Environment)
	cfg.DataDir = envutil.Str("DZI_DATA_DIR", cfg.DataDir)
	cfg.MaxDownloadMB = envutil.Int("DZI_MAX_DOWNLOAD_MB", cfg.MaxDownloadMB)
	cfg.StageTimeout = envutil.Duration("DZI_STAGE_TIMEOUT", cfg.StageTimeout)
	cfg.VipsBin = envutil.Str("DZI_VIPS_BIN", cfg.VipsBin)
	cfg.GDALBin = envutil.Str("DZI_GDAL_BIN", cfg.GDALBin)
	cfg.TileSize = envutil.Int("DZI_TILE_SIZE", cfg.TileSize)
	cfg.TileOverlap = envutil.Int("DZI_TILE_OVERLAP", cfg.TileOverlap)
	cfg.TileQuality = envutil.Int("DZI_TILE_QUALITY", cfg.TileQuality)
	cfg.NASABaseURL = envutil.Str("NASA_API_BASE", cfg.NASABaseURL)
	cfg.NASATimeout = envutil.Duration("NASA_API_TIMEOUT", cfg.NASATimeout)
	cfg.NASASearchLimit = envutil.Int("NASA_SEARCH_LIMIT", cfg.NASASearchLimit)
	cfg.NameMaxLen = envutil.Int("DZI_MAX_NAME_LEN", cfg.NameMaxLen)
	cfg.AnnotationIDMaxLen = envutil.Int("DZI_MAX_ANNOTATION_ID_LEN", cfg.AnnotationIDMaxLen)
	cfg.AnnotationTextMaxLen = envutil.Int("DZI_MAX_ANNOTATION_TEXT_LEN", cfg.AnnotationTextMaxLen)
	cfg.CatalogLockTimeout = envutil.Duration("DZI_CATALOG_LOCK_TIMEOUT", cfg.CatalogLockTimeout)
	cfg.PreviewMaxEdge = envutil.Int("DZI_PREVIEW_MAX_EDGE", cfg.PreviewMaxEdge)
	if origins := envutil.Str("DZI_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.MaxDownloadMB <= 0 {
		return fmt.Errorf("max_download_mb must be positive, got %d", c.MaxDownloadMB)
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("stage_timeout must be positive, got %s", c.StageTimeout)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %d", c.TileSize)
	}
	if c.TileOverlap < 0 {
		return fmt.Errorf("tile_overlap must not be negative, got %d", c.TileOverlap)
	}
	if c.TileQuality < 1 || c.TileQuality > 100 {
		return fmt.Errorf("tile_quality must be in [1,100], got %d", c.TileQuality)
	}
	if c.NASASearchLimit <= 0 {
		return fmt.Errorf("nasa_search_limit must be positive, got %d", c.NASASearchLimit)
	}
	return nil
}

func (c Config) TilesDir() string   { return filepath.Join(c.DataDir, "tiles") }
func (c Config) StagingDir() string { return filepath.Join(c.DataDir, "staging") }

func (c Config) MaxDownloadBytes() int64 {
	return int64(c.MaxDownloadMB) << 20
}
