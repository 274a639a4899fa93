package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/pipelinespec"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// ErrNoDownloadableAsset means the asset manifest had no URL matching any
// tier of the selection ladder (or the asset does not exist upstream).
var ErrNoDownloadableAsset = errors.New("no downloadable image asset")

// SearchItem is one trimmed search hit for the browse UI.
type SearchItem struct {
	NasaID      string `json:"nasa_id"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
}

// AssetInfo is what the viewer shows before committing to an ingestion: the
// full-resolution pick with its probed size, plus a lighter alternative.
type AssetInfo struct {
	NasaID        string  `json:"nasa_id"`
	HighResURL    string  `json:"highResUrl"`
	HighResSizeMB float64 `json:"highResSizeMB,omitempty"`
	OrdinaryURL   string  `json:"ordinaryUrl,omitempty"`
}

// Client talks to the NASA images API.
type Client interface {
	Search(ctx context.Context, query string) ([]SearchItem, error)

	// AssetManifest returns every file URL listed for the asset. Results are
	// cached; an unknown asset yields an empty slice, not an error.
	AssetManifest(ctx context.Context, nasaID string) ([]string, error)

	// ResolveDownloadURL picks the best manifest URL by the tier ladder.
	ResolveDownloadURL(ctx context.Context, nasaID string) (string, error)

	AssetInfo(ctx context.Context, nasaID string) (AssetInfo, error)
}

type Config struct {
	BaseURL           string
	Timeout           time.Duration
	SearchLimit       int
	ManifestCacheSize int
	ManifestCacheTTL  time.Duration

	// HTTPClient overrides the default client when set (tests).
	HTTPClient *http.Client
}

type manifestEntry struct {
	hrefs    []string
	storedAt time.Time
}

type client struct {
	log         *logger.Logger
	baseURL     string
	searchLimit int
	httpClient  *http.Client
	manifests   *lru.Cache[string, manifestEntry]
	manifestTTL time.Duration
}

func NewClient(cfg Config, baseLog *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://images-api.nasa.gov"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	searchLimit := cfg.SearchLimit
	if searchLimit <= 0 {
		searchLimit = 20
	}
	cacheSize := cfg.ManifestCacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	ttl := cfg.ManifestCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	manifests, err := lru.New[string, manifestEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("nasa manifest cache init: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &client{
		log:         baseLog.With("client", "nasa"),
		baseURL:     baseURL,
		searchLimit: searchLimit,
		httpClient:  hc,
		manifests:   manifests,
		manifestTTL: ttl,
	}, nil
}

type searchResponse struct {
	Collection struct {
		Items []struct {
			Data []struct {
				NasaID      string `json:"nasa_id"`
				Title       string `json:"title"`
				Description string `json:"description"`
				DateCreated string `json:"date_created"`
			} `json:"data"`
			Links []struct {
				Href string `json:"href"`
				Rel  string `json:"rel"`
			} `json:"links"`
		} `json:"items"`
	} `json:"collection"`
}

func (c *client) Search(ctx context.Context, query string) ([]SearchItem, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("media_type", "image")
	endpoint := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nasa search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nasa search: status %d: %s", resp.StatusCode, bodySnippet(resp.Body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("nasa search: decode response: %w", err)
	}

	out := make([]SearchItem, 0, c.searchLimit)
	for _, item := range parsed.Collection.Items {
		if len(item.Data) == 0 {
			continue
		}
		d := item.Data[0]
		if strings.TrimSpace(d.NasaID) == "" {
			continue
		}
		hit := SearchItem{
			NasaID:      d.NasaID,
			Title:       d.Title,
			Description: d.Description,
			DateCreated: d.DateCreated,
		}
		for _, link := range item.Links {
			if link.Rel == "preview" && link.Href != "" {
				hit.Thumbnail = link.Href
				break
			}
		}
		out = append(out, hit)
		if len(out) >= c.searchLimit {
			break
		}
	}
	return out, nil
}

type assetResponse struct {
	Collection struct {
		Items []struct {
			Href string `json:"href"`
		} `json:"items"`
	} `json:"collection"`
}

func (c *client) AssetManifest(ctx context.Context, nasaID string) ([]string, error) {
	if entry, ok := c.manifests.Get(nasaID); ok {
		if time.Since(entry.storedAt) < c.manifestTTL {
			return entry.hrefs, nil
		}
		c.manifests.Remove(nasaID)
	}

	endpoint := c.baseURL + "/asset/" + url.PathEscape(nasaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nasa asset %s: %w", nasaID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		c.manifests.Add(nasaID, manifestEntry{hrefs: []string{}, storedAt: time.Now()})
		return []string{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nasa asset %s: status %d: %s", nasaID, resp.StatusCode, bodySnippet(resp.Body))
	}

	var parsed assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("nasa asset %s: decode response: %w", nasaID, err)
	}
	hrefs := make([]string, 0, len(parsed.Collection.Items))
	for _, item := range parsed.Collection.Items {
		if item.Href != "" {
			hrefs = append(hrefs, item.Href)
		}
	}
	c.manifests.Add(nasaID, manifestEntry{hrefs: hrefs, storedAt: time.Now()})
	return hrefs, nil
}

func (c *client) ResolveDownloadURL(ctx context.Context, nasaID string) (string, error) {
	hrefs, err := c.AssetManifest(ctx, nasaID)
	if err != nil {
		return "", err
	}
	if href, ok := SelectDownloadURL(pipelinespec.AssetSelectTiers(c.log), hrefs); ok {
		return href, nil
	}
	return "", fmt.Errorf("asset %s: %w", nasaID, ErrNoDownloadableAsset)
}

func (c *client) AssetInfo(ctx context.Context, nasaID string) (AssetInfo, error) {
	hrefs, err := c.AssetManifest(ctx, nasaID)
	if err != nil {
		return AssetInfo{}, err
	}
	tiers := pipelinespec.AssetSelectTiers(c.log)
	highRes, ok := SelectDownloadURL(tiers, hrefs)
	if !ok {
		return AssetInfo{}, fmt.Errorf("asset %s: %w", nasaID, ErrNoDownloadableAsset)
	}
	info := AssetInfo{NasaID: nasaID, HighResURL: highRes}

	// The ordinary pick skips the full-resolution tier so the viewer can
	// offer a lighter download when one exists.
	if len(tiers) > 1 {
		if ordinary, ok := SelectDownloadURL(tiers[1:], hrefs); ok && ordinary != highRes {
			info.OrdinaryURL = ordinary
		}
	}

	if size := c.probeSize(ctx, highRes); size > 0 {
		info.HighResSizeMB = math.Round(float64(size)/(1<<20)*100) / 100
	}
	return info, nil
}

// probeSize asks the asset host for Content-Length. Best effort only.
func (c *client) probeSize(ctx context.Context, href string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, href, nil)
	if err != nil {
		return 0
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("asset size probe failed", "url", href, "error", err)
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return 0
}

// SelectDownloadURL walks the ladder tier by tier and returns the first
// manifest URL the current tier matches. Manifest order only breaks ties
// inside a tier.
func SelectDownloadURL(tiers []pipelinespec.Tier, hrefs []string) (string, bool) {
	for _, tier := range tiers {
		for _, href := range hrefs {
			if tier.Matches(href) {
				return href, true
			}
		}
	}
	return "", false
}

func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
