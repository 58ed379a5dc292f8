package schedule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "loadshedcal/internal/log"
)

const (
	defaultCacheDir     = "./var/feed-cache"
	defaultFetchTimeout = 15 * time.Second
	defaultMaxStale     = 6 * time.Hour
	maxBodyBytes        = 8 << 20
)

// ErrEmptyBody is returned when the upstream answered without content and no
// cached copy exists.
var ErrEmptyBody = errors.New("schedule: empty response body")

// ErrStaleCache is returned when the upstream failed and the cached body is
// older than the fetcher's stale limit.
var ErrStaleCache = errors.New("schedule: cached body too old")

// Source is one upstream announcement document.
type Source struct {
	// ID names the source in logs and metrics.
	ID  string
	URL string
}

// FetchResult is the body of a source, fresh or from the disk cache.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// cacheEntry holds HTTP validators for one URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads announcement documents, revalidating with ETag and
// Last-Modified against a disk cache. The cached body is served on 304 and
// when the upstream is unreachable or failing, as long as it was confirmed
// by the upstream within maxStale.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	maxStale time.Duration
}

// NewFetcher creates a Fetcher caching under cacheDir. Zero values pick
// defaults suitable for development.
func NewFetcher(cacheDir string, timeout, maxStale time.Duration) *Fetcher {
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if maxStale <= 0 {
		maxStale = defaultMaxStale
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
		maxStale: maxStale,
	}
}

// Fetch retrieves src.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("schedule: source URL is empty")
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("schedule: cache dir: %w", err)
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)
	cached := FetchResult{Source: src, Body: cachedBody, FromCache: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("schedule fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return f.fallback(cached, meta, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return FetchResult{}, fmt.Errorf("schedule: read %s: %w", src.ID, err)
		}
		if len(body) == 0 {
			return f.fallback(cached, meta, ErrEmptyBody)
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("schedule cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}

		appLog.Info("schedule fetch success", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("schedule: 304 Not Modified without cached body")
		}
		if err := f.saveMeta(cachePath, meta); err != nil {
			appLog.Error("schedule cache touch failed", err, "id", src.ID, "url", redactURL(src.URL))
		}
		appLog.Info("schedule not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return cached, nil

	default:
		return f.fallback(cached, meta, errors.New(resp.Status))
	}
}

// fallback serves the cached body after a failed fetch. A missing body, or
// one last confirmed more than maxStale ago, turns cause into the error.
func (f *Fetcher) fallback(cached FetchResult, meta cacheEntry, cause error) (FetchResult, error) {
	src := cached.Source
	if len(cached.Body) == 0 {
		return FetchResult{}, fmt.Errorf("schedule: fetch %s: %w", src.ID, cause)
	}
	age := time.Since(meta.UpdatedAt)
	if meta.UpdatedAt.IsZero() || age > f.maxStale {
		appLog.Warn("schedule cache too old to serve", "id", src.ID, "updated_at", meta.UpdatedAt, "max_stale", f.maxStale)
		return FetchResult{}, fmt.Errorf("%w: fetch %s: %w", ErrStaleCache, src.ID, cause)
	}
	appLog.Error("schedule fetch failed, using cached body", cause, "id", src.ID, "url", redactURL(src.URL), "age", age.Round(time.Second))
	return cached, nil
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

// saveCache writes the body before the metadata so validators never refer to
// a missing body.
func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	return f.saveMeta(cachePath, meta)
}

// saveMeta stamps meta with the current time and writes it.
func (f *Fetcher) saveMeta(cachePath string, meta cacheEntry) error {
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host of u for logging.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "feed://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
