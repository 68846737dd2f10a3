package orbit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/leo-topology/internal/logging"
)

// DefaultCatalogURL serves the current Starlink element sets.
const DefaultCatalogURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=starlink&FORMAT=tle"

const maxCatalogBytes = 50 << 20

// Fetcher retrieves a raw TLE catalog over HTTP, with an optional
// on-disk cache so a run can survive the source being unreachable.
type Fetcher struct {
	url    string
	client *http.Client
	log    logging.Logger

	cacheDir   string
	cacheFiles int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCacheDir enables the on-disk catalog cache in dir, keeping at
// most maxFiles timestamped snapshots.
func WithCacheDir(dir string, maxFiles int) FetcherOption {
	return func(f *Fetcher) {
		f.cacheDir = dir
		if maxFiles > 0 {
			f.cacheFiles = maxFiles
		}
	}
}

// WithFetcherLogger sets the fetcher logger.
func WithFetcherLogger(l logging.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFetcher creates a Fetcher for the given source URL, defaulting to
// the Starlink group catalog.
func NewFetcher(url string, opts ...FetcherOption) *Fetcher {
	if url == "" {
		url = DefaultCatalogURL
	}
	f := &Fetcher{
		url:        url,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        logging.Noop(),
		cacheFiles: 5,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string { return f.url }

// Fetch retrieves the raw catalog. On success the result is written to
// the cache; on failure the newest cached snapshot is returned instead,
// if one exists.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	data, err := f.fetchRemote(ctx)
	if err == nil {
		if f.cacheDir != "" {
			if cerr := f.writeCache(data, time.Now()); cerr != nil {
				f.log.Warn(ctx, "failed to cache TLE catalog", logging.String("error", cerr.Error()))
			}
		}
		return data, nil
	}

	if f.cacheDir == "" {
		return nil, err
	}
	cached, ts, cerr := f.loadLatestCache()
	if cerr != nil {
		return nil, fmt.Errorf("%w (cache fallback also failed: %v)", err, cerr)
	}
	f.log.Warn(ctx, "catalog fetch failed, using cached snapshot",
		logging.String("error", err.Error()),
		logging.String("cached_at", ts.UTC().Format(time.RFC3339)))
	return cached, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxCatalogBytes {
		return nil, fmt.Errorf("catalog exceeds %d byte limit", maxCatalogBytes)
	}
	return body, nil
}

func (f *Fetcher) writeCache(data []byte, ts time.Time) error {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	path := filepath.Join(f.cacheDir, fmt.Sprintf("tle_%d.txt", ts.Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return f.pruneCache()
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (f *Fetcher) listCache() ([]cacheFile, error) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "tle_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "tle_"), ".txt"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ts.Before(files[j].ts) })
	return files, nil
}

func (f *Fetcher) loadLatestCache() ([]byte, time.Time, error) {
	files, err := f.listCache()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cached catalog")
	}
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(f.cacheDir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

func (f *Fetcher) pruneCache() error {
	files, err := f.listCache()
	if err != nil {
		return err
	}
	if len(files) <= f.cacheFiles {
		return nil
	}
	for _, stale := range files[:len(files)-f.cacheFiles] {
		if err := os.Remove(filepath.Join(f.cacheDir, stale.name)); err != nil {
			return fmt.Errorf("pruning cache file: %w", err)
		}
	}
	return nil
}
