// Package fetch retrieves formula source artifacts over HTTP into a local
// content-addressed cache, verifying each payload against the formula's
// pinned SHA-256 digest before it is handed to the engine.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/formulary/formulary/pkg/formula"
)

const (
	// defaultAttempts bounds retries for transient failures.
	defaultAttempts = 3

	// defaultBackoff is the initial delay between attempts; it doubles per
	// attempt.
	defaultBackoff = 500 * time.Millisecond
)

// HTTPFetcher downloads source artifacts into cacheDir. Cached artifacts are
// keyed by their pinned digest, so a cache hit never needs the network.
type HTTPFetcher struct {
	cacheDir string
	client   *http.Client
	logger   zerolog.Logger

	attempts int
	backoff  time.Duration

	// sleep is overridable in tests so retry backoff doesn't slow them down.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient sets the HTTP client used for downloads.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithAttempts sets the maximum number of retrieval attempts.
func WithAttempts(n int) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// NewHTTPFetcher creates a fetcher caching artifacts under cacheDir.
func NewHTTPFetcher(cacheDir string, logger zerolog.Logger, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 5 * time.Minute},
		logger:   logger.With().Str("component", "fetch").Logger(),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CachePath returns where the artifact for src lives in the cache.
func (f *HTTPFetcher) CachePath(src formula.Source) string {
	name := filepath.Base(src.URL)
	if name == "." || name == "/" || name == "" {
		name = "artifact"
	}
	return filepath.Join(f.cacheDir, strings.ToLower(src.SHA256)+"-"+name)
}

// Fetch retrieves the artifact for src and returns its local path. The
// payload's digest is verified against src.SHA256 on every call, cache hits
// included. Transient network failures are retried with exponential backoff;
// a digest mismatch fails immediately and evicts the bad artifact.
func (f *HTTPFetcher) Fetch(ctx context.Context, src formula.Source) (string, error) {
	dest := f.CachePath(src)

	if _, err := os.Stat(dest); err == nil {
		if err := f.verify(dest, src); err != nil {
			// A corrupt cache entry is evicted and refetched.
			f.logger.Warn().Str("url", src.URL).Msg("evicting corrupt cache entry")
			os.Remove(dest)
		} else {
			f.logger.Debug().Str("url", src.URL).Str("path", dest).Msg("cache hit")
			return dest, nil
		}
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: creating cache dir: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff << (attempt - 2)
			f.logger.Debug().
				Str("url", src.URL).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying fetch")
			if err := f.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		err := f.download(ctx, src.URL, dest)
		if err == nil {
			if verr := f.verify(dest, src); verr != nil {
				os.Remove(dest)
				return "", verr
			}
			f.logger.Info().Str("url", src.URL).Str("path", dest).Msg("fetched")
			return dest, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}

	return "", &FetchError{
		Code:     CodeUnreachable,
		URL:      src.URL,
		Attempts: f.attempts,
		Err:      lastErr,
	}
}

// download retrieves url into dest, writing through a temp file so a partial
// download is never visible at the cache path.
func (f *HTTPFetcher) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("requesting %s: HTTP %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.cacheDir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("placing %s: %w", dest, err)
	}
	return nil
}

// verify checks the file at path against the source's pinned digest.
func (f *HTTPFetcher) verify(path string, src formula.Source) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return err
	}
	actual := hex.EncodeToString(h.Sum(nil))

	if !strings.EqualFold(actual, src.SHA256) {
		return &FetchError{
			Code:     CodeIntegrityMismatch,
			URL:      src.URL,
			Expected: strings.ToLower(src.SHA256),
			Actual:   actual,
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
