package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/formulary/formulary/pkg/formula"
)

const payload = "sdist contents"

func digestOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func testFetcher(t *testing.T, opts ...Option) *HTTPFetcher {
	t.Helper()
	f := NewHTTPFetcher(t.TempDir(), zerolog.Nop(), opts...)
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f
}

func TestFetchVerifiesAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	f := testFetcher(t)
	src := formula.Source{URL: srv.URL + "/hawk-tui-0.2.0.tar.gz", SHA256: digestOf(payload)}

	path, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != payload {
		t.Errorf("unexpected payload %q", data)
	}

	// Second fetch is served from cache.
	again, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("cached Fetch failed: %v", err)
	}
	if again != path {
		t.Errorf("expected cached path %s, got %s", path, again)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 server hit, got %d", hits.Load())
	}
}

func TestFetchIntegrityMismatchNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	f := testFetcher(t)
	src := formula.Source{URL: srv.URL + "/hawk-tui-0.2.0.tar.gz", SHA256: digestOf(payload)}

	_, err := f.Fetch(context.Background(), src)
	if !IsIntegrityMismatch(err) {
		t.Fatalf("expected INTEGRITY_MISMATCH, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected no retry on digest mismatch, got %d hits", hits.Load())
	}
	if _, serr := os.Stat(f.CachePath(src)); !os.IsNotExist(serr) {
		t.Errorf("expected bad artifact to be evicted, stat err = %v", serr)
	}
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	f := testFetcher(t)
	src := formula.Source{URL: srv.URL + "/hawk-tui-0.2.0.tar.gz", SHA256: digestOf(payload)}

	if _, err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestFetchUnreachableAfterAttempts(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := testFetcher(t, WithAttempts(2))
	src := formula.Source{URL: srv.URL + "/hawk-tui-0.2.0.tar.gz", SHA256: digestOf(payload)}

	_, err := f.Fetch(context.Background(), src)
	if !IsUnreachable(err) {
		t.Fatalf("expected UNREACHABLE, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestFetchCorruptCacheEntryRefetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	f := testFetcher(t)
	src := formula.Source{URL: srv.URL + "/hawk-tui-0.2.0.tar.gz", SHA256: digestOf(payload)}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.CachePath(src), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != payload {
		t.Errorf("expected refetched payload, got %q", data)
	}
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := testFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := formula.Source{URL: srv.URL + "/hawk-tui-0.2.0.tar.gz", SHA256: digestOf(payload)}
	if _, err := f.Fetch(ctx, src); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestCachePathUsesDigest(t *testing.T) {
	f := testFetcher(t)
	src := formula.Source{
		URL:    "https://files.pythonhosted.org/packages/hawk-tui-0.2.0.tar.gz",
		SHA256: "9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08",
	}
	got := f.CachePath(src)
	want := filepath.Join(f.cacheDir, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08-hawk-tui-0.2.0.tar.gz")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
