package pricing

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const litellmBody = `{
	"claude-sonnet-4-20250514": {
		"litellm_provider": "anthropic",
		"input_cost_per_token": 0.000003,
		"output_cost_per_token": 0.000015,
		"cache_creation_input_token_cost": 0.00000375,
		"cache_read_input_token_cost": 0.0000003
	},
	"claude-3-5-haiku-20241022": {
		"litellm_provider": "anthropic",
		"input_cost_per_token": 0.000001,
		"output_cost_per_token": 0.000005
	},
	"gpt-4o": {
		"litellm_provider": "openai",
		"input_cost_per_token": 0.0000025,
		"output_cost_per_token": 0.00001
	}
}`

func testService(t *testing.T, handler http.HandlerFunc, now time.Time) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Service{
		cacheDir: t.TempDir(),
		url:      srv.URL,
		http:     srv.Client(),
		now:      func() time.Time { return now },
	}, srv
}

func writePricingCache(t *testing.T, s *Service, table Table, cachedAt time.Time) {
	t.Helper()
	cf := cacheFile{
		Timestamp: cachedAt.UTC().Format(time.RFC3339),
		Source:    SourceLiteLLM,
		Version:   "1.0",
		Pricing:   table,
	}
	data, err := json.Marshal(cf)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.cachePath(), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGet_FreshCacheSkipsFetch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fetched := false
	s, _ := testService(t, func(w http.ResponseWriter, r *http.Request) {
		fetched = true
	}, now)
	writePricingCache(t, s, Table{"cached-model": {Input: 1}}, now.Add(-time.Hour))

	table, source := s.Get(context.Background())
	if source != SourceCache {
		t.Fatalf("source = %q, want %q", source, SourceCache)
	}
	if _, ok := table["cached-model"]; !ok {
		t.Error("cached table not returned")
	}
	if fetched {
		t.Error("fetched despite fresh cache")
	}
}

func TestGet_StaleCacheTriggersFetch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _ := testService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(litellmBody))
	}, now)
	writePricingCache(t, s, Table{"cached-model": {Input: 1}}, now.Add(-25*time.Hour))

	table, source := s.Get(context.Background())
	if source != SourceLiteLLM {
		t.Fatalf("source = %q, want %q", source, SourceLiteLLM)
	}
	if _, ok := table["claude-sonnet-4-20250514"]; !ok {
		t.Error("fetched table missing expected model")
	}
	if _, ok := table["gpt-4o"]; ok {
		t.Error("non-anthropic model kept")
	}

	// The fetch result replaces the stale cache.
	cached, cachedAt := s.loadCache()
	if _, ok := cached["claude-sonnet-4-20250514"]; !ok {
		t.Error("cache not rewritten with fresh table")
	}
	if !cachedAt.Equal(now) {
		t.Errorf("cache timestamp = %v, want %v", cachedAt, now)
	}
}

func TestGet_FetchFailureFallsBackToStaleCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _ := testService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, now)
	writePricingCache(t, s, Table{"cached-model": {Input: 1}}, now.Add(-48*time.Hour))

	table, source := s.Get(context.Background())
	if source != SourceCache {
		t.Fatalf("source = %q, want stale cache", source)
	}
	if _, ok := table["cached-model"]; !ok {
		t.Error("stale cache table not returned")
	}
}

func TestGet_NoCacheAndFetchFailureUsesDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _ := testService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, now)

	table, source := s.Get(context.Background())
	if source != SourceDefault {
		t.Fatalf("source = %q, want %q", source, SourceDefault)
	}
	if _, ok := table["claude-3-5-sonnet-20241022"]; !ok {
		t.Error("default table missing sonnet entry")
	}
}

func TestFetch_DefaultsMissingCacheRates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _ := testService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(litellmBody))
	}, now)

	table, err := s.fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	haiku := table["claude-3-5-haiku-20241022"]
	if math.Abs(haiku.CacheCreation-haiku.Input*1.25) > 1e-18 {
		t.Errorf("CacheCreation = %v, want 1.25x input", haiku.CacheCreation)
	}
	if math.Abs(haiku.CacheRead-haiku.Input*0.10) > 1e-18 {
		t.Errorf("CacheRead = %v, want 0.10x input", haiku.CacheRead)
	}
}

func TestForceRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _ := testService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(litellmBody))
	}, now)

	if err := s.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.cacheDir, cacheFileName)); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
	cached, _ := s.loadCache()
	if _, ok := cached["claude-sonnet-4-20250514"]; !ok {
		t.Error("refreshed cache missing fetched model")
	}
}
