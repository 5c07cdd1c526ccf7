package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	litellmURL     = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"
	requestTimeout = 10 * time.Second
	maxBodySize    = 32 << 20
	cacheDuration  = 24 * time.Hour
	cacheFileName  = "pricing.json"
)

// Source labels where a rate table came from.
const (
	SourceCache   = "cache"
	SourceLiteLLM = "litellm"
	SourceDefault = "default"
)

// Service fetches the LiteLLM pricing table and caches it on disk.
// Fallback order: fresh cache, live fetch, stale cache, hardcoded
// defaults. A fetch failure never blocks statistics generation.
type Service struct {
	cacheDir string
	url      string
	http     *http.Client
	now      func() time.Time
}

// NewService creates a pricing service caching under cacheDir.
func NewService(cacheDir string) *Service {
	return &Service{
		cacheDir: cacheDir,
		url:      litellmURL,
		http:     &http.Client{Timeout: requestTimeout},
		now:      time.Now,
	}
}

// cacheFile is the on-disk envelope around a cached table.
type cacheFile struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Version   string `json:"version"`
	Pricing   Table  `json:"pricing"`
}

// Get returns the current rate table and its source label.
func (s *Service) Get(ctx context.Context) (Table, string) {
	cached, cachedAt := s.loadCache()

	if cached != nil && s.now().Sub(cachedAt) < cacheDuration {
		return cached, SourceCache
	}

	fresh, err := s.fetch(ctx)
	if err == nil {
		s.saveCache(fresh)
		return fresh, SourceLiteLLM
	}

	if cached != nil {
		return cached, SourceCache
	}
	return Defaults(), SourceDefault
}

// ForceRefresh fetches the table regardless of cache age.
func (s *Service) ForceRefresh(ctx context.Context) error {
	fresh, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.saveCache(fresh)
	return nil
}

func (s *Service) cachePath() string {
	return filepath.Join(s.cacheDir, cacheFileName)
}

func (s *Service) loadCache() (Table, time.Time) {
	data, err := os.ReadFile(s.cachePath())
	if err != nil {
		return nil, time.Time{}
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil || len(cf.Pricing) == 0 {
		return nil, time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, cf.Timestamp)
	if err != nil {
		return nil, time.Time{}
	}
	return cf.Pricing, ts
}

func (s *Service) saveCache(table Table) {
	cf := cacheFile{
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Source:    SourceLiteLLM,
		Version:   "1.0",
		Pricing:   table,
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(s.cachePath(), data, 0o644)
}

// litellmModel is one entry of the upstream pricing file. Cache rates
// default to the conventional multiples of the input rate when absent.
type litellmModel struct {
	Provider      string   `json:"litellm_provider"`
	Input         *float64 `json:"input_cost_per_token"`
	Output        *float64 `json:"output_cost_per_token"`
	CacheCreation *float64 `json:"cache_creation_input_token_cost"`
	CacheRead     *float64 `json:"cache_read_input_token_cost"`
}

func (s *Service) fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("pricing: building request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing: fetching table: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("pricing: reading body: %w", err)
	}

	var models map[string]litellmModel
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("pricing: parsing table: %w", err)
	}

	table := Table{}
	for name, m := range models {
		if m.Provider != "anthropic" || m.Input == nil {
			continue
		}
		rates := Rates{Input: *m.Input}
		if m.Output != nil {
			rates.Output = *m.Output
		}
		if m.CacheCreation != nil {
			rates.CacheCreation = *m.CacheCreation
		} else {
			rates.CacheCreation = rates.Input * 1.25
		}
		if m.CacheRead != nil {
			rates.CacheRead = *m.CacheRead
		} else {
			rates.CacheRead = rates.Input * 0.10
		}
		table[name] = rates
	}

	if len(table) == 0 {
		return Defaults(), nil
	}
	return table, nil
}
