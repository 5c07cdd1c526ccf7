// Package service is the facade the server and CLI call into. It owns
// the cache-then-reconcile flow: memory cache, disk cache, and as a
// last resort the full pipeline, with an in-flight guard so two callers
// asking for the same project never run reconciliation twice.
package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/theirongolddev/agentlens/internal/cache"
	"github.com/theirongolddev/agentlens/internal/global"
	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/pipeline"
	"github.com/theirongolddev/agentlens/internal/pricing"
	"github.com/theirongolddev/agentlens/internal/source"
	"github.com/theirongolddev/agentlens/internal/stats"
)

// Options configures a Service.
type Options struct {
	Locator         *source.Locator
	CacheDir        string
	MaxProjects     int
	MaxMBPerProject int
	TimezoneOffset  int
}

// Service wires the locator, both cache tiers, the pricing service, and
// the global aggregator behind the public operations.
type Service struct {
	locator  *source.Locator
	mem      *cache.Memory
	disk     *cache.Disk
	pricing  *pricing.Service
	agg      *global.Aggregator
	tzOffset int
	inflight singleflight.Group
}

// Result is one project's processed data.
type Result struct {
	Messages []model.Message
	Stats    *stats.Document
}

func New(opts Options) *Service {
	s := &Service{
		locator:  opts.Locator,
		mem:      cache.NewMemory(opts.MaxProjects, opts.MaxMBPerProject),
		disk:     cache.NewDisk(opts.CacheDir),
		pricing:  pricing.NewService(opts.CacheDir),
		tzOffset: opts.TimezoneOffset,
	}
	s.agg = global.New(s.mem, s.disk, s.buildProject)
	return s
}

// Projects enumerates every known project directory.
func (s *Service) Projects() []model.ProjectMetadata {
	return s.locator.Projects()
}

// ResolveSlug maps an identifier back to a project log path.
func (s *Service) ResolveSlug(slug string) (string, bool) {
	return s.locator.ResolveSlug(slug)
}

// Slug returns the identifier for a project log path.
func (s *Service) Slug(logPath string) string {
	return s.locator.Slug(logPath)
}

// LoadOrBuild returns a project's messages and statistics, checking
// memory, then disk, then running the full pipeline. Concurrent calls
// for the same path share one pipeline run.
func (s *Service) LoadOrBuild(ctx context.Context, logPath string) (*Result, error) {
	if messages, doc, ok := s.mem.Get(logPath); ok {
		return &Result{Messages: messages, Stats: doc}, nil
	}

	v, err, _ := s.inflight.Do(logPath, func() (any, error) {
		// Re-check under the guard: the first caller may have
		// populated the cache while we waited.
		if messages, doc, ok := s.mem.Get(logPath); ok {
			return &Result{Messages: messages, Stats: doc}, nil
		}

		if !s.disk.HasChanges(logPath) {
			doc, okStats := s.disk.GetStats(logPath)
			messages, okMsgs := s.disk.GetMessages(logPath)
			if okStats && okMsgs {
				s.mem.Put(logPath, messages, doc, false)
				return &Result{Messages: messages, Stats: doc}, nil
			}
		}

		meta := s.locator.Describe(logPath)
		messages, doc, err := s.buildProject(meta)
		if err != nil {
			return nil, err
		}
		if err := s.disk.SaveStats(logPath, doc); err != nil {
			return nil, fmt.Errorf("caching stats: %w", err)
		}
		if err := s.disk.SaveMessages(logPath, messages); err != nil {
			return nil, fmt.Errorf("caching messages: %w", err)
		}
		s.mem.Put(logPath, messages, doc, false)
		return &Result{Messages: messages, Stats: doc}, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// buildProject runs the reconciliation pipeline with the current
// pricing table. Shared with the aggregator's backfill and warming.
func (s *Service) buildProject(meta model.ProjectMetadata) ([]model.Message, *stats.Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	table, _ := s.pricing.Get(ctx)

	proc := pipeline.New(meta, table)
	return proc.Process(pipeline.Options{TimezoneOffset: s.tzOffset})
}

// Invalidate drops a project from both cache tiers.
func (s *Service) Invalidate(logPath string) error {
	s.mem.Invalidate(logPath)
	return s.disk.Invalidate(logPath)
}

// GlobalSummary aggregates cached statistics across every project.
func (s *Service) GlobalSummary(ctx context.Context) (*global.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.agg.GlobalStats(s.Projects()), nil
}

// ProcessUncached backfills up to limit projects with no cache entry.
func (s *Service) ProcessUncached(ctx context.Context, limit int) int {
	return s.agg.ProcessUncached(ctx, s.Projects(), limit)
}

// Warm preloads the most recently active projects into the memory cache.
func (s *Service) Warm(ctx context.Context, limit int) int {
	return s.agg.WarmRecent(ctx, s.Projects(), limit, "")
}

// CacheStatus reports both tiers for the cache status endpoint.
type CacheStatus struct {
	Memory        cache.MemoryStats           `json:"memory"`
	MemoryEntries map[string]cache.MemoryInfo `json:"memory_entries"`
	Disk          map[string]cache.DiskInfo   `json:"disk"`
}

// CacheStatus snapshots the memory tier and per-project disk state.
func (s *Service) CacheStatus() CacheStatus {
	status := CacheStatus{
		Memory:        s.mem.Stats(),
		MemoryEntries: make(map[string]cache.MemoryInfo),
		Disk:          make(map[string]cache.DiskInfo),
	}
	for _, project := range s.Projects() {
		slug := s.locator.Slug(project.LogPath)
		status.Disk[slug] = s.disk.Info(project.LogPath)
		if info := s.mem.Info(project.LogPath); info.Cached {
			status.MemoryEntries[slug] = info
		}
	}
	return status
}

// PricingInfo returns the active pricing table and its source.
func (s *Service) PricingInfo(ctx context.Context) (pricing.Table, string) {
	return s.pricing.Get(ctx)
}
