// Package global merges per-project statistics into a cross-project
// summary and drives best-effort background processing of projects that
// have no cache entry yet.
package global

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/theirongolddev/agentlens/internal/cache"
	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/stats"
)

// windowDays is the length of the rolling daily series, today included.
const windowDays = 30

// itemPause bounds the background backfill's footprint between projects.
const itemPause = 100 * time.Millisecond

// warmPause is the longer pause between warming passes over a project.
const warmPause = 500 * time.Millisecond

// BuildFunc runs the full reconciliation pipeline for one project. The
// aggregator never calls it on the hot path, only from the backfill and
// warming jobs.
type BuildFunc func(meta model.ProjectMetadata) ([]model.Message, *stats.Document, error)

// Aggregator reads per-project statistics from the cache tiers and
// folds them into one summary. Projects with no cache entry contribute
// nothing; they are candidates for ProcessUncached.
type Aggregator struct {
	mem   *cache.Memory
	disk  *cache.Disk
	build BuildFunc
	now   func() time.Time
}

func New(mem *cache.Memory, disk *cache.Disk, build BuildFunc) *Aggregator {
	return &Aggregator{mem: mem, disk: disk, build: build, now: time.Now}
}

// DailyTokens is one day of the 30-day token series.
type DailyTokens struct {
	Date   string `json:"date"`
	Input  int64  `json:"input"`
	Output int64  `json:"output"`
}

// DailyCost is one day of the 30-day cost series with a coarse
// input/output/cache breakdown.
type DailyCost struct {
	Date       string  `json:"date"`
	Cost       float64 `json:"cost"`
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	CacheCost  float64 `json:"cache_cost"`
}

// Summary is the cross-project aggregate. All-time totals come from
// each project's overview and so include undated messages; the 30-day
// series is summed from daily buckets, which exclude undated messages.
// The divergence between the two is deliberate.
type Summary struct {
	TotalProjects         int           `json:"total_projects"`
	FirstUseDate          string        `json:"first_use_date,omitempty"`
	LastUseDate           string        `json:"last_use_date,omitempty"`
	TotalInputTokens      int64         `json:"total_input_tokens"`
	TotalOutputTokens     int64         `json:"total_output_tokens"`
	TotalCacheReadTokens  int64         `json:"total_cache_read_tokens"`
	TotalCacheWriteTokens int64         `json:"total_cache_write_tokens"`
	TotalCommands         int           `json:"total_commands"`
	TotalCost             float64       `json:"total_cost"`
	DailyTokenUsage       []DailyTokens `json:"daily_token_usage"`
	DailyCosts            []DailyCost   `json:"daily_costs"`
}

// GlobalStats aggregates whatever statistics the cache tiers already
// hold for the given projects. It never triggers reconciliation.
func (a *Aggregator) GlobalStats(projects []model.ProjectMetadata) *Summary {
	end := a.now()
	start := end.AddDate(0, 0, -(windowDays - 1))

	dates := lo.Times(windowDays, func(d int) string {
		return start.AddDate(0, 0, d).Format("2006-01-02")
	})
	tokensByDate := make(map[string]*DailyTokens, windowDays)
	costsByDate := make(map[string]*DailyCost, windowDays)
	for _, date := range dates {
		tokensByDate[date] = &DailyTokens{Date: date}
		costsByDate[date] = &DailyCost{Date: date}
	}

	summary := &Summary{TotalProjects: len(projects)}
	var earliest, latest time.Time

	for _, project := range projects {
		doc := a.projectStats(project.LogPath)
		if doc == nil {
			continue
		}

		summary.TotalInputTokens += doc.Overview.TotalTokens.Input
		summary.TotalOutputTokens += doc.Overview.TotalTokens.Output
		summary.TotalCacheReadTokens += doc.Overview.TotalTokens.CacheRead
		summary.TotalCacheWriteTokens += doc.Overview.TotalTokens.CacheCreation
		summary.TotalCommands += doc.UserInteractions.UserCommandsAnalyzed
		summary.TotalCost += doc.Overview.TotalCost

		for date, day := range doc.DailyStats {
			dt, ok := tokensByDate[date]
			if !ok {
				continue
			}
			dt.Input += day.Tokens.Input
			dt.Output += day.Tokens.Output

			dc := costsByDate[date]
			dc.Cost += day.Cost.Total
			for _, breakdown := range day.Cost.ByModel {
				dc.InputCost += breakdown.InputCost
				dc.OutputCost += breakdown.OutputCost
				dc.CacheCost += breakdown.CacheCreationCost + breakdown.CacheReadCost
			}
		}

		if ts, err := time.Parse(time.RFC3339, doc.FirstMessageDate); err == nil {
			if earliest.IsZero() || ts.Before(earliest) {
				earliest = ts
			}
		}
		if ts, err := time.Parse(time.RFC3339, doc.LastMessageDate); err == nil {
			if latest.IsZero() || ts.After(latest) {
				latest = ts
			}
		}
	}

	if !earliest.IsZero() {
		summary.FirstUseDate = earliest.Format(time.RFC3339)
	}
	if !latest.IsZero() {
		summary.LastUseDate = latest.Format(time.RFC3339)
	}

	summary.DailyTokenUsage = lo.Map(dates, func(date string, _ int) DailyTokens {
		return *tokensByDate[date]
	})
	summary.DailyCosts = lo.Map(dates, func(date string, _ int) DailyCost {
		return *costsByDate[date]
	})
	return summary
}

// projectStats checks memory then disk. A nil return means the project
// is uncached; the aggregator does not build stats on demand.
func (a *Aggregator) projectStats(logPath string) *stats.Document {
	if _, doc, ok := a.mem.Get(logPath); ok {
		return doc
	}
	if doc, ok := a.disk.GetStats(logPath); ok {
		return doc
	}
	return nil
}

// ProcessUncached builds statistics for up to limit projects that have
// no cache entry, populating both tiers. It pauses between projects and
// honors ctx cancellation at each boundary, so partially processed
// projects are either fully cached or untouched.
func (a *Aggregator) ProcessUncached(ctx context.Context, projects []model.ProjectMetadata, limit int) int {
	processed := 0
	for _, project := range projects {
		if processed >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return processed
		}
		if a.projectStats(project.LogPath) != nil {
			continue
		}

		messages, doc, err := a.build(project)
		if err != nil {
			log.Printf("Backfill failed for %s: %v", project.DirName, err)
			continue
		}
		a.store(project.LogPath, messages, doc, false)
		processed++

		select {
		case <-ctx.Done():
			return processed
		case <-time.After(itemPause):
		}
	}
	return processed
}

// WarmRecent preloads the most recently modified projects into the
// memory cache, forcing entries in past the protection window. An
// optional excludePath skips the project a foreground request is
// already handling.
func (a *Aggregator) WarmRecent(ctx context.Context, projects []model.ProjectMetadata, limit int, excludePath string) int {
	ordered := make([]model.ProjectMetadata, len(projects))
	copy(ordered, projects)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].LastModified.After(ordered[j].LastModified)
	})

	warmed := 0
	for _, project := range ordered {
		if warmed >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return warmed
		}
		if project.LogPath == excludePath {
			continue
		}
		if _, _, ok := a.mem.Get(project.LogPath); ok {
			continue
		}

		select {
		case <-ctx.Done():
			return warmed
		case <-time.After(itemPause):
		}

		messages, doc, err := a.build(project)
		if err != nil {
			log.Printf("Warming failed for %s: %v", project.DirName, err)
			continue
		}
		a.store(project.LogPath, messages, doc, true)
		warmed++

		select {
		case <-ctx.Done():
			return warmed
		case <-time.After(warmPause):
		}
	}
	return warmed
}

// store writes disk first so the persistent tier is never behind the
// memory tier after a crash mid-save.
func (a *Aggregator) store(logPath string, messages []model.Message, doc *stats.Document, force bool) {
	if err := a.disk.SaveStats(logPath, doc); err != nil {
		log.Printf("Saving stats for %s: %v", logPath, err)
	}
	if err := a.disk.SaveMessages(logPath, messages); err != nil {
		log.Printf("Saving messages for %s: %v", logPath, err)
	}
	a.mem.Put(logPath, messages, doc, force)
}
