package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/agentlens/internal/pricing"
	"github.com/theirongolddev/agentlens/internal/source"
)

const sessionLines = `{"type":"user","timestamp":"2025-06-01T10:00:00Z","uuid":"u1","message":{"role":"user","content":"list the tests"}}
{"type":"assistant","timestamp":"2025-06-01T10:00:05Z","uuid":"a1","message":{"id":"msg_1","model":"claude-3-5-sonnet-20241022","stop_reason":"end_turn","content":[{"type":"text","text":"Done."}],"usage":{"input_tokens":100,"output_tokens":20}}}
`

// seedPricingCache writes a fresh rate-table cache so tests never reach
// the external pricing source.
func seedPricingCache(t *testing.T, cacheDir string) {
	t.Helper()
	envelope := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"source":    pricing.SourceLiteLLM,
		"version":   "1.0",
		"pricing":   pricing.Defaults(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "pricing.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestService sets up a claude project directory with one session
// file and a service caching into a fresh directory. It returns the
// service, the project's log path, and the shared cache directory.
func newTestService(t *testing.T) (*Service, string, string) {
	t.Helper()
	claudeBase := t.TempDir()
	logPath := filepath.Join(claudeBase, "-home-user-webapp")
	if err := os.MkdirAll(logPath, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(logPath, "s1.jsonl"), []byte(sessionLines), 0o644); err != nil {
		t.Fatal(err)
	}

	cacheDir := t.TempDir()
	seedPricingCache(t, cacheDir)

	svc := New(Options{
		Locator: &source.Locator{
			ClaudeBase: claudeBase,
			CodexBase:  filepath.Join(claudeBase, "no-codex"),
		},
		CacheDir:        cacheDir,
		MaxProjects:     5,
		MaxMBPerProject: 100,
	})
	return svc, logPath, cacheDir
}

func reopen(t *testing.T, svc *Service, cacheDir string) *Service {
	t.Helper()
	return New(Options{
		Locator:         svc.locator,
		CacheDir:        cacheDir,
		MaxProjects:     5,
		MaxMBPerProject: 100,
	})
}

func TestLoadOrBuild(t *testing.T) {
	svc, logPath, _ := newTestService(t)

	res, err := svc.LoadOrBuild(context.Background(), logPath)
	if err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(res.Messages))
	}
	if res.Stats.Overview.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", res.Stats.Overview.TotalMessages)
	}
	if res.Stats.Overview.TotalCost <= 0 {
		t.Errorf("TotalCost = %v, want > 0", res.Stats.Overview.TotalCost)
	}

	status := svc.CacheStatus()
	if status.Memory.ProjectsCached != 1 {
		t.Errorf("memory keys = %d, want 1", status.Memory.ProjectsCached)
	}
	info, ok := status.Disk["-home-user-webapp"]
	if !ok || !info.Cached || !info.HasStats || !info.HasMessages {
		t.Errorf("disk status = %+v, want fully cached", info)
	}
	if mi, ok := status.MemoryEntries["-home-user-webapp"]; !ok || !mi.Cached || mi.MessageCount != 2 {
		t.Errorf("memory entry = %+v, want resident with 2 messages", mi)
	}

	again, err := svc.LoadOrBuild(context.Background(), logPath)
	if err != nil {
		t.Fatalf("second LoadOrBuild: %v", err)
	}
	if len(again.Messages) != len(res.Messages) {
		t.Errorf("cached result differs: %d vs %d messages", len(again.Messages), len(res.Messages))
	}
}

func TestLoadOrBuild_DiskHitAcrossRestart(t *testing.T) {
	svc, logPath, cacheDir := newTestService(t)
	if _, err := svc.LoadOrBuild(context.Background(), logPath); err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}

	// Fresh memory tier, same disk tier, unchanged source files.
	svc2 := reopen(t, svc, cacheDir)
	res, err := svc2.LoadOrBuild(context.Background(), logPath)
	if err != nil {
		t.Fatalf("LoadOrBuild after restart: %v", err)
	}
	if res.Stats.Overview.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2 from disk", res.Stats.Overview.TotalMessages)
	}
	if svc2.CacheStatus().Memory.ProjectsCached != 1 {
		t.Error("disk hit did not populate the memory tier")
	}
}

func TestLoadOrBuild_RebuildsWhenSourceChanges(t *testing.T) {
	svc, logPath, cacheDir := newTestService(t)
	if _, err := svc.LoadOrBuild(context.Background(), logPath); err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}

	extra := `{"type":"user","timestamp":"2025-06-01T11:00:00Z","uuid":"u2","message":{"role":"user","content":"one more thing"}}` + "\n"
	path := filepath.Join(logPath, "s1.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(data, extra...), 0o644); err != nil {
		t.Fatal(err)
	}

	svc2 := reopen(t, svc, cacheDir)
	res, err := svc2.LoadOrBuild(context.Background(), logPath)
	if err != nil {
		t.Fatalf("LoadOrBuild after change: %v", err)
	}
	if res.Stats.Overview.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3 after rebuild", res.Stats.Overview.TotalMessages)
	}
}

func TestInvalidate(t *testing.T) {
	svc, logPath, _ := newTestService(t)
	if _, err := svc.LoadOrBuild(context.Background(), logPath); err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}

	if err := svc.Invalidate(logPath); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	status := svc.CacheStatus()
	if status.Memory.ProjectsCached != 0 {
		t.Errorf("memory keys = %d after invalidate, want 0", status.Memory.ProjectsCached)
	}
	if info := status.Disk["-home-user-webapp"]; info.Cached {
		t.Errorf("disk still cached after invalidate: %+v", info)
	}

	// The next load rebuilds from scratch.
	res, err := svc.LoadOrBuild(context.Background(), logPath)
	if err != nil {
		t.Fatalf("LoadOrBuild after invalidate: %v", err)
	}
	if res.Stats.Overview.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", res.Stats.Overview.TotalMessages)
	}
}

func TestProjectsAndSlugs(t *testing.T) {
	svc, logPath, _ := newTestService(t)

	projects := svc.Projects()
	if len(projects) != 1 {
		t.Fatalf("len(Projects) = %d, want 1", len(projects))
	}
	if projects[0].DisplayName != "webapp" {
		t.Errorf("DisplayName = %q, want webapp", projects[0].DisplayName)
	}

	slug := svc.Slug(logPath)
	if slug != "-home-user-webapp" {
		t.Errorf("Slug = %q", slug)
	}
	resolved, ok := svc.ResolveSlug(slug)
	if !ok || resolved != logPath {
		t.Errorf("ResolveSlug(%q) = %q, %v", slug, resolved, ok)
	}
	if _, ok := svc.ResolveSlug("no-such-project"); ok {
		t.Error("ResolveSlug resolved a missing project")
	}
}

func TestGlobalSummary(t *testing.T) {
	svc, logPath, _ := newTestService(t)
	if _, err := svc.LoadOrBuild(context.Background(), logPath); err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}

	summary, err := svc.GlobalSummary(context.Background())
	if err != nil {
		t.Fatalf("GlobalSummary: %v", err)
	}
	if summary.TotalProjects != 1 {
		t.Errorf("TotalProjects = %d, want 1", summary.TotalProjects)
	}
	if summary.TotalInputTokens != 100 || summary.TotalOutputTokens != 20 {
		t.Errorf("tokens = %d/%d, want 100/20", summary.TotalInputTokens, summary.TotalOutputTokens)
	}
	if summary.TotalCommands != 1 {
		t.Errorf("TotalCommands = %d, want 1", summary.TotalCommands)
	}
	if !strings.HasPrefix(summary.FirstUseDate, "2025-06-01") {
		t.Errorf("FirstUseDate = %q", summary.FirstUseDate)
	}
}

func TestPricingInfo(t *testing.T) {
	svc, _, _ := newTestService(t)

	table, src := svc.PricingInfo(context.Background())
	if src != pricing.SourceCache {
		t.Errorf("source = %q, want %q", src, pricing.SourceCache)
	}
	if _, ok := table["claude-3-5-sonnet-20241022"]; !ok {
		t.Error("table missing sonnet entry")
	}
}
