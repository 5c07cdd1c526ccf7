package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/theirongolddev/agentlens/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func testLocator(t *testing.T) *Locator {
	t.Helper()
	base := t.TempDir()
	return &Locator{
		ClaudeBase: filepath.Join(base, "claude", "projects"),
		CodexBase:  filepath.Join(base, "codex", "sessions"),
	}
}

func TestProjects_BothProviders(t *testing.T) {
	l := testLocator(t)
	writeFile(t, filepath.Join(l.ClaudeBase, "-Users-alice-projects-webapp", "s1.jsonl"),
		`{"type":"user","timestamp":"2025-06-01T10:00:00Z","message":{"content":"hi"}}`+"\n")
	writeFile(t, filepath.Join(l.CodexBase, "2025", "06", "02", "rollout-1.jsonl"),
		`{"timestamp":"2025-06-02T09:00:00Z","type":"session_meta","payload":{"id":"s"}}`+"\n")
	// Empty directories are not projects.
	if err := os.MkdirAll(filepath.Join(l.ClaudeBase, "-Users-alice-empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	projects := l.Projects()
	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}

	claude := projects[0]
	if claude.Provider != model.ProviderClaude {
		t.Errorf("first project provider = %q, want claude first", claude.Provider)
	}
	if claude.DisplayName != "webapp" {
		t.Errorf("DisplayName = %q, want webapp", claude.DisplayName)
	}
	if claude.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", claude.FileCount)
	}

	codex := projects[1]
	if codex.Provider != model.ProviderCodex {
		t.Errorf("second project provider = %q, want codex", codex.Provider)
	}
	if codex.DirName != "codex~2025~06~02" {
		t.Errorf("codex DirName = %q", codex.DirName)
	}
	if codex.DisplayName != "Codex CLI 2025/06/02" {
		t.Errorf("codex DisplayName = %q", codex.DisplayName)
	}
}

func TestSlugRoundTrip(t *testing.T) {
	l := testLocator(t)
	writeFile(t, filepath.Join(l.ClaudeBase, "-Users-alice-projects-webapp", "s1.jsonl"), "{}\n")
	writeFile(t, filepath.Join(l.CodexBase, "2025", "06", "02", "rollout-1.jsonl"), "{}\n")

	for _, p := range l.Projects() {
		slug := l.Slug(p.LogPath)
		resolved, ok := l.ResolveSlug(slug)
		if !ok {
			t.Fatalf("ResolveSlug(%q) failed", slug)
		}
		if resolved != p.LogPath {
			t.Errorf("round trip %q -> %q, want %q", slug, resolved, p.LogPath)
		}
	}
}

func TestResolveSlug_Unknown(t *testing.T) {
	l := testLocator(t)
	if _, ok := l.ResolveSlug("no-such-project"); ok {
		t.Error("resolved a slug with no directory")
	}
	if _, ok := l.ResolveSlug("codex~2025~01"); ok {
		t.Error("resolved a malformed codex slug")
	}
}

func TestDetectProvider_Sniffing(t *testing.T) {
	l := testLocator(t)

	claudeDir := filepath.Join(t.TempDir(), "some-logs")
	writeFile(t, filepath.Join(claudeDir, "s.jsonl"),
		`{"type":"user","timestamp":"t","message":{"content":"hi"}}`+"\n")
	if got := l.DetectProvider(claudeDir); got != model.ProviderClaude {
		t.Errorf("DetectProvider = %q, want claude", got)
	}

	codexDir := filepath.Join(t.TempDir(), "other-logs")
	writeFile(t, filepath.Join(codexDir, "r.jsonl"),
		`{"timestamp":"t","type":"session_meta","payload":{"id":"s"}}`+"\n")
	if got := l.DetectProvider(codexDir); got != model.ProviderCodex {
		t.Errorf("DetectProvider = %q, want codex from payload sniff", got)
	}

	nested := filepath.Join(l.CodexBase, "2025", "01", "01")
	if got := l.DetectProvider(nested); got != model.ProviderCodex {
		t.Errorf("DetectProvider under codex root = %q, want codex", got)
	}
}

func TestDecodeProjectName(t *testing.T) {
	tests := []struct {
		dirName string
		want    string
	}{
		{"-Users-alice-projects-my-cool-project", "my-cool-project"},
		{"-Users-bob-repos-api", "api"},
		{"-home-carol-dev-tool", "tool"},
		{"-Users-dan-Desktop-notes", "notes"},
		{"justaname", "justaname"},
		{"---", "---"},
	}

	for _, tt := range tests {
		t.Run(tt.dirName, func(t *testing.T) {
			got := decodeProjectName(tt.dirName)
			if got != tt.want {
				t.Errorf("decodeProjectName(%q) = %q, want %q", tt.dirName, got, tt.want)
			}
		})
	}
}

func TestSessionID(t *testing.T) {
	if got := SessionID("/tmp/x/abc-123.jsonl"); got != "abc-123" {
		t.Errorf("SessionID = %q, want abc-123", got)
	}
}
