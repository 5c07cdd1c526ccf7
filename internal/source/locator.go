// Package source discovers agent log directories and parses their JSONL
// session files into normalized messages. Two dialects are supported:
// Claude Code project directories and Codex CLI rollout directories.
package source

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/theirongolddev/agentlens/internal/model"
)

// Locator finds log directories for both supported providers.
type Locator struct {
	// ClaudeBase is the Claude Code projects root, ~/.claude/projects.
	// Each immediate subdirectory is one project.
	ClaudeBase string
	// CodexBase is the Codex CLI sessions root, ~/.codex/sessions.
	// Rollouts are nested year/month/day; each day is one project.
	CodexBase string
}

// DefaultLocator returns a locator rooted at the conventional home paths.
func DefaultLocator() *Locator {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Locator{
		ClaudeBase: filepath.Join(home, ".claude", "projects"),
		CodexBase:  filepath.Join(home, ".codex", "sessions"),
	}
}

// Projects returns metadata for every discovered log directory, Claude
// projects first, then Codex days, each group sorted by directory name.
func (l *Locator) Projects() []model.ProjectMetadata {
	var projects []model.ProjectMetadata

	entries, err := os.ReadDir(l.ClaudeBase)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(l.ClaudeBase, e.Name())
			meta, ok := l.describeDir(dir, model.ProviderClaude)
			if ok {
				projects = append(projects, meta)
			}
		}
	}

	for _, day := range l.codexDayDirs() {
		meta, ok := l.describeDir(day, model.ProviderCodex)
		if ok {
			projects = append(projects, meta)
		}
	}

	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Provider != projects[j].Provider {
			return projects[i].Provider == model.ProviderClaude
		}
		return projects[i].DirName < projects[j].DirName
	})
	return projects
}

// codexDayDirs walks the year/month/day layout and returns every day
// directory that contains at least one rollout file.
func (l *Locator) codexDayDirs() []string {
	var days []string
	years, err := os.ReadDir(l.CodexBase)
	if err != nil {
		return nil
	}
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		months, err := os.ReadDir(filepath.Join(l.CodexBase, y.Name()))
		if err != nil {
			continue
		}
		for _, m := range months {
			if !m.IsDir() {
				continue
			}
			dayEntries, err := os.ReadDir(filepath.Join(l.CodexBase, y.Name(), m.Name()))
			if err != nil {
				continue
			}
			for _, d := range dayEntries {
				if !d.IsDir() {
					continue
				}
				dir := filepath.Join(l.CodexBase, y.Name(), m.Name(), d.Name())
				if len(ListSessionFiles(dir)) > 0 {
					days = append(days, dir)
				}
			}
		}
	}
	sort.Strings(days)
	return days
}

// Slug returns the URL-safe identifier for a log directory. Claude
// projects already encode their path with dashes, so the directory name
// itself is the slug. Codex days are encoded as codex~YYYY~MM~DD.
func (l *Locator) Slug(logPath string) string {
	if l.isCodexPath(logPath) {
		rel, err := filepath.Rel(l.CodexBase, logPath)
		if err == nil {
			parts := strings.Split(rel, string(filepath.Separator))
			if len(parts) == 3 {
				return "codex~" + strings.Join(parts, "~")
			}
		}
	}
	return filepath.Base(logPath)
}

// ResolveSlug maps a slug back to its log directory. The second return
// is false when the directory does not exist.
func (l *Locator) ResolveSlug(slug string) (string, bool) {
	var dir string
	if rest, ok := strings.CutPrefix(slug, "codex~"); ok {
		parts := strings.Split(rest, "~")
		if len(parts) != 3 {
			return "", false
		}
		dir = filepath.Join(l.CodexBase, parts[0], parts[1], parts[2])
	} else {
		dir = filepath.Join(l.ClaudeBase, slug)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// Describe builds metadata for an arbitrary log directory, detecting the
// provider when the path is outside both known roots.
func (l *Locator) Describe(logPath string) model.ProjectMetadata {
	meta, _ := l.describeDir(logPath, l.DetectProvider(logPath))
	return meta
}

func (l *Locator) describeDir(dir, provider string) (model.ProjectMetadata, bool) {
	files := ListSessionFiles(dir)
	if len(files) == 0 {
		return model.ProjectMetadata{}, false
	}

	meta := model.ProjectMetadata{
		LogPath:  dir,
		DirName:  l.Slug(dir),
		Provider: provider,
	}
	if provider == model.ProviderCodex {
		parts := strings.Split(strings.TrimPrefix(meta.DirName, "codex~"), "~")
		meta.DisplayName = "Codex CLI " + strings.Join(parts, "/")
	} else {
		meta.DisplayName = decodeProjectName(filepath.Base(dir))
	}

	var totalSize int64
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		meta.FileCount++
		totalSize += info.Size()
		if info.ModTime().After(meta.LastModified) {
			meta.LastModified = info.ModTime()
		}
	}
	meta.TotalSizeMB = float64(totalSize) / (1024 * 1024)
	return meta, true
}

// DetectProvider decides which dialect a log directory holds. Paths under
// the Codex root are rollouts; otherwise the first line of the first file
// is sniffed for the rollout envelope's "payload" field.
func (l *Locator) DetectProvider(logPath string) string {
	if l.isCodexPath(logPath) {
		return model.ProviderCodex
	}
	files := ListSessionFiles(logPath)
	if len(files) == 0 {
		return model.ProviderClaude
	}

	f, err := os.Open(files[0])
	if err != nil {
		return model.ProviderClaude
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	if scanner.Scan() && bytes.Contains(scanner.Bytes(), []byte(`"payload"`)) {
		return model.ProviderCodex
	}
	return model.ProviderClaude
}

func (l *Locator) isCodexPath(logPath string) bool {
	if l.CodexBase == "" {
		return false
	}
	rel, err := filepath.Rel(l.CodexBase, logPath)
	return err == nil && !strings.HasPrefix(rel, "..")
}

// ListSessionFiles returns the sorted *.jsonl files directly under dir.
func ListSessionFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			return "", false
		}
		return filepath.Join(dir, e.Name()), true
	})
	sort.Strings(files)
	return files
}

// decodeProjectName extracts a human-readable project name from the
// dash-encoded directory name Claude Code uses, e.g.
// "-Users-alice-projects-my-cool-project" -> "my-cool-project".
// It finds the last known parent path component and takes everything
// after it, falling back to the last non-empty segment.
func decodeProjectName(dirName string) string {
	parts := strings.Split(dirName, "-")

	knownParents := map[string]bool{
		"projects": true, "repos": true, "src": true,
		"code": true, "workspace": true, "dev": true,
	}

	for i := len(parts) - 2; i >= 0; i-- {
		if knownParents[strings.ToLower(parts[i])] {
			if name := strings.Join(parts[i+1:], "-"); name != "" {
				return name
			}
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return dirName
}

// SessionID derives the session identifier from a log file path.
func SessionID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}
