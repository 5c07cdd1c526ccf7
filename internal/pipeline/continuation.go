package pipeline

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/agentlens/internal/source"
)

// continuationCacheName is the sidecar manifest written next to the
// session files. It is valid only while it is newer than every source
// file it was derived from.
const continuationCacheName = ".continuation_cache.json"

// continuationProbe is the minimal view of a raw line needed to decide
// whether a session opens as a continuation.
type continuationProbe struct {
	Type             string `json:"type"`
	IsCompactSummary bool   `json:"isCompactSummary"`
}

// detectContinuations maps session IDs to the session they continue.
// A session continues its lexicographic predecessor when one of its
// first entries is a compact summary or a literal "continue" command.
func detectContinuations(logDir string, files []string) map[string]string {
	cachePath := filepath.Join(logDir, continuationCacheName)

	if cached := loadContinuationCache(cachePath, files); cached != nil {
		return cached
	}

	continuations := make(map[string]string)

	for i, path := range files {
		if i == 0 {
			continue
		}
		if sessionOpensAsContinuation(path) {
			continuations[source.SessionID(path)] = source.SessionID(files[i-1])
		}
	}

	if data, err := json.Marshal(continuations); err == nil {
		_ = os.WriteFile(cachePath, data, 0o644)
	}

	return continuations
}

// loadContinuationCache returns the cached map when the cache file is
// newer than every source file, nil otherwise.
func loadContinuationCache(cachePath string, files []string) map[string]string {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if !cacheInfo.ModTime().After(info.ModTime()) {
			return nil
		}
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil
	}
	var cached map[string]string
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	return cached
}

// sessionOpensAsContinuation inspects the first five entries of a file.
func sessionOpensAsContinuation(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), source.MaxLineSize)

	for i := 0; i < 5 && scanner.Scan(); i++ {
		line := scanner.Bytes()

		var probe continuationProbe
		if err := json.Unmarshal(line, &probe); err != nil {
			continue
		}
		if probe.IsCompactSummary {
			return true
		}
		if probe.Type == "user" {
			content := source.TextContent(line)
			if strings.EqualFold(strings.TrimSpace(content), "continue") {
				return true
			}
		}
	}
	return false
}
