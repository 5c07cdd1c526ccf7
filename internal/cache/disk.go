package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/stats"
)

const (
	metadataFileName = "metadata.json"
	statsFileName    = "stats.json"
	messagesFileName = "messages.json"
)

// Disk is the persistent cache tier. Each project gets a subdirectory
// named by a hash of its log path, holding the fingerprint manifest and
// the two serialized artifacts. Change detection compares per-file
// (size, truncated mtime) fingerprints; no file content is ever read.
//
// Artifacts are written before the manifest, so a concurrent reader can
// never see a manifest claiming freshness for a file not yet on disk.
type Disk struct {
	root string
	now  func() time.Time
}

// NewDisk creates a disk cache rooted at dir.
func NewDisk(dir string) *Disk {
	return &Disk{root: dir, now: time.Now}
}

// diskManifest is the per-project metadata file.
type diskManifest struct {
	LogPath      string            `json:"log_path"`
	CachedAt     string            `json:"cached_at"`
	Fingerprints map[string]string `json:"file_checksums"`
}

// cacheKey hashes the log path so arbitrary absolute paths become safe
// directory names.
func cacheKey(logPath string) string {
	sum := md5.Sum([]byte(logPath))
	return hex.EncodeToString(sum[:])
}

func (d *Disk) projectDir(logPath string) string {
	return filepath.Join(d.root, cacheKey(logPath))
}

// fingerprints maps each session file name to "size_mtime". Mtime is
// truncated to whole seconds to dodge precision differences across
// filesystems.
func fingerprints(logPath string) map[string]string {
	out := make(map[string]string)
	entries, err := os.ReadDir(logPath)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = fmt.Sprintf("%d_%d", info.Size(), info.ModTime().Unix())
	}
	return out
}

// HasChanges reports whether any session file was added, removed, or
// modified since the last save. A missing or unreadable manifest counts
// as changed.
func (d *Disk) HasChanges(logPath string) bool {
	manifest, err := d.loadManifest(logPath)
	if err != nil {
		return true
	}
	return !equalFingerprints(fingerprints(logPath), manifest.Fingerprints)
}

func equalFingerprints(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for name, fp := range a {
		if b[name] != fp {
			return false
		}
	}
	return true
}

func (d *Disk) loadManifest(logPath string) (*diskManifest, error) {
	data, err := os.ReadFile(filepath.Join(d.projectDir(logPath), metadataFileName))
	if err != nil {
		return nil, err
	}
	var manifest diskManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("cache manifest: %w", err)
	}
	return &manifest, nil
}

// GetStats returns the cached statistics document, or a miss when the
// artifact is absent, corrupt, or stale against the source files.
func (d *Disk) GetStats(logPath string) (*stats.Document, bool) {
	if d.HasChanges(logPath) {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(d.projectDir(logPath), statsFileName))
	if err != nil {
		return nil, false
	}
	var doc stats.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// GetMessages returns the cached message list under the same staleness
// rules as GetStats.
func (d *Disk) GetMessages(logPath string) ([]model.Message, bool) {
	if d.HasChanges(logPath) {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(d.projectDir(logPath), messagesFileName))
	if err != nil {
		return nil, false
	}
	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, false
	}
	return messages, true
}

// SaveStats writes the statistics artifact and refreshes the manifest.
func (d *Disk) SaveStats(logPath string, doc *stats.Document) error {
	if err := d.writeArtifact(logPath, statsFileName, doc); err != nil {
		return err
	}
	return d.writeManifest(logPath)
}

// SaveMessages writes the message artifact and refreshes the manifest.
func (d *Disk) SaveMessages(logPath string, messages []model.Message) error {
	if err := d.writeArtifact(logPath, messagesFileName, messages); err != nil {
		return err
	}
	return d.writeManifest(logPath)
}

func (d *Disk) writeArtifact(logPath, name string, v any) error {
	dir := d.projectDir(logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return atomicWrite(filepath.Join(dir, name), data)
}

func (d *Disk) writeManifest(logPath string) error {
	manifest := diskManifest{
		LogPath:      logPath,
		CachedAt:     d.now().UTC().Format(time.RFC3339),
		Fingerprints: fingerprints(logPath),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return atomicWrite(filepath.Join(d.projectDir(logPath), metadataFileName), data)
}

// atomicWrite lands data via a temp file and rename so readers never see
// a partial artifact.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Invalidate removes the whole per-project cache subtree.
func (d *Disk) Invalidate(logPath string) error {
	return os.RemoveAll(d.projectDir(logPath))
}

// ClearAll removes every cached project.
func (d *Disk) ClearAll() error {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(d.root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// DiskInfo describes one project's disk cache state.
type DiskInfo struct {
	Cached      bool   `json:"cached"`
	CachedAt    string `json:"cached_at,omitempty"`
	FileCount   int    `json:"file_count"`
	HasChanges  bool   `json:"has_changes"`
	HasStats    bool   `json:"has_stats"`
	HasMessages bool   `json:"has_messages"`
}

// Info inspects a project's cache entry without reading artifacts.
func (d *Disk) Info(logPath string) DiskInfo {
	manifest, err := d.loadManifest(logPath)
	if err != nil {
		return DiskInfo{HasChanges: true}
	}
	dir := d.projectDir(logPath)
	info := DiskInfo{
		Cached:     true,
		CachedAt:   manifest.CachedAt,
		FileCount:  len(manifest.Fingerprints),
		HasChanges: !equalFingerprints(fingerprints(logPath), manifest.Fingerprints),
	}
	if _, err := os.Stat(filepath.Join(dir, statsFileName)); err == nil {
		info.HasStats = true
	}
	if _, err := os.Stat(filepath.Join(dir, messagesFileName)); err == nil {
		info.HasMessages = true
	}
	return info
}
