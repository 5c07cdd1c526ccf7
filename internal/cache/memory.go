// Package cache provides the two storage tiers for processed project
// data: a bounded in-memory LRU with access-time eviction protection,
// and a persistent disk cache keyed by cheap file fingerprints.
package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/stats"
)

// protectionWindow shields recently-accessed entries from background
// eviction so a warming pass never pushes out an actively-viewed project.
const protectionWindow = 5 * time.Minute

// sizeOverheadFactor pads the serialized-size estimate for in-memory
// object overhead.
const sizeOverheadFactor = 1.5

// memoryEntry is one cached project, resident in the LRU list.
type memoryEntry struct {
	key          string
	messages     []model.Message
	stats        *stats.Document
	size         int64
	cachedAt     time.Time
	lastAccessed time.Time
}

// Memory is the process-wide LRU cache of (messages, statistics) pairs
// keyed by project log path. Put may be rejected: oversized entries are
// never stored, and when every resident entry was accessed within the
// protection window a non-forced put yields instead of evicting.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	order       *list.List // front = least recently used
	maxProjects int
	maxBytes    int64
	now         func() time.Time

	hits           int64
	misses         int64
	evictions      int64
	sizeRejections int64
}

// NewMemory creates a memory cache holding up to maxProjects entries of
// at most maxMBPerProject each.
func NewMemory(maxProjects, maxMBPerProject int) *Memory {
	return &Memory{
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		maxProjects: maxProjects,
		maxBytes:    int64(maxMBPerProject) * 1024 * 1024,
		now:         time.Now,
	}
}

// Get returns the cached pair and refreshes both the LRU order and the
// protection clock.
func (c *Memory) Get(key string) ([]model.Message, *stats.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, nil, false
	}

	entry := elem.Value.(*memoryEntry)
	entry.lastAccessed = c.now()
	c.order.MoveToBack(elem)
	c.hits++
	return entry.messages, entry.stats, true
}

// Put stores a pair, evicting per the protection policy when full.
// Returns false when the entry is oversized or when eviction would
// disturb a protected entry and force is unset. Force is meant for
// startup warming only: it evicts the global LRU entry unconditionally.
func (c *Memory) Put(key string, messages []model.Message, doc *stats.Document, force bool) bool {
	size := estimateSize(messages, doc)
	if size > c.maxBytes {
		c.mu.Lock()
		c.sizeRejections++
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}

	if len(c.entries) >= c.maxProjects {
		if !c.evictOne(force) {
			return false
		}
	}

	now := c.now()
	entry := &memoryEntry{
		key:          key,
		messages:     messages,
		stats:        doc,
		size:         size,
		cachedAt:     now,
		lastAccessed: now,
	}
	c.entries[key] = c.order.PushBack(entry)
	return true
}

// evictOne removes the oldest-accessed entry outside the protection
// window. With every entry protected it refuses unless forced, in which
// case the global LRU entry goes.
func (c *Memory) evictOne(force bool) bool {
	now := c.now()

	var candidate *list.Element
	var oldest time.Time
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*memoryEntry)
		if !force && now.Sub(entry.lastAccessed) < protectionWindow {
			continue
		}
		if candidate == nil || entry.lastAccessed.Before(oldest) {
			candidate = elem
			oldest = entry.lastAccessed
		}
	}

	if candidate == nil {
		if !force {
			return false
		}
		candidate = c.order.Front()
		if candidate == nil {
			return false
		}
	}

	entry := candidate.Value.(*memoryEntry)
	c.order.Remove(candidate)
	delete(c.entries, entry.key)
	c.evictions++
	return true
}

// Invalidate removes one entry. Returns whether it was present.
func (c *Memory) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.entries, key)
	return true
}

// Clear drops every entry.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// MemoryStats is an observability snapshot.
type MemoryStats struct {
	ProjectsCached int      `json:"projects_cached"`
	MaxProjects    int      `json:"max_projects"`
	TotalSizeMB    float64  `json:"total_size_mb"`
	Hits           int64    `json:"hits"`
	Misses         int64    `json:"misses"`
	HitRate        float64  `json:"hit_rate"`
	Evictions      int64    `json:"evictions"`
	SizeRejections int64    `json:"size_rejections"`
	CacheKeys      []string `json:"cache_keys"`
}

// Stats reports counters and resident keys, LRU first.
func (c *Memory) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := MemoryStats{
		ProjectsCached: len(c.entries),
		MaxProjects:    c.maxProjects,
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		SizeRejections: c.sizeRejections,
		CacheKeys:      make([]string, 0, len(c.entries)),
	}

	var totalSize int64
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*memoryEntry)
		totalSize += entry.size
		s.CacheKeys = append(s.CacheKeys, entry.key)
	}
	s.TotalSizeMB = float64(totalSize) / 1024 / 1024

	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	return s
}

// MemoryInfo describes a single resident entry.
type MemoryInfo struct {
	Cached       bool    `json:"cached"`
	SizeMB       float64 `json:"size_mb,omitempty"`
	MessageCount int     `json:"message_count,omitempty"`
	CachedAt     string  `json:"cached_at,omitempty"`
	LastAccessed string  `json:"last_accessed,omitempty"`
}

// Info inspects one entry without touching its LRU position.
func (c *Memory) Info(key string) MemoryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return MemoryInfo{}
	}
	entry := elem.Value.(*memoryEntry)
	return MemoryInfo{
		Cached:       true,
		SizeMB:       float64(entry.size) / 1024 / 1024,
		MessageCount: len(entry.messages),
		CachedAt:     entry.cachedAt.UTC().Format(time.RFC3339),
		LastAccessed: entry.lastAccessed.UTC().Format(time.RFC3339),
	}
}

// estimateSize approximates resident memory from serialized size plus a
// fixed overhead factor. Falls back to ~1KB per message when
// serialization fails.
func estimateSize(messages []model.Message, doc *stats.Document) int64 {
	var total int
	if data, err := json.Marshal(messages); err == nil {
		total += len(data)
	} else {
		return int64(len(messages)) * 1000
	}
	if doc != nil {
		if data, err := json.Marshal(doc); err == nil {
			total += len(data)
		}
	}
	return int64(float64(total) * sizeOverheadFactor)
}
