package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/stats"
)

func testMessages(n int) []model.Message {
	msgs := make([]model.Message, n)
	for i := range msgs {
		msgs[i] = model.Message{
			Type:      model.TypeUser,
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: "2025-06-01T10:00:00Z",
		}
	}
	return msgs
}

func testDoc() *stats.Document {
	return &stats.Document{GeneratedAt: "2025-06-01T10:00:00Z"}
}

// fakeClock lets tests move time past the protection window.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory(maxProjects int) (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	c := NewMemory(maxProjects, 500)
	c.now = clock.now
	return c, clock
}

func TestMemory_PutGet(t *testing.T) {
	c, _ := newTestMemory(2)

	if !c.Put("/proj/a", testMessages(3), testDoc(), false) {
		t.Fatal("Put rejected")
	}

	msgs, doc, ok := c.Get("/proj/a")
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if len(msgs) != 3 || doc == nil {
		t.Fatalf("Get returned %d messages, doc=%v", len(msgs), doc)
	}

	if _, _, ok := c.Get("/proj/missing"); ok {
		t.Error("Get hit for unknown key")
	}
}

func TestMemory_EvictsLRUOutsideProtection(t *testing.T) {
	c, clock := newTestMemory(2)

	c.Put("/proj/a", testMessages(1), testDoc(), false)
	clock.advance(time.Minute)
	c.Put("/proj/b", testMessages(1), testDoc(), false)

	// Move past the protection window, touch b so a is the LRU.
	clock.advance(protectionWindow)
	c.Get("/proj/b")

	if !c.Put("/proj/c", testMessages(1), testDoc(), false) {
		t.Fatal("Put rejected with evictable entry present")
	}

	if _, _, ok := c.Get("/proj/a"); ok {
		t.Error("LRU entry /proj/a survived eviction")
	}
	if _, _, ok := c.Get("/proj/b"); !ok {
		t.Error("recently used /proj/b was evicted")
	}
}

func TestMemory_ProtectionWindowBlocksNonForcedPut(t *testing.T) {
	c, _ := newTestMemory(2)

	c.Put("/proj/a", testMessages(1), testDoc(), false)
	c.Put("/proj/b", testMessages(1), testDoc(), false)

	// Everything was just accessed; a non-forced put must yield.
	if c.Put("/proj/c", testMessages(1), testDoc(), false) {
		t.Fatal("Put evicted a protected entry")
	}

	// A forced put evicts the global LRU regardless.
	if !c.Put("/proj/c", testMessages(1), testDoc(), true) {
		t.Fatal("forced Put rejected")
	}
	if _, _, ok := c.Get("/proj/a"); ok {
		t.Error("forced Put should have evicted the LRU entry /proj/a")
	}
}

func TestMemory_SizeRejection(t *testing.T) {
	c := NewMemory(2, 0) // zero MB: everything is oversized
	if c.Put("/proj/a", testMessages(10), testDoc(), false) {
		t.Fatal("oversized entry was stored")
	}
	if c.Stats().SizeRejections != 1 {
		t.Errorf("SizeRejections = %d, want 1", c.Stats().SizeRejections)
	}
}

func TestMemory_ReplaceExistingKey(t *testing.T) {
	c, _ := newTestMemory(1)

	c.Put("/proj/a", testMessages(1), testDoc(), false)
	if !c.Put("/proj/a", testMessages(5), testDoc(), false) {
		t.Fatal("replacing an existing key should not require eviction")
	}

	msgs, _, ok := c.Get("/proj/a")
	if !ok || len(msgs) != 5 {
		t.Fatalf("got %d messages, want replacement with 5", len(msgs))
	}
}

func TestMemory_Invalidate(t *testing.T) {
	c, _ := newTestMemory(2)
	c.Put("/proj/a", testMessages(1), testDoc(), false)

	if !c.Invalidate("/proj/a") {
		t.Fatal("Invalidate returned false for present key")
	}
	if c.Invalidate("/proj/a") {
		t.Fatal("Invalidate returned true for absent key")
	}
	if _, _, ok := c.Get("/proj/a"); ok {
		t.Error("entry survived Invalidate")
	}
}

func TestMemory_Stats(t *testing.T) {
	c, _ := newTestMemory(3)
	c.Put("/proj/a", testMessages(1), testDoc(), false)

	c.Get("/proj/a")
	c.Get("/proj/a")
	c.Get("/proj/nope")

	s := c.Stats()
	if s.ProjectsCached != 1 {
		t.Errorf("ProjectsCached = %d, want 1", s.ProjectsCached)
	}
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if want := float64(2) / 3 * 100; s.HitRate < want-0.01 || s.HitRate > want+0.01 {
		t.Errorf("HitRate = %.2f, want %.2f", s.HitRate, want)
	}
	if len(s.CacheKeys) != 1 || s.CacheKeys[0] != "/proj/a" {
		t.Errorf("CacheKeys = %v", s.CacheKeys)
	}
}

func TestMemory_Info(t *testing.T) {
	c, _ := newTestMemory(2)
	c.Put("/proj/a", testMessages(4), testDoc(), false)

	info := c.Info("/proj/a")
	if !info.Cached {
		t.Fatal("Info reports uncached for resident entry")
	}
	if info.MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", info.MessageCount)
	}
	if c.Info("/proj/missing").Cached {
		t.Error("Info reports cached for absent entry")
	}
}
