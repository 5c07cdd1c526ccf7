// Package stats turns a reconciled message list into the full analytics
// document: overview, daily/hourly series, tool/model/error breakdowns,
// user-interaction metrics, cache hit rate, and cost.
package stats

import "github.com/theirongolddev/agentlens/internal/model"

// Accumulator collects running counters during the per-file parse phase,
// before any deduplication. Tool usage and parse errors are only
// observable there: merged and deduplicated messages no longer map 1:1
// onto log lines.
type Accumulator struct {
	MessageCounts map[model.Type]int
	ToolUsage     map[string]int
	ParseErrors   int
	SummaryCount  int
	CompactCount  int
	FilesSeen     int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		MessageCounts: make(map[model.Type]int),
		ToolUsage:     make(map[string]int),
	}
}

// Observe records one parsed message.
func (a *Accumulator) Observe(m *model.Message) {
	a.MessageCounts[m.Type]++
	for _, tool := range m.Tools {
		a.ToolUsage[tool.Name]++
	}
	switch m.Type {
	case model.TypeSummary:
		a.SummaryCount++
	case model.TypeCompactSummary:
		a.CompactCount++
	}
}

// ResetMessageCounts clears the per-type counts so they can be recounted
// from the final deduplicated list.
func (a *Accumulator) ResetMessageCounts() {
	a.MessageCounts = make(map[model.Type]int)
}
