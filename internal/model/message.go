// Package model defines the normalized message and project types shared
// across the source parsers, the processing pipeline, and the caches.
package model

// Type classifies a normalized message.
type Type string

const (
	TypeUser           Type = "user"
	TypeAssistant      Type = "assistant"
	TypeTask           Type = "task"
	TypeSummary        Type = "summary"
	TypeCompactSummary Type = "compact_summary"
)

// TokenUsage holds per-message token counts. Cache fields follow the
// Anthropic usage block naming.
type TokenUsage struct {
	Input         int64 `json:"input"`
	Output        int64 `json:"output"`
	CacheCreation int64 `json:"cache_creation"`
	CacheRead     int64 `json:"cache_read"`
}

// Add accumulates another usage block into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.CacheCreation += other.CacheCreation
	u.CacheRead += other.CacheRead
}

// Total returns the sum of all four counters.
func (u TokenUsage) Total() int64 {
	return u.Input + u.Output + u.CacheCreation + u.CacheRead
}

// ToolCall is a single tool invocation extracted from an assistant message.
type ToolCall struct {
	Name  string         `json:"name"`
	ID    string         `json:"id,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// Message is the normalized, dialect-independent record every log entry is
// reduced to. Timestamps are RFC 3339 strings; empty means unknown.
//
// Fields tagged `json:"-"` carry parse-time detail consumed by later
// pipeline phases and are never persisted.
type Message struct {
	SessionID string     `json:"session_id"`
	Type      Type       `json:"type"`
	Timestamp string     `json:"timestamp"`
	Model     string     `json:"model"`
	Content   string     `json:"content"`
	Tools     []ToolCall `json:"tools"`
	Tokens    TokenUsage `json:"tokens"`
	Cwd       string     `json:"cwd"`

	UUID          string `json:"uuid"`
	ParentUUID    string `json:"parent_uuid,omitempty"`
	LeafUUID      string `json:"leaf_uuid,omitempty"`
	IsSidechain   bool   `json:"is_sidechain"`
	HasToolResult bool   `json:"has_tool_result"`
	Error         bool   `json:"error"`

	// MessageID links streaming fragments of one assistant turn.
	MessageID string `json:"message_id,omitempty"`

	// Set by the streaming merge when a turn spans several records.
	StartTimestamp string `json:"start_timestamp,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`

	// Interaction annotations stamped onto user commands.
	InteractionToolCount      int    `json:"interaction_tool_count,omitempty"`
	InteractionModel          string `json:"interaction_model,omitempty"`
	InteractionAssistantSteps int    `json:"interaction_assistant_steps,omitempty"`

	StopReason       string `json:"-"`
	ToolResultBlocks int    `json:"-"`
}

// IsToolResult reports whether the message carries tool output rather than
// typed user input.
func (m *Message) IsToolResult() bool {
	return m.HasToolResult || m.ToolResultBlocks > 0
}
