package stats

import (
	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/pricing"
)

// Document is the full analytics artifact produced for one project.
// It is serialized as-is into the disk cache and over the API.
type Document struct {
	Overview         Overview               `json:"overview"`
	DailyStats       map[string]*DailyStat  `json:"daily_stats"`
	HourlyPattern    HourlyPattern          `json:"hourly_pattern"`
	Tools            ToolStats              `json:"tools"`
	Models           map[string]*ModelUsage `json:"models"`
	UserInteractions UserInteractions       `json:"user_interactions"`
	Errors           ErrorStats             `json:"errors"`
	Cache            CacheStats             `json:"cache"`
	FirstMessageDate string                 `json:"first_message_date,omitempty"`
	LastMessageDate  string                 `json:"last_message_date,omitempty"`
	GeneratedAt      string                 `json:"generated_at"`
}

// Overview summarizes the whole project.
type Overview struct {
	ProjectName   string             `json:"project_name"`
	LogDirName    string             `json:"log_dir_name"`
	TotalMessages int                `json:"total_messages"`
	MessageTypes  map[model.Type]int `json:"message_types"`
	TotalTokens   model.TokenUsage   `json:"total_tokens"`
	Sessions      int                `json:"sessions"`
	TotalCost     float64            `json:"total_cost"`
}

// DailyStat is one local-time day bucket.
type DailyStat struct {
	Messages int              `json:"messages"`
	Sessions int              `json:"sessions"`
	Tokens   model.TokenUsage `json:"tokens"`
	Cost     DailyCost        `json:"cost"`
}

// DailyCost splits a day's cost by model.
type DailyCost struct {
	Total   float64                       `json:"total"`
	ByModel map[string]*pricing.Breakdown `json:"by_model"`
}

// HourlyPattern buckets messages and tokens by local hour of day.
// Both maps always carry all 24 hours.
type HourlyPattern struct {
	Messages map[int]int               `json:"messages"`
	Tokens   map[int]*model.TokenUsage `json:"tokens"`
}

// ToolStats reports tool usage counted during the parse phase.
type ToolStats struct {
	UsageCounts map[string]int `json:"usage_counts"`
	TotalCalls  int            `json:"total_calls"`
	UniqueTools int            `json:"unique_tools"`
}

// ModelUsage is the per-model token breakdown.
type ModelUsage struct {
	Count        int   `json:"count"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// UserInteractions holds command-level behavioral metrics.
type UserInteractions struct {
	UserCommandsAnalyzed           int             `json:"user_commands_analyzed"`
	NonInterruptionCommands        int             `json:"non_interruption_commands"`
	CommandsRequiringTools         int             `json:"commands_requiring_tools"`
	PercentageRequiringTools       float64         `json:"percentage_requiring_tools"`
	AvgStepsPerCommand             float64         `json:"avg_steps_per_command"`
	AvgToolsPerCommand             float64         `json:"avg_tools_per_command"`
	AvgToolsWhenUsed               float64         `json:"avg_tools_when_used"`
	CommandsFollowedByInterruption int             `json:"commands_followed_by_interruption"`
	InterruptionRate               float64         `json:"interruption_rate"`
	TotalToolsUsed                 int             `json:"total_tools_used"`
	TotalSearchTools               int             `json:"total_search_tools"`
	SearchToolPercentage           float64         `json:"search_tool_percentage"`
	CommandDetails                 []CommandDetail `json:"command_details"`
}

// CommandDetail describes one user command and its response chain.
type CommandDetail struct {
	UserMessage            string `json:"user_message"`
	Timestamp              string `json:"timestamp"`
	SessionID              string `json:"session_id"`
	AssistantSteps         int    `json:"assistant_steps"`
	ToolCount              int    `json:"tool_count"`
	Model                  string `json:"model"`
	IsInterruption         bool   `json:"is_interruption"`
	FollowedByInterruption bool   `json:"followed_by_interruption"`
}

// ErrorStats aggregates category-matched errors. Rate is a 0-1 fraction
// of all messages.
type ErrorStats struct {
	Total      int            `json:"total"`
	Rate       float64        `json:"rate"`
	ByCategory map[string]int `json:"by_category"`
}

// CacheStats reports prompt-cache token totals. HitRate is a percentage.
type CacheStats struct {
	TotalCreated int64   `json:"total_created"`
	TotalRead    int64   `json:"total_read"`
	HitRate      float64 `json:"hit_rate"`
}
