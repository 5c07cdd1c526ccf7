package stats

import (
	"testing"

	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/pricing"
)

func testGenerator() *Generator {
	meta := model.ProjectMetadata{
		DisplayName: "webapp",
		DirName:     "-Users-alice-projects-webapp",
	}
	return NewGenerator(meta, pricing.Defaults())
}

func userMsg(ts, content string) model.Message {
	return model.Message{
		SessionID: "s1",
		Type:      model.TypeUser,
		Timestamp: ts,
		Model:     "N/A",
		Content:   content,
	}
}

func assistantMsg(ts string, tokens model.TokenUsage) model.Message {
	return model.Message{
		SessionID: "s1",
		Type:      model.TypeAssistant,
		Timestamp: ts,
		Model:     "claude-3-5-sonnet-20241022",
		Tokens:    tokens,
	}
}

func TestGenerate_OverviewTotals(t *testing.T) {
	messages := []model.Message{
		assistantMsg("2025-06-01T10:00:05Z", model.TokenUsage{Input: 100, Output: 50, CacheCreation: 20, CacheRead: 400}),
		userMsg("2025-06-01T10:00:00Z", "fix tests"),
		assistantMsg("", model.TokenUsage{Input: 30, Output: 10}), // undated, still counted
	}

	doc := testGenerator().Generate(messages, nil, 0)

	if doc.Overview.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", doc.Overview.TotalMessages)
	}
	if doc.Overview.TotalTokens.Input != 130 || doc.Overview.TotalTokens.Output != 60 {
		t.Errorf("TotalTokens = %+v", doc.Overview.TotalTokens)
	}
	if doc.Overview.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", doc.Overview.Sessions)
	}
	if doc.Overview.TotalCost <= 0 {
		t.Errorf("TotalCost = %f, want > 0", doc.Overview.TotalCost)
	}
	if doc.Overview.ProjectName != "webapp" {
		t.Errorf("ProjectName = %q", doc.Overview.ProjectName)
	}

	// Daily buckets exclude the undated message, so daily tokens are
	// smaller than the overview totals. The divergence is deliberate.
	var dailyInput int64
	for _, day := range doc.DailyStats {
		dailyInput += day.Tokens.Input
	}
	if dailyInput != 100 {
		t.Errorf("daily input sum = %d, want 100 (undated excluded)", dailyInput)
	}
}

func TestGenerate_TimezoneShiftsBuckets(t *testing.T) {
	// 23:30 UTC lands on the next local day at +540 (Tokyo) and the
	// previous hour block at -420 (Pacific).
	messages := []model.Message{
		assistantMsg("2025-06-01T23:30:00Z", model.TokenUsage{Input: 10, Output: 5}),
	}
	g := testGenerator()

	utc := g.Generate(messages, nil, 0)
	if _, ok := utc.DailyStats["2025-06-01"]; !ok {
		t.Errorf("UTC daily keys = %v, want 2025-06-01", keys(utc.DailyStats))
	}
	if utc.HourlyPattern.Messages[23] != 1 {
		t.Error("UTC hourly bucket 23 empty")
	}

	tokyo := g.Generate(messages, nil, 540)
	if _, ok := tokyo.DailyStats["2025-06-02"]; !ok {
		t.Errorf("+540 daily keys = %v, want 2025-06-02", keys(tokyo.DailyStats))
	}
	if tokyo.HourlyPattern.Messages[8] != 1 {
		t.Error("+540 hourly bucket 8 empty")
	}

	pacific := g.Generate(messages, nil, -420)
	if _, ok := pacific.DailyStats["2025-06-01"]; !ok {
		t.Errorf("-420 daily keys = %v", keys(pacific.DailyStats))
	}
	if pacific.HourlyPattern.Messages[16] != 1 {
		t.Error("-420 hourly bucket 16 empty")
	}

	// Totals are timezone-invariant.
	if utc.Overview.TotalTokens != tokyo.Overview.TotalTokens || utc.Overview.TotalTokens != pacific.Overview.TotalTokens {
		t.Error("overview totals changed with timezone offset")
	}
}

func keys(m map[string]*DailyStat) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestGenerate_HourlyPatternPadded(t *testing.T) {
	doc := testGenerator().Generate(nil, nil, 0)
	if len(doc.HourlyPattern.Messages) != 24 {
		t.Fatalf("hourly messages has %d buckets, want 24", len(doc.HourlyPattern.Messages))
	}
	for h := 0; h < 24; h++ {
		if doc.HourlyPattern.Messages[h] != 0 {
			t.Errorf("hour %d = %d, want 0", h, doc.HourlyPattern.Messages[h])
		}
	}
}

func TestGenerate_InterruptionHandling(t *testing.T) {
	first := userMsg("2025-06-01T10:00:00Z", "run the tests")
	first.InteractionAssistantSteps = 2
	first.InteractionToolCount = 3
	interruption := userMsg("2025-06-01T10:01:00Z", "[Request interrupted by user for tool use]")
	second := userMsg("2025-06-01T10:02:00Z", "try again")
	second.InteractionAssistantSteps = 1

	doc := testGenerator().Generate([]model.Message{second, interruption, first}, nil, 0)
	ui := doc.UserInteractions

	if ui.UserCommandsAnalyzed != 2 {
		t.Errorf("UserCommandsAnalyzed = %d, want 2 (interruption excluded)", ui.UserCommandsAnalyzed)
	}
	if ui.CommandsFollowedByInterruption != 1 {
		t.Errorf("CommandsFollowedByInterruption = %d, want 1", ui.CommandsFollowedByInterruption)
	}
	if len(ui.CommandDetails) != 3 {
		t.Fatalf("CommandDetails = %d entries, want 3", len(ui.CommandDetails))
	}
	// Details are chronological regardless of the newest-first input.
	if !ui.CommandDetails[0].FollowedByInterruption {
		t.Error("first command not flagged followed_by_interruption")
	}
	if !ui.CommandDetails[1].IsInterruption {
		t.Error("second detail not flagged as interruption")
	}
	if ui.InterruptionRate != 50.0 {
		t.Errorf("InterruptionRate = %.1f, want 50.0", ui.InterruptionRate)
	}
	if ui.CommandsRequiringTools != 1 || ui.AvgToolsWhenUsed != 3.0 {
		t.Errorf("tools metrics = %d / %.1f", ui.CommandsRequiringTools, ui.AvgToolsWhenUsed)
	}
}

func TestGenerate_SearchToolPercentage(t *testing.T) {
	withTools := assistantMsg("2025-06-01T10:00:05Z", model.TokenUsage{})
	withTools.Tools = []model.ToolCall{
		{Name: "Grep", Input: map[string]any{"pattern": "x"}},
		{Name: "Read", Input: map[string]any{"file_path": "/tmp/a.go"}},
		{Name: "Bash", Input: map[string]any{"command": "grep -r foo ."}},
		{Name: "Bash", Input: map[string]any{"command": "cat main.go | head -20"}},
		{Name: "Bash", Input: map[string]any{"command": "go test ./..."}},
		{Name: "Bash", Input: map[string]any{"command": "go build ./..."}},
		{Name: "Edit", Input: map[string]any{"file_path": "/tmp/a.go"}},
		{Name: "Write", Input: map[string]any{"file_path": "/tmp/b.go"}},
	}

	doc := testGenerator().Generate([]model.Message{withTools}, nil, 0)
	ui := doc.UserInteractions

	if ui.TotalToolsUsed != 8 {
		t.Errorf("TotalToolsUsed = %d, want 8", ui.TotalToolsUsed)
	}
	if ui.TotalSearchTools != 4 {
		t.Errorf("TotalSearchTools = %d, want 4 (Grep, Read, bash grep, bash cat)", ui.TotalSearchTools)
	}
	if ui.SearchToolPercentage != 50.0 {
		t.Errorf("SearchToolPercentage = %.1f, want 50.0", ui.SearchToolPercentage)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	messages := []model.Message{
		userMsg("2025-06-01T10:00:00Z", "[Tool Error: File has been modified since read]"),
		userMsg("2025-06-01T10:01:00Z", "Error: ENOENT: no such file or directory"),
		userMsg("2025-06-01T10:02:00Z", "everything is fine"),
		userMsg("2025-06-01T10:03:00Z", "Command timed out after 2m"),
	}

	doc := testGenerator().Generate(messages, nil, 0)
	if doc.Errors.Total != 3 {
		t.Fatalf("Errors.Total = %d, want 3 (by_category: %v)", doc.Errors.Total, doc.Errors.ByCategory)
	}
	if doc.Errors.Rate != 0.75 {
		t.Errorf("Errors.Rate = %.2f, want 0.75", doc.Errors.Rate)
	}
}

func TestGenerate_CacheHitRate(t *testing.T) {
	messages := []model.Message{
		assistantMsg("2025-06-01T10:00:00Z", model.TokenUsage{CacheCreation: 100, CacheRead: 900}),
	}
	doc := testGenerator().Generate(messages, nil, 0)
	if doc.Cache.HitRate != 90.0 {
		t.Errorf("HitRate = %.1f, want 90.0", doc.Cache.HitRate)
	}

	empty := testGenerator().Generate(nil, nil, 0)
	if empty.Cache.HitRate != 0 {
		t.Errorf("HitRate = %.1f for no cache traffic, want 0", empty.Cache.HitRate)
	}
}

func TestGenerate_DateRange(t *testing.T) {
	messages := []model.Message{
		assistantMsg("2025-06-03T10:00:00Z", model.TokenUsage{}),
		userMsg("2025-06-01T09:00:00Z", "start"),
		assistantMsg("", model.TokenUsage{}),
	}
	doc := testGenerator().Generate(messages, nil, 0)
	if doc.FirstMessageDate != "2025-06-01T09:00:00Z" {
		t.Errorf("FirstMessageDate = %q", doc.FirstMessageDate)
	}
	if doc.LastMessageDate != "2025-06-03T10:00:00Z" {
		t.Errorf("LastMessageDate = %q", doc.LastMessageDate)
	}
}

func TestIsInterruption(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"[Request interrupted by user for tool use]", true},
		{"[Request interrupted by user for tool use] and more", true},
		{"API Error: Request was aborted.", true},
		{"please continue", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsInterruption(tt.content); got != tt.want {
			t.Errorf("IsInterruption(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestClassifyError_FirstMatchWins(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"interruption", "[Request interrupted by user for tool use]", "User Interruption"},
		{"timeout", "Command timed out after 120 seconds", "Command Timeout"},
		{"file not read", "File has not been read yet", "File Not Read"},
		{"missing module", "ModuleNotFoundError: No module named requests", "Content Not Found"},
		{"runtime", "Traceback (most recent call last):", "Code Runtime Error"},
		{"port", "error while attempting to bind on address 127.0.0.1:8000", "Port Binding Error"},
		{"clean", "all tests passed", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.content); got != tt.want {
				t.Errorf("classifyError(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
