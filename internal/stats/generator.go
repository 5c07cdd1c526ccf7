package stats

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/pricing"
)

// Generator produces the analytics Document for one project.
type Generator struct {
	meta   model.ProjectMetadata
	table  pricing.Table
	search *searchClassifier
	now    func() time.Time
}

// NewGenerator creates a generator bound to a project and a rate table.
func NewGenerator(meta model.ProjectMetadata, table pricing.Table) *Generator {
	return &Generator{
		meta:   meta,
		table:  table,
		search: newSearchClassifier(),
		now:    time.Now,
	}
}

// Generate computes the full document from the final message list and
// the parse-phase accumulator. tzOffsetMinutes shifts each message's
// timestamp into local time before bucketing, so boundary messages land
// in the correct local day and hour.
func (g *Generator) Generate(messages []model.Message, acc *Accumulator, tzOffsetMinutes int) *Document {
	if acc == nil {
		acc = NewAccumulator()
	}
	doc := &Document{
		DailyStats:  make(map[string]*DailyStat),
		Models:      make(map[string]*ModelUsage),
		GeneratedAt: g.now().UTC().Format(time.RFC3339),
	}

	g.fillTimeSeries(doc, messages, tzOffsetMinutes)
	g.fillOverview(doc, messages, acc)
	g.fillTools(doc, acc)
	g.fillInteractions(doc, messages)
	g.fillErrors(doc, messages)
	g.fillCache(doc)
	g.fillDateRange(doc, messages)

	return doc
}

// fillTimeSeries computes daily and hourly buckets plus per-day cost.
// Undated messages are excluded here but still counted in the overview
// totals; the divergence is deliberate.
func (g *Generator) fillTimeSeries(doc *Document, messages []model.Message, tzOffsetMinutes int) {
	offset := time.Duration(tzOffsetMinutes) * time.Minute

	doc.HourlyPattern = HourlyPattern{
		Messages: make(map[int]int, 24),
		Tokens:   make(map[int]*model.TokenUsage, 24),
	}
	for h := 0; h < 24; h++ {
		doc.HourlyPattern.Messages[h] = 0
		doc.HourlyPattern.Tokens[h] = &model.TokenUsage{}
	}

	dailySessions := make(map[string]map[string]struct{})
	dailyModelTokens := make(map[string]map[string]*model.TokenUsage)

	for i := range messages {
		msg := &messages[i]
		ts, ok := parseTimestamp(msg.Timestamp)
		if !ok {
			continue
		}
		local := ts.UTC().Add(offset)
		date := local.Format("2006-01-02")
		hour := local.Hour()

		day := doc.DailyStats[date]
		if day == nil {
			day = &DailyStat{Cost: DailyCost{ByModel: make(map[string]*pricing.Breakdown)}}
			doc.DailyStats[date] = day
			dailySessions[date] = make(map[string]struct{})
			dailyModelTokens[date] = make(map[string]*model.TokenUsage)
		}
		day.Messages++
		day.Tokens.Add(msg.Tokens)
		if msg.SessionID != "" {
			dailySessions[date][msg.SessionID] = struct{}{}
		}

		doc.HourlyPattern.Messages[hour]++
		doc.HourlyPattern.Tokens[hour].Add(msg.Tokens)

		if msg.Model != "" && msg.Model != "N/A" {
			usage := dailyModelTokens[date][msg.Model]
			if usage == nil {
				usage = &model.TokenUsage{}
				dailyModelTokens[date][msg.Model] = usage
			}
			usage.Add(msg.Tokens)
		}
	}

	for date, day := range doc.DailyStats {
		day.Sessions = len(dailySessions[date])
		for modelName, usage := range dailyModelTokens[date] {
			breakdown := g.table.Calculate(*usage, modelName)
			day.Cost.ByModel[modelName] = &breakdown
			day.Cost.Total += breakdown.TotalCost
		}
	}
}

// fillOverview sums token totals and counts sessions across the final
// list, dated or not. Cost is computed from per-model all-time token
// totals, independent of the daily window.
func (g *Generator) fillOverview(doc *Document, messages []model.Message, acc *Accumulator) {
	sessions := make(map[string]struct{})
	modelTokens := make(map[string]*model.TokenUsage)

	for i := range messages {
		msg := &messages[i]
		doc.Overview.TotalTokens.Add(msg.Tokens)
		if msg.SessionID != "" {
			sessions[msg.SessionID] = struct{}{}
		}

		if msg.Model != "" && msg.Model != "N/A" {
			usage := modelTokens[msg.Model]
			if usage == nil {
				usage = &model.TokenUsage{}
				modelTokens[msg.Model] = usage
			}
			usage.Add(msg.Tokens)

			if msg.Type == model.TypeAssistant {
				mu := doc.Models[msg.Model]
				if mu == nil {
					mu = &ModelUsage{}
					doc.Models[msg.Model] = mu
				}
				mu.Count++
				mu.InputTokens += msg.Tokens.Input
				mu.OutputTokens += msg.Tokens.Output
			}
		}
	}

	for modelName, usage := range modelTokens {
		doc.Overview.TotalCost += g.table.Calculate(*usage, modelName).TotalCost
	}

	doc.Overview.ProjectName = g.meta.DisplayName
	doc.Overview.LogDirName = g.meta.DirName
	doc.Overview.TotalMessages = len(messages)
	doc.Overview.MessageTypes = acc.MessageCounts
	doc.Overview.Sessions = len(sessions)
}

func (g *Generator) fillTools(doc *Document, acc *Accumulator) {
	doc.Tools.UsageCounts = acc.ToolUsage
	doc.Tools.UniqueTools = len(acc.ToolUsage)
	doc.Tools.TotalCalls = lo.Sum(lo.Values(acc.ToolUsage))
}

// fillInteractions derives the command-level behavioral metrics from
// the interaction annotations the pipeline stamped onto user messages.
func (g *Generator) fillInteractions(doc *Document, messages []model.Message) {
	var details []CommandDetail
	for i := range messages {
		msg := &messages[i]
		if msg.Type != model.TypeUser || msg.IsToolResult() {
			continue
		}
		details = append(details, CommandDetail{
			UserMessage:    truncateContent(msg.Content, 200),
			Timestamp:      msg.Timestamp,
			SessionID:      msg.SessionID,
			AssistantSteps: msg.InteractionAssistantSteps,
			ToolCount:      msg.InteractionToolCount,
			Model:          msg.InteractionModel,
			IsInterruption: IsInterruption(msg.Content),
		})
	}

	// Final messages arrive newest-first; commands read chronologically.
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Timestamp < details[j].Timestamp
	})

	ui := &doc.UserInteractions

	var totalSteps, totalTools int
	for i := range details {
		d := &details[i]
		if d.IsInterruption {
			continue
		}
		ui.NonInterruptionCommands++
		totalSteps += d.AssistantSteps
		totalTools += d.ToolCount
		if d.ToolCount > 0 {
			ui.CommandsRequiringTools++
		}
		if i+1 < len(details) && details[i+1].IsInterruption {
			d.FollowedByInterruption = true
			ui.CommandsFollowedByInterruption++
		}
	}

	ui.UserCommandsAnalyzed = ui.NonInterruptionCommands
	ui.CommandDetails = details
	if details == nil {
		ui.CommandDetails = []CommandDetail{}
	}

	if n := ui.NonInterruptionCommands; n > 0 {
		ui.PercentageRequiringTools = round1(float64(ui.CommandsRequiringTools) / float64(n) * 100)
		ui.AvgStepsPerCommand = round2(float64(totalSteps) / float64(n))
		ui.AvgToolsPerCommand = round2(float64(totalTools) / float64(n))
		ui.InterruptionRate = round1(float64(ui.CommandsFollowedByInterruption) / float64(n) * 100)
	}
	if ui.CommandsRequiringTools > 0 {
		ui.AvgToolsWhenUsed = round2(float64(totalTools) / float64(ui.CommandsRequiringTools))
	}

	for i := range messages {
		for _, tool := range messages[i].Tools {
			ui.TotalToolsUsed++
			if g.search.isSearchTool(tool.Name, tool.Input) {
				ui.TotalSearchTools++
			}
		}
	}
	if ui.TotalToolsUsed > 0 {
		ui.SearchToolPercentage = round1(float64(ui.TotalSearchTools) / float64(ui.TotalToolsUsed) * 100)
	}
}

func (g *Generator) fillErrors(doc *Document, messages []model.Message) {
	doc.Errors.ByCategory = make(map[string]int)
	for i := range messages {
		if category := classifyError(messages[i].Content); category != "" {
			doc.Errors.Total++
			doc.Errors.ByCategory[category]++
		}
	}
	if len(messages) > 0 {
		doc.Errors.Rate = float64(doc.Errors.Total) / float64(len(messages))
	}
}

func (g *Generator) fillCache(doc *Document) {
	doc.Cache.TotalCreated = doc.Overview.TotalTokens.CacheCreation
	doc.Cache.TotalRead = doc.Overview.TotalTokens.CacheRead
	if denom := doc.Cache.TotalCreated + doc.Cache.TotalRead; denom > 0 {
		doc.Cache.HitRate = round1(float64(doc.Cache.TotalRead) / float64(denom) * 100)
	}
}

func (g *Generator) fillDateRange(doc *Document, messages []model.Message) {
	for i := range messages {
		ts := messages[i].Timestamp
		if ts == "" {
			continue
		}
		if doc.FirstMessageDate == "" || ts < doc.FirstMessageDate {
			doc.FirstMessageDate = ts
		}
		if doc.LastMessageDate == "" || ts > doc.LastMessageDate {
			doc.LastMessageDate = ts
		}
	}
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
func parseTimestamp(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncateContent(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
