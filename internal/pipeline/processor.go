// Package pipeline reconciles raw per-session log streams into a single
// deduplicated, time-ordered message list and generates the analytics
// document from it. The phase ordering is load-bearing: streaming merge
// before interaction grouping, grouping before cross-session merge,
// summaries reunited only after tool counts are settled.
package pipeline

import (
	"bufio"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/theirongolddev/agentlens/internal/model"
	"github.com/theirongolddev/agentlens/internal/pricing"
	"github.com/theirongolddev/agentlens/internal/source"
	"github.com/theirongolddev/agentlens/internal/stats"
)

// Options tune one pipeline run.
type Options struct {
	// Limit truncates the final message list when positive.
	Limit int
	// TimezoneOffset shifts statistics bucketing, in minutes.
	TimezoneOffset int
}

// Processor runs the reconciliation pipeline for one project.
type Processor struct {
	meta  model.ProjectMetadata
	table pricing.Table
}

// New creates a processor for the given project and rate table.
func New(meta model.ProjectMetadata, table pricing.Table) *Processor {
	return &Processor{meta: meta, table: table}
}

// sessionInfo tracks per-session facts needed by the repair phases.
type sessionInfo struct {
	index         int
	messageCount  int
	continuesFrom string
}

// Process runs every phase and returns the final message list plus the
// statistics document. Data-quality problems never fail the run; they
// degrade it to fewer messages.
func (p *Processor) Process(opts Options) ([]model.Message, *stats.Document, error) {
	files := source.ListSessionFiles(p.meta.LogPath)
	acc := stats.NewAccumulator()

	// Phase 1: continuation edges between session files.
	continuations := detectContinuations(p.meta.LogPath, files)

	// Phase 2: parse every file, in parallel, reassembled in file order.
	parsed := p.parseFiles(files)

	var all []*model.Message
	sessions := make(map[string]*sessionInfo, len(files))
	for i, fr := range parsed {
		sessionID := source.SessionID(files[i])
		sessions[sessionID] = &sessionInfo{
			index:         i,
			messageCount:  len(fr.messages),
			continuesFrom: continuations[sessionID],
		}
		for _, msg := range fr.messages {
			acc.Observe(msg)
		}
		all = append(all, fr.messages...)
		acc.ParseErrors += fr.parseErrors
	}
	acc.FilesSeen = len(files)

	// Phase 3: fold streamed assistant fragments into single messages.
	merged := mergeStreaming(all)

	// Phase 4: set summaries aside.
	var summaries, regular []*model.Message
	for _, msg := range merged {
		if msg.Type == model.TypeSummary || msg.Type == model.TypeCompactSummary {
			summaries = append(summaries, msg)
		} else {
			regular = append(regular, msg)
		}
	}

	// Phases 5-8: interactions.
	interactions := groupInteractions(regular)
	interactions = repairSplitInteractions(interactions, sessions)
	interactions = mergeDuplicateInteractions(interactions)
	for _, it := range interactions {
		it.finalToolCount = it.reconcileToolCount()
	}

	// Phases 9-11: flatten, reunite with summaries, dedup.
	flat := flattenInteractions(interactions)
	flat = append(flat, summaries...)
	flat = dedupMessages(flat)

	// Phase 12: newest first; undated messages sort to the end.
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Timestamp > flat[j].Timestamp
	})
	if opts.Limit > 0 && len(flat) > opts.Limit {
		flat = flat[:opts.Limit]
	}

	final := make([]model.Message, len(flat))
	for i, msg := range flat {
		final[i] = *msg
	}

	// Phase 13: recount types post-dedup, then generate statistics.
	acc.ResetMessageCounts()
	for i := range final {
		acc.MessageCounts[final[i].Type]++
	}
	doc := stats.NewGenerator(p.meta, p.table).Generate(final, acc, opts.TimezoneOffset)

	return final, doc, nil
}

type fileResult struct {
	messages    []*model.Message
	parseErrors int
}

// parseFiles parses session files with a bounded worker pool. Results
// land in index slots so file order survives the parallelism.
func (p *Processor) parseFiles(files []string) []fileResult {
	results := make([]fileResult, len(files))
	if len(files) == 0 {
		return results
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	for i := range files {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = p.parseFile(files[idx])
			}
		}()
	}
	wg.Wait()

	return results
}

func (p *Processor) parseFile(path string) fileResult {
	var fr fileResult

	f, err := os.Open(path)
	if err != nil {
		log.Printf("skipping unreadable session file %s: %v", path, err)
		return fr
	}
	defer func() { _ = f.Close() }()

	sessionID := source.SessionID(path)
	parser := source.NewEntryParser(p.meta.Provider)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), source.MaxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		msg, err := parser.ParseLine(scanner.Bytes(), sessionID)
		if err != nil {
			log.Printf("skipping malformed line %d in %s: %v", lineNum, path, err)
			fr.parseErrors++
			continue
		}
		if msg != nil {
			fr.messages = append(fr.messages, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading %s: %v", path, err)
		fr.parseErrors++
	}

	return fr
}

// mergeStreaming folds assistant messages sharing a message ID into one.
// Groups of one pass through untouched.
func mergeStreaming(messages []*model.Message) []*model.Message {
	groups := make(map[string][]*model.Message)
	for _, msg := range messages {
		if msg.Type == model.TypeAssistant && msg.MessageID != "" {
			groups[msg.MessageID] = append(groups[msg.MessageID], msg)
		}
	}

	out := make([]*model.Message, 0, len(messages))
	processed := make(map[string]bool)

	for _, msg := range messages {
		if msg.Type == model.TypeAssistant && msg.MessageID != "" && len(groups[msg.MessageID]) > 1 {
			if !processed[msg.MessageID] {
				out = append(out, mergeGroup(groups[msg.MessageID]))
				processed[msg.MessageID] = true
			}
			continue
		}
		out = append(out, msg)
	}
	return out
}

// mergeGroup combines streamed fragments of one assistant turn: tools
// deduplicated by id, distinct text fragments joined, tokens summed
// across the whole group, timestamps collapsed to a start/end pair.
func mergeGroup(group []*model.Message) *model.Message {
	merged := *group[0]

	var allTools []model.ToolCall
	var textParts []string
	seenToolIDs := make(map[string]bool)

	for _, msg := range group {
		for _, tool := range msg.Tools {
			if tool.ID != "" {
				if seenToolIDs[tool.ID] {
					continue
				}
				seenToolIDs[tool.ID] = true
				allTools = append(allTools, tool)
			} else if !containsToolNamed(allTools, tool.Name) {
				allTools = append(allTools, tool)
			}
		}
		// Tool-summary placeholders regenerate below; only real text
		// fragments accumulate.
		if msg.Content != "" && !strings.HasPrefix(msg.Content, "Used ") && !containsString(textParts, msg.Content) {
			textParts = append(textParts, msg.Content)
		}
	}

	merged.Tools = allTools
	switch {
	case len(textParts) > 0:
		merged.Content = strings.Join(textParts, "\n")
	case len(allTools) > 0:
		merged.Content = source.SummarizeTools(allTools)
	default:
		merged.Content = ""
	}

	var start, end string
	for _, msg := range group {
		if msg.Timestamp == "" {
			continue
		}
		if start == "" || msg.Timestamp < start {
			start = msg.Timestamp
		}
		if msg.Timestamp > end {
			end = msg.Timestamp
		}
	}
	if start != "" {
		merged.StartTimestamp = start
		merged.Timestamp = end
		merged.DurationMs = durationMs(start, end)
	}

	merged.Tokens = model.TokenUsage{}
	merged.StopReason = ""
	for _, msg := range group {
		merged.Tokens.Add(msg.Tokens)
		if merged.StopReason == "" && msg.StopReason != "" {
			merged.StopReason = msg.StopReason
		}
	}

	return &merged
}

func durationMs(start, end string) int64 {
	st, err1 := time.Parse(time.RFC3339, start)
	et, err2 := time.Parse(time.RFC3339, end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return et.Sub(st).Milliseconds()
}

// groupInteractions walks regular messages in file order. A real user
// message opens a turn; assistant messages and tool results attach to
// the open one. Leading response messages with no visible trigger open a
// headless turn for the repair phase to reattach.
func groupInteractions(messages []*model.Message) []*interaction {
	var interactions []*interaction
	var current *interaction

	for _, msg := range messages {
		isToolResult := msg.Type == model.TypeUser && isToolResultMessage(msg)

		switch {
		case msg.Type == model.TypeUser && !isToolResult:
			if current != nil {
				interactions = append(interactions, current)
			}
			current = newInteraction(msg)

		case msg.Type == model.TypeAssistant:
			if current == nil {
				current = newHeadlessInteraction(msg)
			}
			current.addAssistant(msg)

		case isToolResult:
			if current == nil {
				current = newHeadlessInteraction(msg)
			}
			current.addToolResult(msg)
		}
	}
	if current != nil {
		interactions = append(interactions, current)
	}
	return interactions
}

func isToolResultMessage(msg *model.Message) bool {
	return msg.IsToolResult() ||
		strings.HasPrefix(msg.Content, "[Tool Result:") ||
		strings.HasPrefix(msg.Content, "[Tool Error:")
}

// repairSplitInteractions reattaches turns a provider split across a
// session-file boundary: when a session's last turn got no assistant
// reply and the next session opens with a headless turn, the headless
// messages fold into the trailing turn and the orphan is dropped.
func repairSplitInteractions(interactions []*interaction, sessions map[string]*sessionInfo) []*interaction {
	bySession := make(map[string][]*interaction)
	for _, it := range interactions {
		bySession[it.sessionID] = append(bySession[it.sessionID], it)
	}

	sessionByIndex := make(map[int]string, len(sessions))
	for id, info := range sessions {
		sessionByIndex[info.index] = id
	}

	removed := make(map[*interaction]bool)

	for sessionID, sessionInteractions := range bySession {
		if len(sessionInteractions) == 0 {
			continue
		}
		last := sessionInteractions[len(sessionInteractions)-1]
		if len(last.assistantMsgs) > 0 || last.userMessage == nil {
			continue
		}

		info := sessions[sessionID]
		if info == nil {
			continue
		}
		nextID, ok := sessionByIndex[info.index+1]
		if !ok {
			continue
		}
		nextInteractions := bySession[nextID]
		if len(nextInteractions) == 0 {
			continue
		}

		first := nextInteractions[0]
		if first.userMessage != nil || len(first.assistantMsgs) == 0 || removed[first] {
			continue
		}

		for _, msg := range first.assistantMsgs {
			last.addAssistant(msg)
		}
		for _, msg := range first.toolResults {
			last.addToolResult(msg)
		}
		removed[first] = true
	}

	if len(removed) == 0 {
		return interactions
	}
	kept := interactions[:0]
	for _, it := range interactions {
		if !removed[it] {
			kept = append(kept, it)
		}
	}
	return kept
}

// mergeDuplicateInteractions collapses copies of the same turn that
// conversation continuation duplicated into later sessions, keeping the
// most complete copy and folding in what the others know.
func mergeDuplicateInteractions(interactions []*interaction) []*interaction {
	groups := make(map[string][]*interaction)
	var order []string
	for _, it := range interactions {
		if _, seen := groups[it.id]; !seen {
			order = append(order, it.id)
		}
		groups[it.id] = append(groups[it.id], it)
	}

	merged := make([]*interaction, 0, len(order))
	for _, id := range order {
		dups := groups[id]
		if len(dups) == 1 {
			merged = append(merged, dups[0])
			continue
		}

		sort.SliceStable(dups, func(i, j int) bool {
			return dups[i].completenessScore() > dups[j].completenessScore()
		})

		best := dups[0]
		for _, other := range dups[1:] {
			best.mergeToolsFrom(other)
			if best.model == "N/A" && other.model != "N/A" {
				best.model = other.model
			}
			if !best.hasCompleteResponse() && other.hasCompleteResponse() {
				best.assistantMsgs = other.assistantMsgs
			}
		}
		merged = append(merged, best)
	}
	return merged
}

// flattenInteractions converts turns back into a flat message list. The
// user message carries the settled tool count, model, and step count for
// command-level analytics.
func flattenInteractions(interactions []*interaction) []*model.Message {
	var out []*model.Message
	for _, it := range interactions {
		if it.userMessage != nil {
			user := *it.userMessage
			user.InteractionToolCount = it.finalToolCount
			user.InteractionModel = it.model
			user.InteractionAssistantSteps = len(it.assistantMsgs)
			out = append(out, &user)
		}
		out = append(out, it.assistantMsgs...)
		out = append(out, it.toolResults...)
	}
	return out
}

// dedupMessages removes cross-session duplicates. Session ID is left out
// of the key on purpose: continued conversations copy messages verbatim
// into new session files. Summaries use a shorter content prefix and no
// UUID since they reappear with fresh UUIDs.
func dedupMessages(messages []*model.Message) []*model.Message {
	seen := make(map[string]bool, len(messages))
	deduped := make([]*model.Message, 0, len(messages))

	for _, msg := range messages {
		var key string
		if msg.Type == model.TypeSummary || msg.Type == model.TypeCompactSummary {
			key = string(msg.Type) + ":" + msg.Timestamp + ":" + prefix(msg.Content, 200)
		} else {
			key = string(msg.Type) + ":" + msg.Timestamp + ":" + prefix(msg.Content, 500) + ":" + msg.UUID
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, msg)
	}
	return deduped
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsToolNamed(tools []model.ToolCall, name string) bool {
	for _, t := range tools {
		if t.ID == "" && t.Name == name {
			return true
		}
	}
	return false
}
