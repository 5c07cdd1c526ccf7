package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/theirongolddev/agentlens/internal/model"
)

// interaction is one complete user turn: the triggering user message
// plus the assistant messages and tool results that follow before the
// next real user message. A turn split across session files may start
// without a user message (headless) until the repair phase folds it into
// its predecessor.
type interaction struct {
	userMessage   *model.Message
	assistantMsgs []*model.Message
	toolResults   []*model.Message

	sessionID string
	startTime string
	endTime   string
	id        string

	model          string
	toolsUsed      []model.ToolCall
	finalToolCount int
	hasTaskTool    bool
}

// newInteraction opens a turn for a real user message.
func newInteraction(user *model.Message) *interaction {
	it := &interaction{
		userMessage: user,
		sessionID:   user.SessionID,
		startTime:   user.Timestamp,
		endTime:     user.Timestamp,
		model:       "N/A",
	}
	it.id = interactionID(user.Timestamp, user.Content)
	return it
}

// newHeadlessInteraction opens a turn for leading assistant or
// tool-result messages with no visible trigger.
func newHeadlessInteraction(first *model.Message) *interaction {
	it := &interaction{
		sessionID: first.SessionID,
		startTime: first.Timestamp,
		endTime:   first.Timestamp,
		model:     "N/A",
	}
	it.id = interactionID(first.Timestamp, first.Content)
	return it
}

// interactionID is stable across duplicate copies of the same turn in
// continued sessions: same trigger timestamp, same trigger content.
func interactionID(timestamp, content string) string {
	sum := md5.Sum([]byte(content))
	return timestamp + ":" + hex.EncodeToString(sum[:])[:8]
}

func (it *interaction) addAssistant(msg *model.Message) {
	it.assistantMsgs = append(it.assistantMsgs, msg)
	if msg.Timestamp != "" {
		it.endTime = msg.Timestamp
	}
	if it.model == "N/A" && msg.Model != "" && msg.Model != "N/A" {
		it.model = msg.Model
	}
	for _, tool := range msg.Tools {
		it.toolsUsed = append(it.toolsUsed, tool)
		if tool.Name == "Task" {
			it.hasTaskTool = true
		}
	}
}

func (it *interaction) addToolResult(msg *model.Message) {
	it.toolResults = append(it.toolResults, msg)
	if msg.Timestamp != "" {
		it.endTime = msg.Timestamp
	}
}

// completenessScore ranks duplicate copies of the same turn. Only the
// relative order matters: assistant presence dominates, then model info,
// then tool and tool-result counts, then output tokens, capped so a
// verbose response cannot outrank a structurally richer copy.
func (it *interaction) completenessScore() int {
	score := 0
	if len(it.assistantMsgs) > 0 {
		score += 100
	}
	if it.model != "N/A" {
		score += 50
	}
	score += len(it.toolsUsed) * 10
	score += len(it.toolResults) * 5

	var output int64
	for _, msg := range it.assistantMsgs {
		output += msg.Tokens.Output
	}
	if output > 1000 {
		output = 1000
	}
	return score + int(output)
}

// hasCompleteResponse reports whether any assistant message carries a
// terminal stop reason.
func (it *interaction) hasCompleteResponse() bool {
	for _, msg := range it.assistantMsgs {
		switch msg.StopReason {
		case "end_turn", "stop_sequence", "tool_use":
			return true
		}
	}
	return false
}

// mergeToolsFrom folds the other copy's tools in, deduplicating by id.
func (it *interaction) mergeToolsFrom(other *interaction) {
	seen := make(map[string]bool, len(it.toolsUsed))
	for _, tool := range it.toolsUsed {
		if tool.ID != "" {
			seen[tool.ID] = true
		}
	}
	for _, tool := range other.toolsUsed {
		if tool.ID == "" || seen[tool.ID] {
			continue
		}
		it.toolsUsed = append(it.toolsUsed, tool)
		seen[tool.ID] = true
		if tool.Name == "Task" {
			it.hasTaskTool = true
		}
	}
}

// reconcileToolCount settles the turn's definitive tool count from the
// recorded uses, the observed results, and as a last resort the
// assistant text.
func (it *interaction) reconcileToolCount() int {
	count := 0
	seen := make(map[string]bool)
	for _, tool := range it.toolsUsed {
		if tool.ID != "" && !seen[tool.ID] {
			seen[tool.ID] = true
			count++
		}
	}

	resultCount := 0
	for _, msg := range it.toolResults {
		resultCount += msg.ToolResultBlocks
	}

	// Task sub-agents count as one call; their internal operations are
	// not separately logged.
	if it.hasTaskTool && count < 1 {
		count = 1
	}

	// More results than recorded uses means streaming dropped tool_use
	// blocks; trust the results.
	if resultCount > count && !it.hasTaskTool {
		count = resultCount
	}

	if count == 0 {
		count = it.inferToolCountFromContent()
	}
	return count
}

// toolPhrasePatterns spot tool activity described in assistant prose.
var toolPhrasePatterns = map[string]*regexp.Regexp{
	"Read":  regexp.MustCompile(`(?i)(?:Read|Reading|Examined|Looking at) (?:file|the file|contents of) .+`),
	"Edit":  regexp.MustCompile(`(?i)(?:Edit|Edited|Modified|Updated|Changed) .+`),
	"Write": regexp.MustCompile(`(?i)(?:Write|Wrote|Created|Creating) .+`),
	"Bash":  regexp.MustCompile(`(?i)(?:Ran|Executed|Running|Executing) (?:command|bash|script)`),
	"Grep":  regexp.MustCompile(`(?i)(?:Searched|Grepped|Found|Searching) .+ (?:in|across)`),
	"Task":  regexp.MustCompile(`(?i)(?:Created task|Task completed|Working on task|Launching)`),
}

// inferToolCountFromContent matches assistant text against the phrase
// table. The inferred count only stands when an explicit execution
// marker confirms at least one tool actually ran.
func (it *interaction) inferToolCountFromContent() int {
	found := make(map[string]bool)
	marker := false
	for _, msg := range it.assistantMsgs {
		for name, re := range toolPhrasePatterns {
			if re.MatchString(msg.Content) {
				found[name] = true
			}
		}
		if strings.Contains(msg.Content, "[Tool Execution Result]") || strings.Contains(msg.Content, "Used ") {
			marker = true
		}
	}
	if marker {
		if len(found) < 1 {
			return 1
		}
		return len(found)
	}
	return len(found)
}
