package source

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/agentlens/internal/model"
)

// MaxLineSize bounds a single JSONL line. Tool results with large file
// contents can exceed bufio's default 64KB.
const MaxLineSize = 10 * 1024 * 1024

// EntryParser turns one raw log line into zero or one normalized message.
// A nil message with nil error means the line carried no message content
// (metadata records, unknown event types, blank lines).
//
// Parsers are stateful and scoped to a single file: the Claude parser
// tracks the last model seen so summaries can inherit it, and the Codex
// parser tracks the current turn so streaming fragments share an ID.
type EntryParser interface {
	ParseLine(line []byte, sessionID string) (*model.Message, error)
}

// NewEntryParser returns a fresh per-file parser for the given provider.
func NewEntryParser(provider string) EntryParser {
	if provider == model.ProviderCodex {
		return newCodexParser()
	}
	return newClaudeParser()
}

// SummarizeTools builds a readable one-line summary of tool invocations,
// used as message content when an assistant turn produced no text.
func SummarizeTools(tools []model.ToolCall) string {
	summaries := make([]string, 0, len(tools))

	for _, tool := range tools {
		switch tool.Name {
		case "MultiEdit":
			edits, _ := tool.Input["edits"].([]any)
			summaries = append(summaries, fmt.Sprintf("Used %s to make %d edits", tool.Name, len(edits)))

		case "Read", "Write", "Edit":
			filePath, _ := tool.Input["file_path"].(string)
			if filePath == "" {
				filePath = "unknown"
			}
			if len(filePath) > 50 {
				filePath = "..." + filePath[len(filePath)-47:]
			}
			summaries = append(summaries, fmt.Sprintf("Used %s on %s", tool.Name, filePath))

		case "Bash":
			command, _ := tool.Input["command"].(string)
			if len(command) > 50 {
				command = command[:50] + "..."
			}
			summaries = append(summaries, fmt.Sprintf("Used %s: %s", tool.Name, command))

		case "Task":
			desc, _ := tool.Input["description"].(string)
			if desc == "" {
				desc = "task"
			}
			if len(desc) > 30 {
				desc = desc[:30]
			}
			summaries = append(summaries, fmt.Sprintf("Used %s: %s", tool.Name, desc))

		default:
			summaries = append(summaries, "Used "+tool.Name)
		}
	}

	return strings.Join(summaries, " | ")
}

// truncate shortens s to max bytes with an ellipsis marker.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
