package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theirongolddev/agentlens/internal/model"
)

// claudeEntry is one raw line of a Claude Code session log.
type claudeEntry struct {
	Type             string          `json:"type"`
	Timestamp        string          `json:"timestamp"`
	UUID             string          `json:"uuid"`
	ParentUUID       string          `json:"parentUuid"`
	LeafUUID         string          `json:"leafUuid"`
	Cwd              string          `json:"cwd"`
	IsSidechain      bool            `json:"isSidechain"`
	IsCompactSummary bool            `json:"isCompactSummary"`
	Summary          string          `json:"summary"`
	Message          json.RawMessage `json:"message"`
	ToolUseResult    json.RawMessage `json:"toolUseResult"`
}

// claudeMessage is the nested API message object.
type claudeMessage struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Content    json.RawMessage `json:"content"`
	Usage      *claudeUsage    `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// claudeBlock is one element of a structured content array.
type claudeBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	ID      string          `json:"id"`
	Input   map[string]any  `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

// claudeParser parses the Claude Code dialect. It remembers the last
// assistant model and the previous message's timestamp within the file so
// summary entries, which carry neither, can inherit them.
type claudeParser struct {
	lastModel     string
	lastTimestamp string
}

func newClaudeParser() *claudeParser {
	return &claudeParser{lastModel: "N/A"}
}

func (p *claudeParser) ParseLine(line []byte, sessionID string) (*model.Message, error) {
	line = trimLine(line)
	if len(line) == 0 {
		return nil, nil
	}

	var entry claudeEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, fmt.Errorf("claude entry: %w", err)
	}

	if entry.Type == "summary" {
		msg := &model.Message{
			SessionID: sessionID,
			Type:      model.TypeSummary,
			Timestamp: p.lastTimestamp,
			Model:     p.lastModel,
			Content:   entry.Summary,
			Tools:     []model.ToolCall{},
			UUID:      entry.UUID,
			LeafUUID:  entry.LeafUUID,
		}
		if entry.Timestamp != "" {
			msg.Timestamp = entry.Timestamp
		}
		return msg, nil
	}

	if len(entry.Message) == 0 || string(entry.Message) == "null" || entry.Type == "" {
		return nil, nil
	}

	msg, err := p.extractMessage(&entry, sessionID)
	if err != nil || msg == nil {
		return msg, err
	}

	if entry.IsCompactSummary {
		msg.Type = model.TypeCompactSummary
		if p.lastModel != "N/A" {
			msg.Model = p.lastModel
		}
	} else if msg.Type == model.TypeAssistant && msg.Model != "" && msg.Model != "N/A" {
		p.lastModel = msg.Model
	}

	if msg.Timestamp != "" {
		p.lastTimestamp = msg.Timestamp
	}
	return msg, nil
}

func (p *claudeParser) extractMessage(entry *claudeEntry, sessionID string) (*model.Message, error) {
	var inner claudeMessage
	if err := json.Unmarshal(entry.Message, &inner); err != nil {
		return nil, fmt.Errorf("claude message: %w", err)
	}

	msgType := model.Type(entry.Type)
	if entry.IsSidechain && msgType == model.TypeUser {
		msgType = model.TypeTask
	}

	msg := &model.Message{
		SessionID:   sessionID,
		Type:        msgType,
		Timestamp:   entry.Timestamp,
		Model:       inner.Model,
		Tools:       []model.ToolCall{},
		Cwd:         entry.Cwd,
		UUID:        entry.UUID,
		ParentUUID:  entry.ParentUUID,
		IsSidechain: entry.IsSidechain,
		MessageID:   inner.ID,
		StopReason:  inner.StopReason,
	}
	if msg.Model == "" {
		msg.Model = "N/A"
	}
	if inner.Usage != nil {
		msg.Tokens = model.TokenUsage{
			Input:         inner.Usage.InputTokens,
			Output:        inner.Usage.OutputTokens,
			CacheCreation: inner.Usage.CacheCreationInputTokens,
			CacheRead:     inner.Usage.CacheReadInputTokens,
		}
	}

	p.extractContent(inner.Content, msg)

	if len(entry.ToolUseResult) > 0 && string(entry.ToolUseResult) != "null" {
		msg.HasToolResult = true
		p.processToolResult(entry.ToolUseResult, msg)
	}

	return msg, nil
}

// extractContent flattens a content value (plain string or block array)
// into message text, collecting tool_use blocks and recording tool_result
// blocks along the way.
func (p *claudeParser) extractContent(raw json.RawMessage, msg *model.Message) {
	var parts []string

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		parts = append(parts, asString)
	} else {
		var blocks []json.RawMessage
		if err := json.Unmarshal(raw, &blocks); err == nil {
			for _, rawBlock := range blocks {
				var blockString string
				if err := json.Unmarshal(rawBlock, &blockString); err == nil {
					parts = append(parts, blockString)
					continue
				}

				var block claudeBlock
				if err := json.Unmarshal(rawBlock, &block); err != nil {
					continue
				}
				switch block.Type {
				case "text":
					parts = append(parts, block.Text)

				case "tool_use":
					name := block.Name
					if name == "" {
						name = "unknown"
					}
					input := block.Input
					if input == nil {
						input = map[string]any{}
					}
					msg.Tools = append(msg.Tools, model.ToolCall{Name: name, ID: block.ID, Input: input})

				case "tool_result":
					msg.ToolResultBlocks++
					if block.IsError {
						msg.Error = true
					}
					result := blockResultText(block.Content)
					if result != "" {
						prefix := "[Tool Result: "
						if block.IsError {
							prefix = "[Tool Error: "
						}
						parts = append(parts, prefix+truncate(result, 200)+"]")
					} else {
						parts = append(parts, "[Tool Result: Empty/Success]")
					}
				}
			}
		}
	}

	msg.Content = strings.Join(parts, "\n")
	if msg.Content == "" && len(msg.Tools) > 0 {
		msg.Content = SummarizeTools(msg.Tools)
	}
}

// blockResultText renders a tool_result content value, which may be a
// plain string or a nested array of text blocks.
func blockResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []claudeBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// processToolResult folds the top-level toolUseResult field into the
// message content as a detail line.
func (p *claudeParser) processToolResult(raw json.RawMessage, msg *model.Message) {
	var parts []string

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		parts = append(parts, truncate(asString, 200))
	} else {
		var detail struct {
			FilePath    string          `json:"filePath"`
			Stdout      string          `json:"stdout"`
			Error       json.RawMessage `json:"error"`
			Interrupted bool            `json:"interrupted"`
		}
		if err := json.Unmarshal(raw, &detail); err != nil {
			return
		}
		if detail.FilePath != "" {
			parts = append(parts, "File: "+detail.FilePath)
		}
		if detail.Stdout != "" {
			parts = append(parts, "Output: "+truncate(detail.Stdout, 100))
		}
		if len(detail.Error) > 0 && string(detail.Error) != "null" {
			msg.Error = true
			parts = append(parts, "Error: "+rawToString(detail.Error))
		}
		if detail.Interrupted {
			parts = append(parts, "Interrupted by user")
		}
	}

	if len(parts) == 0 {
		return
	}
	detailText := strings.Join(parts, " | ")
	if msg.Content != "" {
		msg.Content += "\n[Details] " + detailText
	} else {
		msg.Content = "[Tool Execution Result] " + detailText
	}
}

// rawToString renders a raw JSON value as text, unquoting strings.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func trimLine(line []byte) []byte {
	return bytes.TrimSpace(line)
}

// TextContent extracts the plain text of a raw Claude entry without full
// normalization. Continuation detection uses it to spot "continue"
// commands in the first lines of a file.
func TextContent(line []byte) string {
	var entry struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(line, &entry); err != nil {
		return ""
	}
	raw := entry.Message.Content
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []claudeBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}
