package source

import (
	"encoding/json"
	"fmt"

	"github.com/theirongolddev/agentlens/internal/model"
)

// codexEnvelope is one raw line of a Codex CLI rollout file.
type codexEnvelope struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// codexPayload is the union of payload shapes across envelope types.
type codexPayload struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Cwd       string          `json:"cwd"`
	Model     string          `json:"model"`
	Role      string          `json:"role"`
	Content   []codexBlock    `json:"content"`
	Summary   []codexBlock    `json:"summary"`
	Text      string          `json:"text"`
	Name      string          `json:"name"`
	Arguments string          `json:"arguments"`
	CallID    string          `json:"call_id"`
	Output    string          `json:"output"`
	Info      *codexTokenInfo `json:"info"`
}

type codexBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type codexTokenInfo struct {
	LastTokenUsage *codexUsage `json:"last_token_usage"`
}

type codexUsage struct {
	InputTokens       int64 `json:"input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
}

// codexParser parses the Codex CLI rollout dialect. Rollouts interleave
// reasoning, function calls, token counts, and the final text of one
// assistant turn as separate records, so the parser stamps every
// assistant fragment of a turn with the same synthetic message ID and
// lets the streaming merge fold them into a single message.
type codexParser struct {
	sessionID string
	cwd       string
	model     string
	turn      int
}

func newCodexParser() *codexParser {
	return &codexParser{model: "N/A"}
}

func (p *codexParser) ParseLine(line []byte, sessionID string) (*model.Message, error) {
	line = trimLine(line)
	if len(line) == 0 {
		return nil, nil
	}

	var env codexEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("codex envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, nil
	}

	var payload codexPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("codex payload: %w", err)
	}

	if p.sessionID == "" {
		p.sessionID = sessionID
	}

	switch env.Type {
	case "session_meta":
		if payload.ID != "" {
			p.sessionID = payload.ID
		}
		if payload.Cwd != "" {
			p.cwd = payload.Cwd
		}
		return nil, nil

	case "turn_context":
		if payload.Model != "" {
			p.model = payload.Model
		}
		if payload.Cwd != "" {
			p.cwd = payload.Cwd
		}
		return nil, nil

	case "response_item":
		return p.parseResponseItem(env.Timestamp, &payload)

	case "event_msg":
		return p.parseEvent(env.Timestamp, &payload)
	}

	return nil, nil
}

func (p *codexParser) parseResponseItem(timestamp string, payload *codexPayload) (*model.Message, error) {
	switch payload.Type {
	case "message":
		text := joinBlocks(payload.Content)
		if payload.Role == "user" {
			p.turn++
			return p.newMessage(model.TypeUser, timestamp, text), nil
		}
		return p.assistantFragment(timestamp, text), nil

	case "reasoning":
		return p.assistantFragment(timestamp, joinBlocks(payload.Summary)), nil

	case "function_call":
		msg := p.assistantFragment(timestamp, "")
		msg.Tools = append(msg.Tools, model.ToolCall{
			Name:  payload.Name,
			ID:    payload.CallID,
			Input: parseArguments(payload.Arguments),
		})
		msg.Content = SummarizeTools(msg.Tools)
		return msg, nil

	case "function_call_output":
		msg := p.newMessage(model.TypeUser, timestamp, "")
		msg.HasToolResult = true
		msg.ToolResultBlocks = 1
		output := functionCallOutput(payload.Output)
		if output != "" {
			msg.Content = "[Tool Result: " + truncate(output, 200) + "]"
		} else {
			msg.Content = "[Tool Result: Empty/Success]"
		}
		return msg, nil
	}

	return nil, nil
}

func (p *codexParser) parseEvent(timestamp string, payload *codexPayload) (*model.Message, error) {
	switch payload.Type {
	case "token_count":
		if payload.Info == nil || payload.Info.LastTokenUsage == nil {
			return nil, nil
		}
		usage := payload.Info.LastTokenUsage
		msg := p.assistantFragment(timestamp, "")
		msg.Tokens = model.TokenUsage{
			Input:     usage.InputTokens,
			Output:    usage.OutputTokens,
			CacheRead: usage.CachedInputTokens,
		}
		return msg, nil

	case "agent_reasoning":
		if payload.Text == "" {
			return nil, nil
		}
		return p.assistantFragment(timestamp, payload.Text), nil
	}

	return nil, nil
}

func (p *codexParser) newMessage(msgType model.Type, timestamp, content string) *model.Message {
	return &model.Message{
		SessionID: p.sessionID,
		Type:      msgType,
		Timestamp: timestamp,
		Model:     "N/A",
		Content:   content,
		Tools:     []model.ToolCall{},
		Cwd:       p.cwd,
	}
}

// assistantFragment builds one piece of the current turn's assistant
// response. All fragments share the turn's synthetic message ID.
func (p *codexParser) assistantFragment(timestamp, content string) *model.Message {
	msg := p.newMessage(model.TypeAssistant, timestamp, content)
	msg.Model = p.model
	msg.MessageID = fmt.Sprintf("%s-turn-%d", p.sessionID, p.turn)
	msg.StopReason = "end_turn"
	return msg
}

// joinBlocks concatenates the text of content blocks.
func joinBlocks(blocks []codexBlock) string {
	var out string
	for _, b := range blocks {
		if b.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// parseArguments decodes a function call's JSON-encoded argument string.
func parseArguments(arguments string) map[string]any {
	input := map[string]any{}
	if arguments != "" {
		_ = json.Unmarshal([]byte(arguments), &input)
	}
	return input
}

// functionCallOutput unwraps a function_call_output payload. The output
// field is usually a JSON object with an "output" key, but plain strings
// appear in older rollouts.
func functionCallOutput(output string) string {
	if output == "" {
		return ""
	}
	var wrapped struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(output), &wrapped); err == nil && wrapped.Output != "" {
		return wrapped.Output
	}
	return output
}
