package composer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/designdays/internal/intent"
	"github.com/kalambet/designdays/internal/proxy"
)

// ToolName is the card-display function the model is asked to call.
const ToolName = "displayProjectCard"

type toolSpec struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinition returns the OpenAI function-tool list declaring
// displayProjectCard.
func ToolDefinition() json.RawMessage {
	str := map[string]any{"type": "string"}
	tools := []toolSpec{{
		Type: "function",
		Function: toolFunction{
			Name:        ToolName,
			Description: "Display a project card for one day of the challenge.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"day":     map[string]any{"type": "integer", "description": "Day number"},
					"title":   str,
					"image":   map[string]any{"type": "string", "description": "Image URL or path"},
					"color":   map[string]any{"type": "string", "description": "Hex color"},
					"project": str,
				},
				"required": []string{"day", "title", "image", "color", "project"},
			},
		},
	}}
	b, _ := json.Marshal(tools)
	return b
}

// ToolChoice is sent with the card tool. A forced choice ends the completion
// at the tool calls, and /api/chat streams a single completion, so the model
// must stay free to write its text in the same turn.
const ToolChoice = "auto"

// Request builds the upstream chat request. Client system messages are
// dropped and the composed system prompt goes first. Show-more markers are
// rewritten into plain requests. The card tool is declared only when the
// prompt asks for calls.
func (c *Composer) Request(model string, history json.RawMessage, p Prompt) (proxy.ChatRequest, error) {
	msgs, err := parseMessages(history)
	if err != nil {
		return proxy.ChatRequest{}, fmt.Errorf("parsing messages: %w", err)
	}

	out := make([]rawMsg, 0, len(msgs)+1)
	out = append(out, makeMessage("system", p.System))
	for _, m := range msgs {
		if getRole(m) == "system" {
			continue
		}
		out = append(out, rewriteShowMore(m))
	}

	marshalled, err := json.Marshal(out)
	if err != nil {
		return proxy.ChatRequest{}, fmt.Errorf("marshalling messages: %w", err)
	}

	req := proxy.ChatRequest{
		Model:    model,
		Messages: marshalled,
		Stream:   true,
		Extra:    map[string]json.RawMessage{},
	}
	if p.ToolCalls > 0 {
		req.Extra["tools"] = ToolDefinition()
		req.Extra["tool_choice"], _ = json.Marshal(ToolChoice)
	}
	return req, nil
}

// rewriteShowMore replaces a show-more marker in a user message with a
// readable request. Other fields on the message are kept.
func rewriteShowMore(m rawMsg) rawMsg {
	if getRole(m) != "user" {
		return m
	}
	content := getContent(m)
	if !intent.IsShowMore(content) {
		return m
	}
	q := intent.Classify(content)
	text := strings.TrimPrefix(content, intent.ShowMoreMarker)
	if q.Type == intent.TypeShowMore {
		text = "Show more projects for: " + q.OriginalQuery
	}

	cp := make(rawMsg, len(m))
	for k, v := range m {
		cp[k] = v
	}
	setContent(cp, text)
	return cp
}

// rawMsg preserves all JSON fields on a message while allowing role/content access.
type rawMsg map[string]json.RawMessage

func parseMessages(data json.RawMessage) ([]rawMsg, error) {
	var msgs []rawMsg
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func getRole(m rawMsg) string {
	v, ok := m["role"]
	if !ok {
		return ""
	}
	var role string
	if err := json.Unmarshal(v, &role); err != nil {
		// A non-string role matches no branch and the message passes through.
		return ""
	}
	return role
}

func getContent(m rawMsg) string {
	v, ok := m["content"]
	if !ok {
		return ""
	}
	var content string
	if err := json.Unmarshal(v, &content); err != nil {
		// Multi-part content arrays are never show-more markers.
		return ""
	}
	return content
}

func setContent(m rawMsg, s string) {
	b, _ := json.Marshal(s)
	m["content"] = b
}

func makeMessage(role, content string) rawMsg {
	m := make(rawMsg)
	m["role"], _ = json.Marshal(role)
	m["content"], _ = json.Marshal(content)
	return m
}
