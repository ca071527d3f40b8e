package generation

import (
	"context"
	"fmt"
	"strings"

	"courserag/internal/domain"
	"courserag/internal/tools"
)

// Block types and stop reasons of the messages-style completion API.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"

	StopToolUse = "tool_use"
)

// ContentBlock is one element of a message: model text, a tool-use request,
// or a tool result correlated by ToolUseID.
type ContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

// MessageParam is one conversation message sent to the completion API.
type MessageParam struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a single-text-block message.
func TextMessage(role, text string) MessageParam {
	return MessageParam{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolChoice selects how the model may use tools; only "auto" is issued.
type ToolChoice struct {
	Type string `json:"type"`
}

// Request is one completion call.
type Request struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []MessageParam     `json:"messages"`
	Tools       []tools.Definition `json:"tools,omitempty"`
	ToolChoice  *ToolChoice        `json:"tool_choice,omitempty"`
}

// Completion is the model's response: a stop reason plus ordered blocks.
type Completion struct {
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
}

// CompletionClient is the language-model boundary.
type CompletionClient interface {
	CreateCompletion(ctx context.Context, req Request) (*Completion, error)
}

// ToolExecutor dispatches a tool call requested by the model.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, []domain.Source, error)
}

const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to tools for searching course content and retrieving course outlines.

Tool usage:
- search_course_content: for questions about specific course content or detailed educational materials
- get_course_outline: for questions about a course's structure, its lessons, or links
- One tool round per query maximum

Response rules:
- Answer general knowledge questions directly without using tools
- Keep answers brief, concise and focused; no meta-commentary about your search process
- If a search returns nothing relevant, say so clearly instead of guessing`

// Generator builds prompts and runs the bounded tool-execution loop:
// at most one round of tool calls, then one follow-up completion with no
// tools attached, so a second tool request is never served.
type Generator struct {
	client      CompletionClient
	model       string
	maxTokens   int
	temperature float64
}

// NewGenerator creates a generator. Temperature 0 keeps answers deterministic
// and retrieval-grounded, so that is the recommended setting.
func NewGenerator(client CompletionClient, model string, maxTokens int, temperature float64) *Generator {
	if maxTokens <= 0 {
		maxTokens = 800
	}
	if temperature < 0 {
		temperature = 0
	}
	return &Generator{client: client, model: model, maxTokens: maxTokens, temperature: temperature}
}

// GenerateResponse answers one query. History, when non-empty, is appended
// to the system prompt. When tool definitions are offered, an executor must
// be supplied as well. Sources gathered from tool executions are returned
// alongside the answer; completion and tool failures propagate.
func (g *Generator) GenerateResponse(ctx context.Context, query, history string, defs []tools.Definition, exec ToolExecutor) (string, []domain.Source, error) {
	system := systemPrompt
	if history != "" {
		system += "\n\nPrevious conversation:\n" + history
	}

	req := Request{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		System:      system,
		Messages:    []MessageParam{TextMessage("user", query)},
	}
	if len(defs) > 0 {
		req.Tools = defs
		req.ToolChoice = &ToolChoice{Type: "auto"}
	}

	resp, err := g.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("completion: %w", err)
	}

	var sources []domain.Source
	if resp.StopReason == StopToolUse && exec != nil {
		resp, sources, err = g.runToolRound(ctx, req, resp, exec)
		if err != nil {
			return "", nil, err
		}
	}
	return joinText(resp.Content), sources, nil
}

// runToolRound executes every tool-use block of the response in order, then
// issues exactly one follow-up completion carrying the original user
// message, the assistant's tool-use message, and the correlated results.
// The follow-up offers no tools, which bounds the loop to a single round.
func (g *Generator) runToolRound(ctx context.Context, req Request, resp *Completion, exec ToolExecutor) (*Completion, []domain.Source, error) {
	var sources []domain.Source
	var resultBlocks []ContentBlock
	for _, block := range resp.Content {
		if block.Type != BlockToolUse {
			continue
		}
		text, srcs, err := exec.Execute(ctx, block.Name, block.Input)
		if err != nil {
			return nil, nil, fmt.Errorf("tool %s: %w", block.Name, err)
		}
		sources = append(sources, srcs...)
		resultBlocks = append(resultBlocks, ContentBlock{
			Type:      BlockToolResult,
			ToolUseID: block.ID,
			Content:   text,
		})
	}

	followUp := Request{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages: append(append([]MessageParam{}, req.Messages...),
			MessageParam{Role: "assistant", Content: resp.Content},
			MessageParam{Role: "user", Content: resultBlocks},
		),
	}
	final, err := g.client.CreateCompletion(ctx, followUp)
	if err != nil {
		return nil, nil, fmt.Errorf("follow-up completion: %w", err)
	}
	return final, sources, nil
}

func joinText(blocks []ContentBlock) string {
	var parts []string
	for _, block := range blocks {
		if block.Type == BlockText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
