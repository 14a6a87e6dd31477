package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cortexai/querygate/internal/tools"
	"github.com/rs/zerolog/log"
)

const (
	maxAgentIterations = 10
	// after this many tool rounds the model is asked to answer
	forceAnswerAfter = 7
)

// ToolCall represents a tool invocation request from the LLM
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// AnthropicGenerator runs a multi-turn tool-calling loop against Claude or a
// compatible provider.
type AnthropicGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicGenerator creates a generator backed by Anthropic Claude or a
// compatible provider (baseURL).
func NewAnthropicGenerator(apiKey, model, baseURL string) *AnthropicGenerator {
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicGenerator{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 4096,
	}
}

func anthropicTools(agentTools []tools.Tool) []anthropic.ToolUnionUnionParam {
	params := make([]anthropic.ToolUnionUnionParam, len(agentTools))
	for i, t := range agentTools {
		schema := map[string]any{
			"type":       "object",
			"properties": t.InputSchema["properties"],
		}
		if required, ok := t.InputSchema["required"]; ok {
			schema["required"] = required
		}
		params[i] = anthropic.ToolParam{
			Name:        anthropic.String(t.Name),
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.F[interface{}](schema),
		}
	}
	return params
}

// Generate loops until the model stops calling tools. The candidate SQL is
// taken from the final reply, falling back to the last statement sent to
// execute_sql.
func (a *AnthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (*Candidate, error) {
	toolParams := anthropicTools(req.Tools)
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}
	cand := &Candidate{Model: a.model}
	var lastExecutedSQL string

	finish := func(text string) *Candidate {
		cand.Explanation = text
		cand.SQL = extractSQL(text)
		if cand.SQL == "" {
			cand.SQL = lastExecutedSQL
		}
		return cand
	}

	for iter := 0; iter < maxAgentIterations; iter++ {
		params := a.params(req.System, messages)
		params.Tools = anthropic.F(toolParams)

		resp, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return cand, fmt.Errorf("LLM call failed: %w", err)
		}

		var textContent string
		var pending []ToolCall
		for _, block := range resp.Content {
			switch b := block.AsUnion().(type) {
			case anthropic.TextBlock:
				textContent += b.Text
			case anthropic.ToolUseBlock:
				var input map[string]any
				if err := json.Unmarshal(b.Input, &input); err != nil {
					log.Warn().Err(err).Str("tool", b.Name).Msg("failed to parse tool input")
					input = map[string]any{}
				}
				pending = append(pending, ToolCall{ID: b.ID, Name: b.Name, Input: input})
			}
		}

		log.Debug().
			Int("iter", iter).
			Str("stop_reason", string(resp.StopReason)).
			Str("text_preview", truncate(textContent, 80)).
			Int("tool_calls", len(pending)).
			Msg("agent iteration")

		if resp.StopReason != "tool_use" || len(pending) == 0 {
			return finish(textContent), nil
		}

		messages = append(messages, resp.ToParam())

		if iter >= forceAnswerAfter {
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock("You have enough data. Please provide your final answer now without calling any more tools."),
			))
			final, err := a.client.Messages.New(ctx, a.params(req.System, messages))
			if err != nil {
				return cand, fmt.Errorf("final answer call failed: %w", err)
			}
			for _, block := range final.Content {
				if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
					textContent += b.Text
				}
			}
			return finish(textContent), nil
		}

		var results []anthropic.ContentBlockParamUnion
		for _, tc := range pending {
			cand.ToolsUsed = append(cand.ToolsUsed, tc.Name)
			if tc.Name == tools.NameExecuteSQL {
				if sql, ok := tc.Input["sql"].(string); ok && sql != "" {
					lastExecutedSQL = sql
				}
			}
			out, execErr := executeTool(ctx, tc.Name, tc.Input, req.Tools)
			if execErr != nil {
				log.Warn().Err(execErr).Str("tool", tc.Name).Msg("tool execution error")
				out = fmt.Sprintf("error: %v", execErr)
			}
			results = append(results, anthropic.NewToolResultBlock(tc.ID, out, execErr != nil))
		}
		messages = append(messages, anthropic.NewUserMessage(results...))
	}

	return cand, fmt.Errorf("agent loop exceeded max iterations (%d)", maxAgentIterations)
}

func (a *AnthropicGenerator) params(system string, messages []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(a.model)),
		MaxTokens: anthropic.F(int64(a.maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(system)})
	}
	return params
}
