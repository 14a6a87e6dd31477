package agent

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/tools"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GeminiGenerator runs the same tool loop against the Gemini API using
// function calling.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Candidate, error) {
	m := g.client.GenerativeModel(g.model)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if len(req.Tools) > 0 {
		m.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(req.Tools)}}
	}

	cand := &Candidate{Model: g.model}
	var lastExecutedSQL string

	cs := m.StartChat()
	parts := []genai.Part{genai.Text(req.Prompt)}

	for iter := 0; iter < maxAgentIterations; iter++ {
		resp, err := cs.SendMessage(ctx, parts...)
		if err != nil {
			return cand, fmt.Errorf("LLM call failed: %w", err)
		}

		var calls []genai.FunctionCall
		for _, c := range resp.Candidates {
			if c.Content == nil {
				continue
			}
			for _, p := range c.Content.Parts {
				if fc, ok := p.(genai.FunctionCall); ok {
					calls = append(calls, fc)
				}
			}
		}

		log.Debug().Int("iter", iter).Int("tool_calls", len(calls)).Msg("agent iteration")

		if len(calls) == 0 {
			text := review.ResponseText(resp)
			cand.Explanation = text
			cand.SQL = extractSQL(text)
			if cand.SQL == "" {
				cand.SQL = lastExecutedSQL
			}
			return cand, nil
		}

		parts = nil
		for _, fc := range calls {
			cand.ToolsUsed = append(cand.ToolsUsed, fc.Name)
			if fc.Name == tools.NameExecuteSQL {
				if sql, ok := fc.Args["sql"].(string); ok && sql != "" {
					lastExecutedSQL = sql
				}
			}
			out, execErr := executeTool(ctx, fc.Name, fc.Args, req.Tools)
			response := map[string]any{"result": out}
			if execErr != nil {
				log.Warn().Err(execErr).Str("tool", fc.Name).Msg("tool execution error")
				response = map[string]any{"error": execErr.Error()}
			}
			parts = append(parts, genai.FunctionResponse{Name: fc.Name, Response: response})
		}
	}

	return cand, fmt.Errorf("agent loop exceeded max iterations (%d)", maxAgentIterations)
}

// functionDeclarations converts JSON-schema tool inputs. Only flat objects
// with scalar properties are needed here.
func functionDeclarations(agentTools []tools.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(agentTools))
	for _, t := range agentTools {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		if props, ok := t.InputSchema["properties"].(map[string]any); ok {
			for name, raw := range props {
				prop, _ := raw.(map[string]any)
				desc, _ := prop["description"].(string)
				schema.Properties[name] = &genai.Schema{Type: schemaType(prop["type"]), Description: desc}
			}
		}
		if req, ok := t.InputSchema["required"].([]string); ok {
			schema.Required = req
		}
		decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if len(schema.Properties) > 0 {
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return decls
}

func schemaType(v any) genai.Type {
	switch v {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
