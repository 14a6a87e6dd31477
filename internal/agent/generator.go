package agent

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/tools"
)

// GenerateRequest is one natural-language turn handed to a model.
type GenerateRequest struct {
	System string
	Prompt string
	Tools  []tools.Tool
}

// Candidate is what the model proposes. SQL is untrusted until admitted.
type Candidate struct {
	SQL         string
	Explanation string
	ToolsUsed   []string
	Model       string
}

// Generator turns a question into a candidate statement, optionally calling
// tools along the way.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Candidate, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (*Candidate, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (*Candidate, error) {
	return f(ctx, req)
}

func executeTool(ctx context.Context, name string, input map[string]any, available []tools.Tool) (string, error) {
	for _, t := range available {
		if t.Name == name {
			return t.Execute(ctx, input)
		}
	}
	return "", fmt.Errorf("unknown tool: %s", name)
}
