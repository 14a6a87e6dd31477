package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cortexai/querygate/internal/agent"
	"github.com/cortexai/querygate/internal/models"
)

// Asker answers one natural-language question.
type Asker interface {
	HandleTurn(ctx context.Context, prompt string) *agent.TurnResult
}

// AgentHandler handles POST /api/v1/query-agent
type AgentHandler struct {
	asker          Asker
	defaultTimeout int
}

func NewAgentHandler(asker Asker, defaultTimeout int) *AgentHandler {
	return &AgentHandler{asker: asker, defaultTimeout: defaultTimeout}
}

func (h *AgentHandler) QueryAgent(w http.ResponseWriter, r *http.Request) {
	var req models.AgentRequest
	if err := decode(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		models.WriteError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	req.SetDefaults(h.defaultTimeout)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	res := h.asker.HandleTurn(ctx, req.Prompt)
	resp := models.AgentResponse{
		Status: res.Envelope.Status,
		TurnID: res.TurnID,
		Prompt: res.Prompt,
		Result: res.Envelope,
		Metadata: map[string]any{
			"tools_used":  nonNil(res.ToolsUsed),
			"model":       res.Model,
			"checks":      res.Checks,
			"duration_ms": res.Duration.Milliseconds(),
			"stage":       res.Stage,
		},
	}
	if res.SQL != "" {
		resp.GeneratedSQL = &res.SQL
	}
	if res.Explanation != "" {
		resp.Explanation = &res.Explanation
	}
	models.WriteJSON(w, turnStatus(res), resp)
}

// turnStatus separates refusals and missing configuration from upstream
// failures; a submitted statement maps like any other envelope.
func turnStatus(res *agent.TurnResult) int {
	if res.Envelope.Status == models.StatusError {
		switch res.Stage {
		case agent.StagePrompt:
			return http.StatusUnprocessableEntity
		case agent.StageUnconfigured:
			return http.StatusServiceUnavailable
		}
	}
	return envelopeStatus(res.Envelope)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
