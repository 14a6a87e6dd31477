package handler

import (
	"net/http"
	"strings"

	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/tools"
)

// QueryHandler runs caller-supplied SQL through admission, review and
// execution.
type QueryHandler struct {
	gate tools.Gate
}

func NewQueryHandler(gate tools.Gate) *QueryHandler {
	return &QueryHandler{gate: gate}
}

// Execute handles POST /api/v1/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decode(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		models.WriteError(w, http.StatusBadRequest, "sql is required")
		return
	}

	env := h.gate.Submit(r.Context(), req.SQL, models.SubmitOptions{
		ForceReview: req.Review,
		Source:      "api",
	})
	models.WriteJSON(w, envelopeStatus(env), env)
}
