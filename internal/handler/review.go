package handler

import (
	"net/http"
	"strings"

	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/tools"
)

type ReviewHandler struct {
	gate   tools.Gate
	policy *review.ComplexityPolicy
}

func NewReviewHandler(gate tools.Gate, policy *review.ComplexityPolicy) *ReviewHandler {
	if policy == nil {
		policy = review.NewComplexityPolicy(false)
	}
	return &ReviewHandler{gate: gate, policy: policy}
}

// Review handles POST /api/v1/review. The statement is never executed and
// the verdict is advisory.
func (h *ReviewHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := decode(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		models.WriteError(w, http.StatusBadRequest, "sql is required")
		return
	}

	c := h.policy.Assess(req.SQL)
	models.WriteJSON(w, http.StatusOK, models.ReviewResponse{
		Status:  "success",
		Complex: c.Complex,
		Signals: c.Signals,
		Verdict: h.gate.ReviewSQL(r.Context(), req.SQL),
	})
}
