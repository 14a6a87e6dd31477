package handler

import (
	"net/http"
	"strconv"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/models"
)

// AuditHandler exposes the in-memory audit window and the hash chain check.
type AuditHandler struct {
	pipeline  *audit.Pipeline
	chainPath string
}

func NewAuditHandler(p *audit.Pipeline, chainPath string) *AuditHandler {
	return &AuditHandler{pipeline: p, chainPath: chainPath}
}

// Records handles GET /api/v1/audit/records?turn_id=&limit=
func (h *AuditHandler) Records(w http.ResponseWriter, r *http.Request) {
	turn := r.URL.Query().Get("turn_id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			models.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs := h.pipeline.Records()
	out := make([]audit.Record, 0, len(recs))
	for _, rec := range recs {
		if turn == "" || rec.TurnID == turn {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	models.WriteJSON(w, http.StatusOK, models.AuditRecordsResponse{
		Status:  "success",
		Count:   len(out),
		Records: out,
	})
}

// Verify handles GET /api/v1/audit/verify
func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.chainPath == "" {
		models.WriteError(w, http.StatusNotFound, "no audit chain file is configured")
		return
	}
	res := audit.Verify(h.chainPath)
	code := http.StatusOK
	if !res.Valid {
		code = http.StatusConflict
	}
	models.WriteJSON(w, code, res)
}
