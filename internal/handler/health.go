package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/models"
)

// Version is set at build time through -ldflags.
var Version = "dev"

// HealthHandler handles GET /health with a warehouse connectivity check.
type HealthHandler struct {
	warehouse catalog.Client
	checks    map[string]string
}

// NewHealthHandler takes static checks (reviewer, generator) that are
// reported as given.
func NewHealthHandler(warehouse catalog.Client, static map[string]string) *HealthHandler {
	return &HealthHandler{warehouse: warehouse, checks: static}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	for k, v := range h.checks {
		checks[k] = v
	}
	status := "healthy"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	switch {
	case h.warehouse == nil:
		checks["warehouse"] = "disabled"
		status = "degraded"
	default:
		if _, err := h.warehouse.ListTables(ctx); err != nil {
			checks["warehouse"] = "unavailable: " + string(catalog.KindOf(err))
			status = "degraded"
		} else {
			checks["warehouse"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	models.WriteJSON(w, code, models.HealthResponse{
		Status:  status,
		Version: Version,
		Checks:  checks,
	})
}
