package handler

import (
	"net/http"

	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/tools"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TablesHandler exposes the catalog. Calls are audited like the
// corresponding model tools.
type TablesHandler struct {
	gate tools.Gate
}

func NewTablesHandler(gate tools.Gate) *TablesHandler {
	return &TablesHandler{gate: gate}
}

// ListTables handles GET /api/v1/tables
func (h *TablesHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.gate.ListTables(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("list tables failed")
		code, msg := catalogStatus(err)
		models.WriteError(w, code, msg)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	models.WriteJSON(w, http.StatusOK, models.TablesResponse{
		Status:  "success",
		Dataset: h.gate.Dataset(),
		Tables:  tables,
	})
}

// GetTable handles GET /api/v1/tables/{table}
func (h *TablesHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	entry, err := h.gate.GetSchema(r.Context(), table)
	if err != nil {
		log.Warn().Err(err).Str("table", table).Msg("get schema failed")
		code, msg := catalogStatus(err)
		models.WriteError(w, code, msg)
		return
	}
	models.WriteJSON(w, http.StatusOK, models.SchemaResponse{Status: "success", Entry: entry})
}
