package server

import (
	"net/http"

	"github.com/cortexai/querygate/internal/config"
	"github.com/cortexai/querygate/internal/handler"
	"github.com/cortexai/querygate/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Routes builds the HTTP surface over app.
func Routes(app *App) http.Handler {
	cfg := app.Config
	o := app.Orchestrator

	generator := "disabled"
	if app.Generator != nil {
		generator = cfg.GeneratorProvider
	}
	healthH := handler.NewHealthHandler(app.Warehouse, map[string]string{
		"reviewer":  cfg.ReviewerProvider,
		"generator": generator,
	})
	queryH := handler.NewQueryHandler(o)
	reviewH := handler.NewReviewHandler(o, app.Policy)
	tablesH := handler.NewTablesHandler(o)
	agentH := handler.NewAgentHandler(o, cfg.AgentTimeout)
	auditH := handler.NewAuditHandler(app.Audit, cfg.AuditLogPath)

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("auth enabled but no API keys configured - all API requests will be rejected")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins, config.DefaultCORSMaxAge))
	r.Use(chiMiddleware.RealIP)

	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
		if cfg.EnableAuth {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}

		r.Get("/tables", tablesH.ListTables)
		r.Get("/tables/{table}", tablesH.GetTable)
		r.Post("/query", queryH.Execute)
		r.Post("/review", reviewH.Review)
		r.Post("/query-agent", agentH.QueryAgent)
		r.Get("/audit/records", auditH.Records)
		r.Get("/audit/verify", auditH.Verify)
	})

	return r
}
