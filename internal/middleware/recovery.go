package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/models"
	"github.com/rs/zerolog/log"
)

// Recovery turns a handler panic into a 500 with a generic body.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Str("request_id", audit.TurnFrom(r.Context())).
					Msg("panic recovered")
				models.WriteError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
