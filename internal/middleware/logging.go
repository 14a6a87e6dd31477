package middleware

import (
	"net/http"
	"time"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/rs/zerolog/log"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Logging writes one line per request. Bodies are never logged; statements
// and prompts are recorded by the audit pipeline instead.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		evt := log.Info()
		if rw.status >= http.StatusInternalServerError {
			evt = log.Error()
		} else if rw.status >= http.StatusBadRequest {
			evt = log.Warn()
		}
		evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Int("size", rw.size).
			Dur("duration", time.Since(start)).
			Str("request_id", audit.TurnFrom(r.Context())).
			Str("caller", CallerFrom(r.Context())).
			Str("remote_addr", clientIP(r)).
			Msg("request")
	})
}
