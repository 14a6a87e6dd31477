package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/security"
)

var publicPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

type callerKey struct{}

// CallerFrom returns the hashed API key of the authenticated caller, or "".
func CallerFrom(ctx context.Context) string {
	s, _ := ctx.Value(callerKey{}).(string)
	return s
}

// Auth accepts a request when headerName (or the api_key cookie) carries one
// of apiKeys. The caller is stored in the context as a short hash so the raw
// key never reaches a log line.
func Auth(apiKeys []string, headerName string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerName)
			if key == "" {
				if c, err := r.Cookie("api_key"); err == nil {
					key = c.Value
				}
			}
			if key == "" {
				models.WriteError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !knownKey(keys, []byte(key)) {
				models.WriteError(w, http.StatusForbidden, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, security.HashShort(key))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func knownKey(keys [][]byte, key []byte) bool {
	found := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, key) == 1 {
			found = true
		}
	}
	return found
}
