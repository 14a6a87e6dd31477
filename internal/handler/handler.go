// Package handler serves the HTTP API. Every statement, whether typed by a
// caller or generated from a question, goes through the orchestrator.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/models"
)

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body")
	}
	return nil
}

// envelopeStatus maps an envelope onto an HTTP status: blocked is a policy
// refusal, error is a warehouse or model failure.
func envelopeStatus(env *models.Envelope) int {
	switch env.Status {
	case models.StatusSuccess:
		return http.StatusOK
	case models.StatusBlocked:
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

func catalogStatus(err error) (int, string) {
	switch catalog.KindOf(err) {
	case catalog.KindNotFound:
		return http.StatusNotFound, "table not found"
	case catalog.KindTimeout:
		return http.StatusGatewayTimeout, "warehouse timed out"
	case catalog.KindAuth:
		return http.StatusBadGateway, "warehouse authentication failed"
	case catalog.KindPermission:
		return http.StatusForbidden, "permission denied by the warehouse"
	default:
		return http.StatusBadGateway, "warehouse unavailable"
	}
}
