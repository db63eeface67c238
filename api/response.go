// Package api exposes the feedback collector and the summary exchange over HTTP.
package api

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

const (
	msgMessageRequired = "Message is required"
	msgInvalidBody     = "Invalid request body"
	msgInternal        = "Internal server error"
	msgConflict        = "Summary changed concurrently, retry the request"
	msgUpstream        = "Message delivery failed"
	msgUnauthorized    = "Invalid signature"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Pre-marshalled so a broken payload still yields a valid body.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = sonic.Marshal(errorResponse{Error: msgInternal})
	if err != nil {
		panic(fmt.Sprintf("marshal fallback error response: %v", err))
	}
}

// writeJSONResponse marshals before touching headers so an encoding failure
// can still turn into a clean 500.
func writeJSONResponse(w http.ResponseWriter, r *http.Request, statusCode int, response any) {
	payload, err := sonic.Marshal(response)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("marshal json response")
		payload = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(payload); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("write json response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSONResponse(w, r, statusCode, errorResponse{Error: message})
}
