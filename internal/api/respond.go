// Package api implements the HTTP and WebSocket surface of the runtime.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

// errorBody is the error envelope: {"error":{"kind","message","detail?"}}.
type errorBody struct {
	Error errorInfo `json:"error"`
}

type errorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

// respondError maps a domain error to its status code and envelope. Corrupt
// errors are always logged; clients get the same envelope either way.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	if kind == fault.KindCorrupt || kind == fault.KindInternal {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondJSON(w, fault.HTTPStatus(kind), errorBody{Error: errorInfo{
		Kind:    string(kind),
		Message: err.Error(),
		Detail:  fault.DetailOf(err),
	}})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Wrap(fault.KindInvalidArgument, err, "invalid request body")
	}
	return nil
}
