package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/infra/storage"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Anything unrecognised is
// a 500 and its text is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger(r).Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "insufficient_credits"
	case errors.Is(err, domain.ErrMissingInput):
		return http.StatusBadRequest, "missing_input"
	case errors.Is(err, domain.ErrInvalidImage):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, domain.ErrInvalidReference):
		return http.StatusBadRequest, "invalid_reference"
	case errors.Is(err, domain.ErrInvalidStyle):
		return http.StatusBadRequest, "invalid_style"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrInvalidToken):
		return http.StatusForbidden, "invalid_token"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, ""
	}
}
