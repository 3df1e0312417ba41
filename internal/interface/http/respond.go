package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// errInternal masks unexpected failures in responses.
var errInternal = errors.New("internal error")

// errorResponse is the uniform error body.
type errorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

// respondError maps domain errors onto HTTP status codes. Validation
// failures carry the domain's messages verbatim so clients can surface
// them unchanged.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *membership.ValidationError
	if errors.As(err, &verr) {
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:    "validation_failed",
			Messages: verr.Messages,
		})
		return
	}

	var derr *shared.DomainError
	message := err.Error()
	if errors.As(err, &derr) {
		message = derr.Message
	}

	switch {
	case errors.Is(err, shared.ErrNotFound):
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: message})
	case errors.Is(err, shared.ErrPermissionDenied):
		s.respondJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Message: message})
	case errors.Is(err, shared.ErrAlreadyExists):
		s.respondJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Message: message})
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation_failed", Message: message})
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
	}
}

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return shared.NewDomainError("http", "Decode", shared.ErrInvalidInput, "malformed request body")
	}
	return nil
}
