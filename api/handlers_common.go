package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// APIError is the body of every error response.
type APIError struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

const errInvalidPayload = "invalid payload"

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, details any) {
	s.writeJSON(w, status, APIError{Error: message, Details: details})
}

// writeDomainError maps core errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		var details any
		if verr.Field != "" {
			details = map[string]string{"field": verr.Field, "reason": verr.Reason}
		}
		s.writeError(w, http.StatusBadRequest, err.Error(), details)
	case errors.Is(err, model.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, model.ErrDuplicateVehicle),
		errors.Is(err, model.ErrAlreadyTerminal),
		errors.Is(err, model.ErrAlreadyAssigned),
		errors.Is(err, model.ErrVehicleUnavailable):
		s.writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		s.log.Errorf("api: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// decodeAndValidate decodes a strict JSON body into dst and validates it.
func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &model.ValidationError{Reason: fmt.Sprintf("%s: %v", errInvalidPayload, err)}
	}
	return model.Validate(dst)
}

func pathParam(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return "", &model.ValidationError{Field: key, Reason: "is required"}
	}
	return raw, nil
}
