package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleDevAuth handles POST /v1/auth/dev
func (h *Handlers) HandleDevAuth(w http.ResponseWriter, r *http.Request) {
	var req DevAuthRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}
	}

	resp, err := h.service.SignInDev(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDevAuthClosed):
			writeErrorResponse(w, http.StatusNotFound, "not_found", "Dev auth is disabled")
		case errors.Is(err, ErrInvalidUserID):
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid user_id")
		default:
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
