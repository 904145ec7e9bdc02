package api

import (
	"errors"
	"net/http"

	"authgate-backend-go/internal/autherr"
	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/db"
	"authgate-backend-go/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SessionResponse is returned on any successful authentication event.
type SessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// FlowResponse describes a verification flow's observable state.
type FlowResponse struct {
	FlowID         string `json:"flowId"`
	State          string `json:"state"`
	VerificationID string `json:"verificationId,omitempty"`
}

// PhoneExistsResponse answers the registered-phone membership query.
type PhoneExistsResponse struct {
	Phone  string `json:"phone"`
	Exists bool   `json:"exists"`
}

// statusForError maps the service error taxonomy onto HTTP statuses. Every
// taxonomy error surfaces its message; unknown errors collapse to 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, autherr.ErrInvalidPhoneFormat),
		errors.Is(err, autherr.ErrInvalidCode),
		errors.Is(err, core.ErrCodeAlreadySent),
		errors.Is(err, core.ErrNoCodeSent):
		return http.StatusBadRequest
	case errors.Is(err, autherr.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, autherr.ErrNotRegistered),
		errors.Is(err, core.ErrFlowNotFound),
		errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, autherr.ErrAlreadyRegistered),
		errors.Is(err, autherr.ErrDuplicateAccount),
		errors.Is(err, core.ErrFlowBusy):
		return http.StatusConflict
	case errors.Is(err, autherr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case autherr.IsProviderError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
