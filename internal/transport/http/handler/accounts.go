package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/soko/identity-api/internal/application/account"
	"github.com/soko/identity-api/internal/domain"
	"github.com/soko/identity-api/internal/pkg/validate"
)

// AccountHandler handles signup and email verification endpoints.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler {
	return &AccountHandler{svc: svc}
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body domain.SignupBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := h.svc.Signup(r.Context(), body)
	if err != nil {
		h.writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc.Response())
}

func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body domain.VerifyEmailBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := h.svc.VerifyEmail(r.Context(), body)
	if err != nil {
		h.writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc.Response())
}

func (h *AccountHandler) writeAccountError(w http.ResponseWriter, err error) {
	var verified *domain.AlreadyVerifiedError
	var policy *domain.PasswordPolicyError
	switch {
	case errors.As(err, &verified):
		writeFieldError(w, http.StatusBadRequest, "email", "existing-email",
			"Email is already associated with a verified account")
	case errors.As(err, &policy):
		writeFieldError(w, http.StatusBadRequest, "password", "invalid-password", policy.Reason)
	case errors.Is(err, domain.ErrInvalidVerificationCode):
		writeError(w, http.StatusBadRequest, "invalid code")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("account request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
