package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/soko/identity-api/internal/application/token"
	"github.com/soko/identity-api/internal/domain"
	"github.com/soko/identity-api/internal/pkg/validate"
)

// TokenHandler handles access token issuance.
type TokenHandler struct {
	svc token.Service
}

func NewTokenHandler(svc token.Service) *TokenHandler {
	return &TokenHandler{svc: svc}
}

// TokenCreatedEnvelope carries the plaintext token. It is returned exactly
// once; only the mac of the token is stored.
type TokenCreatedEnvelope struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	AccessToken string     `json:"accessToken"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body domain.CreateAccessTokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stored, plaintext, err := h.svc.Create(r.Context(), body)
	if err != nil {
		h.writeTokenError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TokenCreatedEnvelope{
		ID:          stored.TokenID,
		Name:        stored.Name,
		AccessToken: plaintext,
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
		ExpiresAt:   stored.ExpiresAt,
		RevokedAt:   stored.RevokedAt,
	})
}

func (h *TokenHandler) writeTokenError(w http.ResponseWriter, err error) {
	var limit *domain.TokenLimitError
	switch {
	case errors.Is(err, domain.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrInvalidName):
		writeFieldError(w, http.StatusBadRequest, "name", "invalid-length",
			"name must not be empty and must be at most 40 characters long")
	case errors.Is(err, domain.ErrInvalidLifetime):
		writeFieldError(w, http.StatusBadRequest, "lifetime", "invalid-range",
			"lifetime must be more than 0 and at most 90 days")
	case errors.As(err, &limit):
		writeFieldError(w, http.StatusBadRequest, "name", "too-many-tokens",
			"limit of active access tokens reached")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict, retry the request")
	default:
		slog.Error("token creation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
