package domain

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/soko/identity-api/internal/pkg/password"
)

// TokenPrefix tags every plaintext access token so leaked credentials can be
// attributed by secret scanners.
const TokenPrefix = "soko__"

// MaxTokenLifetime bounds requested lifetimes, in seconds.
const MaxTokenLifetime = 90 * 24 * 60 * 60

// DefaultMaxActiveTokens is the per-account ceiling of simultaneously valid
// tokens applied when no override is configured.
const DefaultMaxActiveTokens = 3

// AccessToken is a stored token row. Only the mac of the plaintext is
// persisted; the plaintext is returned to the caller exactly once.
type AccessToken struct {
	TokenID    string     `json:"id" dynamodbav:"token_id"`
	AccountID  string     `json:"account_id" dynamodbav:"account_id"`
	Name       string     `json:"name" dynamodbav:"name"`
	MAC        []byte     `json:"-" dynamodbav:"mac"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" dynamodbav:"updated_at"`
	LastUsedAt time.Time  `json:"last_used_at" dynamodbav:"last_used_at"`
	ExpiresAt  time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" dynamodbav:"revoked_at,omitempty"`
}

// Active reports whether the token still counts against the quota at now.
func (t *AccessToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// CreateAccessTokenBody is the decoded token-creation payload. Name and
// lifetime bounds are enforced in NewCreateAccessTokenRequest so their
// failures carry stable domain errors.
type CreateAccessTokenBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Lifetime uint32 `json:"lifetime" validate:"required"`
}

// CreateAccessTokenRequest is the DTO the store persists. Token is the
// plaintext handed back to the caller once; MAC is what gets stored.
type CreateAccessTokenRequest struct {
	AccountID string
	Name      string
	Token     string
	MAC       []byte
	ExpiresAt time.Time
}

// NewCreateAccessTokenRequest mints a token for account after re-checking
// the password. The password re-check is mandatory: possession of a valid
// session is not enough to mint a long-lived credential.
func NewCreateAccessTokenRequest(body CreateAccessTokenBody, account *Account, hmacSecret string) (*CreateAccessTokenRequest, error) {
	if err := password.Verify(body.Password, account.PasswordHash); err != nil {
		return nil, ErrInvalidPassword
	}

	name := strings.TrimSpace(body.Name)
	if name == "" || len(name) > 40 {
		return nil, ErrInvalidName
	}

	if body.Lifetime == 0 || body.Lifetime > MaxTokenLifetime {
		return nil, ErrInvalidLifetime
	}

	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := TokenPrefix + base64.RawStdEncoding.EncodeToString(raw)

	h := hmac.New(sha3.New256, []byte(hmacSecret))
	h.Write([]byte(token))

	return &CreateAccessTokenRequest{
		AccountID: account.AccountID,
		Name:      name,
		Token:     token,
		MAC:       h.Sum(nil),
		ExpiresAt: time.Now().UTC().Add(time.Duration(body.Lifetime) * time.Second),
	}, nil
}
