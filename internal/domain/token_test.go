package domain

import (
	"crypto/hmac"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/soko/identity-api/internal/pkg/password"
)

const hmacSecret = "test-hmac-secret"

func tokenAccount(t *testing.T) *Account {
	t.Helper()
	hash, err := password.Hash(validPassword)
	require.NoError(t, err)
	return &Account{AccountID: "account-1", Email: "alice@example.com", PasswordHash: hash, Verified: true}
}

func tokenBody(name string, lifetime uint32) CreateAccessTokenBody {
	return CreateAccessTokenBody{
		Email:    "alice@example.com",
		Password: validPassword,
		Name:     name,
		Lifetime: lifetime,
	}
}

func TestNewCreateAccessTokenRequest_Success(t *testing.T) {
	account := tokenAccount(t)
	before := time.Now().UTC()

	req, err := NewCreateAccessTokenRequest(tokenBody("  ci runner  ", 3600), account, hmacSecret)
	require.NoError(t, err)

	assert.Equal(t, "account-1", req.AccountID)
	assert.Equal(t, "ci runner", req.Name)
	assert.True(t, strings.HasPrefix(req.Token, TokenPrefix))

	h := hmac.New(sha3.New256, []byte(hmacSecret))
	h.Write([]byte(req.Token))
	assert.Equal(t, h.Sum(nil), req.MAC)
	assert.Len(t, req.MAC, 32)

	after := time.Now().UTC()
	assert.False(t, req.ExpiresAt.Before(before.Add(time.Hour)))
	assert.False(t, req.ExpiresAt.After(after.Add(time.Hour)))
}

func TestNewCreateAccessTokenRequest_WrongPassword(t *testing.T) {
	account := tokenAccount(t)
	body := tokenBody("ci runner", 3600)
	body.Password = "Ab12!!cdEg"

	_, err := NewCreateAccessTokenRequest(body, account, hmacSecret)
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestNewCreateAccessTokenRequest_NameBounds(t *testing.T) {
	account := tokenAccount(t)

	_, err := NewCreateAccessTokenRequest(tokenBody("   ", 3600), account, hmacSecret)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewCreateAccessTokenRequest(tokenBody(strings.Repeat("x", 41), 3600), account, hmacSecret)
	assert.ErrorIs(t, err, ErrInvalidName)

	req, err := NewCreateAccessTokenRequest(tokenBody(strings.Repeat("x", 40), 3600), account, hmacSecret)
	require.NoError(t, err)
	assert.Len(t, req.Name, 40)
}

func TestNewCreateAccessTokenRequest_LifetimeBounds(t *testing.T) {
	account := tokenAccount(t)

	_, err := NewCreateAccessTokenRequest(tokenBody("ci runner", 0), account, hmacSecret)
	assert.ErrorIs(t, err, ErrInvalidLifetime)

	_, err = NewCreateAccessTokenRequest(tokenBody("ci runner", MaxTokenLifetime+1), account, hmacSecret)
	assert.ErrorIs(t, err, ErrInvalidLifetime)

	_, err = NewCreateAccessTokenRequest(tokenBody("ci runner", 1), account, hmacSecret)
	assert.NoError(t, err)

	_, err = NewCreateAccessTokenRequest(tokenBody("ci runner", MaxTokenLifetime), account, hmacSecret)
	assert.NoError(t, err)
}

func TestNewCreateAccessTokenRequest_TokensAreUnique(t *testing.T) {
	account := tokenAccount(t)

	a, err := NewCreateAccessTokenRequest(tokenBody("ci runner", 3600), account, hmacSecret)
	require.NoError(t, err)
	b, err := NewCreateAccessTokenRequest(tokenBody("ci runner", 3600), account, hmacSecret)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	assert.NotEqual(t, a.MAC, b.MAC)
}

func TestAccessToken_Active(t *testing.T) {
	now := time.Now().UTC()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name   string
		token  AccessToken
		active bool
	}{
		{"live", AccessToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", AccessToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"revoked", AccessToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.token.Active(now))
		})
	}
}
