package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/soko/identity-api/internal/domain"
)

type Service interface {
	// Create mints an access token for a verified account. The returned
	// plaintext is shown to the caller exactly once and never persisted.
	Create(ctx context.Context, body domain.CreateAccessTokenBody) (*domain.AccessToken, string, error)
}

type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// tokenStore must count active tokens and insert the new row atomically;
// a check-then-insert split across transactions would let concurrent
// requests overshoot the quota.
type tokenStore interface {
	Create(ctx context.Context, req *domain.CreateAccessTokenRequest, maxActive int) (*domain.AccessToken, error)
}

type service struct {
	accounts   accountStore
	tokens     tokenStore
	hmacSecret string
	maxActive  int
}

type ServiceDeps struct {
	AccountRepo     accountStore
	TokenRepo       tokenStore
	HMACSecret      string
	MaxActiveTokens int
}

func NewService(deps ServiceDeps) Service {
	maxActive := deps.MaxActiveTokens
	if maxActive <= 0 {
		maxActive = domain.DefaultMaxActiveTokens
	}
	return &service{
		accounts:   deps.AccountRepo,
		tokens:     deps.TokenRepo,
		hmacSecret: deps.HMACSecret,
		maxActive:  maxActive,
	}
}

func (s *service) Create(ctx context.Context, body domain.CreateAccessTokenBody) (*domain.AccessToken, string, error) {
	account, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(body.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("lookup account: %w", err)
	}
	// An unverified account is indistinguishable from a missing one here:
	// tokens are only minted against proven email ownership.
	if !account.Verified {
		return nil, "", fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}

	req, err := domain.NewCreateAccessTokenRequest(body, account, s.hmacSecret)
	if err != nil {
		return nil, "", err
	}

	stored, err := s.tokens.Create(ctx, req, s.maxActive)
	if err != nil {
		return nil, "", err
	}
	return stored, req.Token, nil
}
