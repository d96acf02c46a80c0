package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soko/identity-api/internal/domain"
)

type Service interface {
	// Signup creates a new unverified account, or resets an existing
	// unverified one, and mails a fresh verification code.
	Signup(ctx context.Context, body domain.SignupBody) (*domain.Account, error)
	// VerifyEmail checks a submitted code and marks the account verified.
	VerifyEmail(ctx context.Context, body domain.VerifyEmailBody) (*domain.Account, error)
}

// accountStore is the subset of the account repository this service needs.
// The compound operations are transactional: the store either applies every
// mutation in them or none.
type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByEmailWithActiveTicket(ctx context.Context, email string) (*domain.Account, *domain.VerificationTicket, error)
	// CreateWithTicket inserts the account row and its first active ticket.
	CreateWithTicket(ctx context.Context, req *domain.SignupRequest) (*domain.Account, error)
	// ResetSignup updates the password hash, cancels any active ticket and
	// inserts a fresh one.
	ResetSignup(ctx context.Context, accountID string, req *domain.SignupRequest) (*domain.Account, error)
	// ConfirmVerification sets verified=true and confirms the active ticket.
	ConfirmVerification(ctx context.Context, accountID string) (*domain.Account, error)
}

type mailer interface {
	SendVerificationCode(email, code string) error
}

type service struct {
	repo   accountStore
	mailer mailer
}

type ServiceDeps struct {
	AccountRepo accountStore
	Mailer      mailer
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.AccountRepo, mailer: deps.Mailer}
}

func (s *service) Signup(ctx context.Context, body domain.SignupBody) (*domain.Account, error) {
	existing, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(body.Email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	req, err := domain.NewSignupRequest(body, existing)
	if err != nil {
		return nil, err
	}

	var account *domain.Account
	if existing == nil {
		account, err = s.repo.CreateWithTicket(ctx, req)
	} else {
		account, err = s.repo.ResetSignup(ctx, existing.AccountID, req)
	}
	if err != nil {
		return nil, err
	}

	// Delivery is best-effort: the account holder can always sign up again
	// to get a fresh code, so a mail failure never fails the signup.
	code := fmt.Sprintf("%d", req.VerificationPlaintext)
	if err := s.mailer.SendVerificationCode(req.Email, code); err != nil {
		slog.Warn("failed to send verification code", "email", req.Email, "err", err)
	}

	return account, nil
}

func (s *service) VerifyEmail(ctx context.Context, body domain.VerifyEmailBody) (*domain.Account, error) {
	email := domain.NormalizeEmail(body.Email)
	account, ticket, err := s.repo.GetByEmailWithActiveTicket(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	req, err := domain.NewVerifyAccountRequest(body, account, ticket)
	if err != nil {
		return nil, err
	}

	return s.repo.ConfirmVerification(ctx, req.AccountID)
}
