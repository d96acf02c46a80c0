package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/soko/identity-api/internal/pkg/password"
	"github.com/soko/identity-api/internal/pkg/secret"
)

// Account is an identity row. The password hash never leaves the backend;
// responses are built from AccountResponse.
type Account struct {
	AccountID    string    `json:"id" dynamodbav:"account_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Verified     bool      `json:"verified" dynamodbav:"verified"`
	// TokenSeq is bumped on every access token insertion and serves as the
	// optimistic lock for the active-token quota check.
	TokenSeq  int64     `json:"-" dynamodbav:"token_seq"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// AccountResponse is the public projection of an account.
type AccountResponse struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Account) Response() AccountResponse {
	return AccountResponse{Email: a.Email, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

// SignupBody is the decoded signup payload. The length tags only bound the
// payload shape; the full password policy runs in NewSignupRequest.
type SignupBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=10,max=40"`
}

// SignupRequest is everything the store needs to create or reset an account
// signup in one transaction, plus the plaintext code the caller mails out.
// The plaintext is never persisted.
type SignupRequest struct {
	Email                  string
	PasswordHash           string
	VerificationPlaintext  uint32
	VerificationCiphertext string
}

// NewSignupRequest reconciles a signup payload against the existing account
// state, if any. A verified account claims the email for good; anything else
// (no account, or an unverified one) yields a fresh hash and verification
// secret for the store to apply atomically.
func NewSignupRequest(body SignupBody, existing *Account) (*SignupRequest, error) {
	if existing != nil && existing.Verified {
		return nil, &AlreadyVerifiedError{Email: existing.Email}
	}

	email := NormalizeEmail(body.Email)
	if err := password.Validate(body.Password); err != nil {
		var policy *password.PolicyError
		if errors.As(err, &policy) {
			return nil, &PasswordPolicyError{Reason: policy.Reason}
		}
		return nil, err
	}
	hash, err := password.Hash(body.Password)
	if err != nil {
		return nil, err
	}
	code, ciphertext, err := secret.Generate(email)
	if err != nil {
		return nil, err
	}
	return &SignupRequest{
		Email:                  email,
		PasswordHash:           hash,
		VerificationPlaintext:  code,
		VerificationCiphertext: ciphertext,
	}, nil
}

// VerifyEmailBody is the decoded verify-email payload. Codes have at most
// 8 digits.
type VerifyEmailBody struct {
	Email string `json:"email" validate:"required,email"`
	Code  uint32 `json:"code" validate:"required,lt=100000000"`
}

// VerifyAccountRequest carries the account to mark verified once the
// submitted code checked out.
type VerifyAccountRequest struct {
	AccountID string
}

// NewVerifyAccountRequest validates a submitted code against the account and
// its active ticket. A missing ticket, an expired ticket and a wrong code are
// indistinguishable from the outside: all surface ErrInvalidVerificationCode.
func NewVerifyAccountRequest(body VerifyEmailBody, account *Account, ticket *VerificationTicket) (*VerifyAccountRequest, error) {
	if account.Verified {
		return nil, &AlreadyVerifiedError{Email: account.Email}
	}
	if ticket == nil {
		return nil, ErrInvalidVerificationCode
	}
	if ticket.Expired(time.Now().UTC()) {
		return nil, ErrInvalidVerificationCode
	}
	if err := secret.Verify(body.Code, account.Email, ticket.Ciphertext); err != nil {
		return nil, ErrInvalidVerificationCode
	}
	return &VerifyAccountRequest{AccountID: account.AccountID}, nil
}

// NormalizeEmail trims and lowercases an email address. Every lookup and
// every secret binding goes through the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
