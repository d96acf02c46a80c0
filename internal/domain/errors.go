package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// ErrInvalidVerificationCode is the single outcome for every verification
// failure: missing ticket, expired ticket, wrong code, undecodable ciphertext.
// Collapsing them is deliberate: distinct errors would give callers an
// account-enumeration oracle.
var ErrInvalidVerificationCode = errors.New("invalid verification code")

// ErrInvalidPassword is returned when a password re-check fails during access
// token creation. Maps to unauthorized, never to a field-level message.
var ErrInvalidPassword = errors.New("invalid password")

// ErrInvalidName rejects an empty or over-long access token name.
var ErrInvalidName = errors.New("name must not be empty and must be at most 40 characters long")

// ErrInvalidLifetime rejects an access token lifetime outside (0, 90 days].
var ErrInvalidLifetime = errors.New("lifetime must be more than 0 and at most 90 days in seconds")

// AlreadyVerifiedError is returned when a signup or verification targets an
// email that already belongs to a completed signup.
type AlreadyVerifiedError struct {
	Email string
}

func (e *AlreadyVerifiedError) Error() string {
	return fmt.Sprintf("a verified account already exists for email: %s", e.Email)
}

func (e *AlreadyVerifiedError) Unwrap() error { return ErrConflict }

// TokenLimitError is surfaced by the access token store when an account is at
// its active token ceiling at the moment of insertion.
type TokenLimitError struct {
	Max int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("account has reached its active access token limit: %d", e.Max)
}

func (e *TokenLimitError) Unwrap() error { return ErrConflict }

// PasswordPolicyError reports which password rule was violated. The reason is
// safe to surface as a field-level validation message.
type PasswordPolicyError struct {
	Reason string
}

func (e *PasswordPolicyError) Error() string { return e.Reason }

func (e *PasswordPolicyError) Unwrap() error { return ErrBadRequest }
