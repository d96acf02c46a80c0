package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soko/identity-api/internal/pkg/password"
	"github.com/soko/identity-api/internal/pkg/secret"
)

const validPassword = "Ab12!!cdEf"

func TestNewSignupRequest_FreshEmail(t *testing.T) {
	req, err := NewSignupRequest(SignupBody{Email: "  Alice@Example.COM ", Password: validPassword}, nil)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", req.Email)
	assert.NoError(t, password.Verify(validPassword, req.PasswordHash))
	assert.NoError(t, secret.Verify(req.VerificationPlaintext, req.Email, req.VerificationCiphertext))
}

func TestNewSignupRequest_UnverifiedAccountGetsFreshCredentials(t *testing.T) {
	existing := &Account{AccountID: "account-1", Email: "alice@example.com", Verified: false}

	req, err := NewSignupRequest(SignupBody{Email: "alice@example.com", Password: validPassword}, existing)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", req.Email)
	assert.NotEmpty(t, req.VerificationCiphertext)
}

func TestNewSignupRequest_VerifiedAccountIsRejected(t *testing.T) {
	existing := &Account{AccountID: "account-1", Email: "alice@example.com", Verified: true}

	// Rejected regardless of the submitted credentials.
	for _, pw := range []string{validPassword, "short"} {
		_, err := NewSignupRequest(SignupBody{Email: "alice@example.com", Password: pw}, existing)
		var verified *AlreadyVerifiedError
		require.ErrorAs(t, err, &verified)
		assert.Equal(t, "alice@example.com", verified.Email)
	}
}

func TestNewSignupRequest_PasswordPolicyApplies(t *testing.T) {
	_, err := NewSignupRequest(SignupBody{Email: "alice@example.com", Password: "weak"}, nil)
	var policy *PasswordPolicyError
	assert.ErrorAs(t, err, &policy)
}

// verifyFixture generates a real code bound to the account email and returns
// the matching active ticket.
func verifyFixture(t *testing.T, email string, createdAt time.Time) (*Account, *VerificationTicket, uint32) {
	t.Helper()
	code, ciphertext, err := secret.Generate(email)
	require.NoError(t, err)
	account := &Account{AccountID: "account-1", Email: email}
	ticket := &VerificationTicket{
		TicketID:   "ticket-1",
		AccountID:  account.AccountID,
		Ciphertext: ciphertext,
		Status:     TicketActive,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	return account, ticket, code
}

func TestNewVerifyAccountRequest_Success(t *testing.T) {
	account, ticket, code := verifyFixture(t, "alice@example.com", time.Now().UTC().Add(-14*time.Minute-59*time.Second))

	req, err := NewVerifyAccountRequest(VerifyEmailBody{Email: account.Email, Code: code}, account, ticket)
	require.NoError(t, err)
	assert.Equal(t, "account-1", req.AccountID)
}

func TestNewVerifyAccountRequest_AlreadyVerified(t *testing.T) {
	account, ticket, code := verifyFixture(t, "alice@example.com", time.Now().UTC())
	account.Verified = true

	_, err := NewVerifyAccountRequest(VerifyEmailBody{Email: account.Email, Code: code}, account, ticket)
	var verified *AlreadyVerifiedError
	assert.ErrorAs(t, err, &verified)
}

func TestNewVerifyAccountRequest_FailuresAreIndistinguishable(t *testing.T) {
	now := time.Now().UTC()

	account, ticket, code := verifyFixture(t, "alice@example.com", now)
	wrongCode := (code + 1) % 100_000_000
	_, wrongCodeErr := NewVerifyAccountRequest(VerifyEmailBody{Email: account.Email, Code: wrongCode}, account, ticket)

	_, noTicketErr := NewVerifyAccountRequest(VerifyEmailBody{Email: account.Email, Code: code}, account, nil)

	expiredAccount, expiredTicket, expiredCode := verifyFixture(t, "alice@example.com", now.Add(-16*time.Minute))
	_, expiredErr := NewVerifyAccountRequest(VerifyEmailBody{Email: account.Email, Code: expiredCode}, expiredAccount, expiredTicket)

	// Wrong code, missing ticket and expired ticket collapse to one error.
	assert.ErrorIs(t, wrongCodeErr, ErrInvalidVerificationCode)
	assert.ErrorIs(t, noTicketErr, ErrInvalidVerificationCode)
	assert.ErrorIs(t, expiredErr, ErrInvalidVerificationCode)
	assert.Equal(t, wrongCodeErr.Error(), noTicketErr.Error())
	assert.Equal(t, wrongCodeErr.Error(), expiredErr.Error())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  ALICE@Example.Com\t"))
	assert.Equal(t, "bob@example.com", NormalizeEmail("bob@example.com"))
}
