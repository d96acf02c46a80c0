package domain

import (
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a verification ticket.
// Cancelled and confirmed are terminal.
type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCancelled TicketStatus = "cancelled"
	TicketConfirmed TicketStatus = "confirmed"
)

// VerificationTTL is how long an active ticket stays usable after creation.
// An expired ticket is not transitioned automatically; only a new signup
// attempt cancels it.
const VerificationTTL = 15 * time.Minute

// VerificationTicket tracks one issued verification secret for an account.
// At most one ticket per account is active at any time; the store enforces
// that within the signup transaction.
type VerificationTicket struct {
	TicketID   string       `json:"id" dynamodbav:"ticket_id"`
	AccountID  string       `json:"account_id" dynamodbav:"account_id"`
	Ciphertext string       `json:"-" dynamodbav:"ciphertext"`
	Status     TicketStatus `json:"status" dynamodbav:"status"`
	CreatedAt  time.Time    `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" dynamodbav:"updated_at"`
}

// Confirm transitions an active ticket to confirmed.
func (t *VerificationTicket) Confirm() error {
	return t.transition(TicketConfirmed)
}

// Cancel transitions an active ticket to cancelled.
func (t *VerificationTicket) Cancel() error {
	return t.transition(TicketCancelled)
}

func (t *VerificationTicket) transition(to TicketStatus) error {
	if t.Status != TicketActive {
		return fmt.Errorf("ticket %s is %s, cannot transition to %s: %w",
			t.TicketID, t.Status, to, ErrConflict)
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Expired reports whether the ticket is past its verification window at now.
// Expiry is a derived predicate, not a status.
func (t *VerificationTicket) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > VerificationTTL
}
