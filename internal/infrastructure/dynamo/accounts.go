package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/soko/identity-api/internal/domain"
	"github.com/soko/identity-api/internal/pkg/id"
)

// AccountRepo provides typed DynamoDB operations for the accounts and
// verification_tickets tables. The compound operations (signup, reset,
// confirm) run as TransactWriteItems so the one-active-ticket invariant
// holds under concurrent requests.
type AccountRepo struct {
	client        *dynamodb.Client
	accountsTable string
	ticketsTable  string
}

func NewAccountRepo(client *dynamodb.Client, accountsTable, ticketsTable string) *AccountRepo {
	return &AccountRepo{client: client, accountsTable: accountsTable, ticketsTable: ticketsTable}
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.accountsTable),
		Key:       strKey("account_id", accountID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.accountsTable),
		IndexName:                 aws.String("email-index"),
		KeyConditionExpression:    aws.String("email = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account for email %s: %w", email, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmailWithActiveTicket returns the account and its active ticket, or a
// nil ticket when none is active.
func (r *AccountRepo) GetByEmailWithActiveTicket(ctx context.Context, email string) (*domain.Account, *domain.VerificationTicket, error) {
	account, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	ticket, err := r.activeTicket(ctx, account.AccountID)
	if err != nil {
		return nil, nil, err
	}
	return account, ticket, nil
}

// CreateWithTicket inserts the account row together with its first active
// ticket. The condition on account_id guards against a concurrent signup for
// the same fresh email winning the race.
func (r *AccountRepo) CreateWithTicket(ctx context.Context, req *domain.SignupRequest) (*domain.Account, error) {
	now := time.Now().UTC()
	account := &domain.Account{
		AccountID:    id.New(),
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	accountItem, err := attributevalue.MarshalMap(account)
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}
	ticketItem, err := attributevalue.MarshalMap(r.newTicket(account.AccountID, req.VerificationCiphertext, now))
	if err != nil {
		return nil, fmt.Errorf("marshal ticket: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.accountsTable),
				Item:                accountItem,
				ConditionExpression: aws.String("attribute_not_exists(account_id)"),
			}},
			{Put: &types.Put{
				TableName: aws.String(r.ticketsTable),
				Item:      ticketItem,
			}},
		},
	})
	if err != nil {
		return nil, asDomainErr(err, "create account with ticket")
	}
	return account, nil
}

// ResetSignup re-runs the signup for an existing unverified account: new
// password hash, prior active ticket cancelled, fresh active ticket inserted.
// All three writes commit or none do.
func (r *AccountRepo) ResetSignup(ctx context.Context, accountID string, req *domain.SignupRequest) (*domain.Account, error) {
	now := time.Now().UTC()
	active, err := r.activeTicket(ctx, accountID)
	if err != nil {
		return nil, err
	}

	items := make([]types.TransactWriteItem, 0, 3)

	accountUpdate, err := buildUpdateExpr(map[string]interface{}{
		"password_hash": req.PasswordHash,
		"updated_at":    now,
	})
	if err != nil {
		return nil, err
	}
	items = append(items, types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(r.accountsTable),
		Key:                       strKey("account_id", accountID),
		UpdateExpression:          aws.String(accountUpdate.Expr),
		ExpressionAttributeNames:  accountUpdate.Names,
		ExpressionAttributeValues: accountUpdate.Values,
		ConditionExpression:       aws.String("attribute_exists(account_id)"),
	}})

	if active != nil {
		cancel, err := r.ticketStatusUpdate(active, domain.TicketCancelled, now)
		if err != nil {
			return nil, err
		}
		items = append(items, *cancel)
	}

	ticketItem, err := attributevalue.MarshalMap(r.newTicket(accountID, req.VerificationCiphertext, now))
	if err != nil {
		return nil, fmt.Errorf("marshal ticket: %w", err)
	}
	items = append(items, types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.ticketsTable),
		Item:      ticketItem,
	}})

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return nil, asDomainErr(err, "reset signup")
	}
	return r.Get(ctx, accountID)
}

// ConfirmVerification marks the account verified and its active ticket
// confirmed in one transaction.
func (r *AccountRepo) ConfirmVerification(ctx context.Context, accountID string) (*domain.Account, error) {
	now := time.Now().UTC()
	active, err := r.activeTicket(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fmt.Errorf("no active ticket for account %s: %w", accountID, domain.ErrConflict)
	}

	accountUpdate, err := buildUpdateExpr(map[string]interface{}{
		"verified":   true,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	confirm, err := r.ticketStatusUpdate(active, domain.TicketConfirmed, now)
	if err != nil {
		return nil, err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(r.accountsTable),
				Key:                       strKey("account_id", accountID),
				UpdateExpression:          aws.String(accountUpdate.Expr),
				ExpressionAttributeNames:  accountUpdate.Names,
				ExpressionAttributeValues: accountUpdate.Values,
				ConditionExpression:       aws.String("attribute_exists(account_id)"),
			}},
			*confirm,
		},
	})
	if err != nil {
		return nil, asDomainErr(err, "confirm verification")
	}
	return r.Get(ctx, accountID)
}

func (r *AccountRepo) newTicket(accountID, ciphertext string, now time.Time) *domain.VerificationTicket {
	return &domain.VerificationTicket{
		TicketID:   id.New(),
		AccountID:  accountID,
		Ciphertext: ciphertext,
		Status:     domain.TicketActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// activeTicket returns the account's active ticket, nil when there is none.
func (r *AccountRepo) activeTicket(ctx context.Context, accountID string) (*domain.VerificationTicket, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.ticketsTable),
		KeyConditionExpression: aws.String("account_id = :a"),
		FilterExpression:       aws.String("#s = :active"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a":      &types.AttributeValueMemberS{Value: accountID},
			":active": &types.AttributeValueMemberS{Value: string(domain.TicketActive)},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var t domain.VerificationTicket
	if err := attributevalue.UnmarshalMap(out.Items[0], &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ticketStatusUpdate builds the conditional transition of a ticket out of
// the active status. The condition keeps terminal tickets terminal even if
// a concurrent transaction got there first.
func (r *AccountRepo) ticketStatusUpdate(t *domain.VerificationTicket, to domain.TicketStatus, now time.Time) (*types.TransactWriteItem, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"status":     string(to),
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	ue.Names["#cond"] = "status"
	ue.Values[":active"] = &types.AttributeValueMemberS{Value: string(domain.TicketActive)}
	return &types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(r.ticketsTable),
		Key:                       compositeKey("account_id", t.AccountID, "ticket_id", t.TicketID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("#cond = :active"),
	}}, nil
}

// asDomainErr maps a cancelled transaction (a lost race) to ErrConflict and
// passes everything else through with context.
func asDomainErr(err error, op string) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return fmt.Errorf("%s: transaction canceled: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
