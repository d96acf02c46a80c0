package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/soko/identity-api/internal/domain"
	"github.com/soko/identity-api/internal/pkg/id"
)

// AccessTokenRepo provides typed DynamoDB operations for the access_tokens
// table. Quota enforcement piggybacks on the owning account row: the insert
// transaction bumps the account's token_seq under a condition on the value
// read during the count, so two concurrent creations cannot both slip under
// the ceiling.
type AccessTokenRepo struct {
	client        *dynamodb.Client
	tokensTable   string
	accountsTable string
}

func NewAccessTokenRepo(client *dynamodb.Client, tokensTable, accountsTable string) *AccessTokenRepo {
	return &AccessTokenRepo{client: client, tokensTable: tokensTable, accountsTable: accountsTable}
}

// Create counts the account's active tokens and inserts the new row if the
// count is below maxActive. Returns TokenLimitError at the ceiling and
// ErrConflict when a concurrent creation invalidated the count.
func (r *AccessTokenRepo) Create(ctx context.Context, req *domain.CreateAccessTokenRequest, maxActive int) (*domain.AccessToken, error) {
	now := time.Now().UTC()

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.accountsTable),
		Key:       strKey("account_id", req.AccountID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account %s: %w", req.AccountID, domain.ErrNotFound)
	}
	var account domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &account); err != nil {
		return nil, err
	}

	active, err := r.countActive(ctx, req.AccountID, now)
	if err != nil {
		return nil, err
	}
	if active >= maxActive {
		return nil, &domain.TokenLimitError{Max: maxActive}
	}

	token := &domain.AccessToken{
		TokenID:    id.New(),
		AccountID:  req.AccountID,
		Name:       req.Name,
		MAC:        req.MAC,
		CreatedAt:  now,
		UpdatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  req.ExpiresAt,
	}
	item, err := attributevalue.MarshalMap(token)
	if err != nil {
		return nil, fmt.Errorf("marshal access token: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:        aws.String(r.accountsTable),
				Key:              strKey("account_id", req.AccountID),
				UpdateExpression: aws.String("SET token_seq = :next"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":next": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", account.TokenSeq+1)},
					":seen": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", account.TokenSeq)},
				},
				ConditionExpression: aws.String("token_seq = :seen"),
			}},
			{Put: &types.Put{
				TableName: aws.String(r.tokensTable),
				Item:      item,
			}},
		},
	})
	if err != nil {
		return nil, asDomainErr(err, "create access token")
	}
	return token, nil
}

// countActive counts the account's non-revoked, non-expired tokens at now.
func (r *AccessTokenRepo) countActive(ctx context.Context, accountID string, now time.Time) (int, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tokensTable),
		KeyConditionExpression: aws.String("account_id = :a"),
		FilterExpression:       aws.String("attribute_not_exists(revoked_at) AND expires_at > :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a":   &types.AttributeValueMemberS{Value: accountID},
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return 0, err
	}
	return int(out.Count), nil
}
