package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"verified":   true,
		"updated_at": time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		"email":      "alice@example.com",
	}

	ue, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	// Fields are emitted in sorted order.
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue.Expr)
	assert.Equal(t, map[string]string{
		"#f0": "email",
		"#f1": "updated_at",
		"#f2": "verified",
	}, ue.Names)

	email, ok := ue.Values[":v0"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", email.Value)

	verified, ok := ue.Values[":v2"].(*types.AttributeValueMemberBOOL)
	require.True(t, ok)
	assert.True(t, verified.Value)

	// Same input yields the identical expression on every call.
	again, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	assert.Equal(t, ue.Expr, again.Expr)
	assert.Equal(t, ue.Names, again.Names)
}

func TestBuildUpdateExpr_Empty(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.Error(t, err)
}

func TestStrKey(t *testing.T) {
	key := strKey("account_id", "account-1")
	require.Len(t, key, 1)
	v, ok := key["account_id"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "account-1", v.Value)
}

func TestCompositeKey(t *testing.T) {
	key := compositeKey("account_id", "account-1", "ticket_id", "ticket-1")
	require.Len(t, key, 2)
	pk, ok := key["account_id"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "account-1", pk.Value)
	sk, ok := key["ticket_id"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "ticket-1", sk.Value)
}
