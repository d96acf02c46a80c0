package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort lexicographically by creation
// time, which keeps account, ticket and token keys naturally ordered in
// DynamoDB range queries.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
