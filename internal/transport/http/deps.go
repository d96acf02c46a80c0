package http

import (
	"github.com/soko/identity-api/internal/infrastructure/dynamo"
	"github.com/soko/identity-api/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo *dynamo.AccountRepo
	TokenRepo   *dynamo.AccessTokenRepo
	Mailer      smtp.Mailer
}
