package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/soko/identity-api/internal/application/account"
	"github.com/soko/identity-api/internal/application/token"
	"github.com/soko/identity-api/internal/config"
	"github.com/soko/identity-api/internal/transport/http/handler"
	appmiddleware "github.com/soko/identity-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10. All three endpoints mint or check
	// credentials, so they are all rate limited per IP.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		Mailer:      deps.Mailer,
	})
	tokenSvc := token.NewService(token.ServiceDeps{
		AccountRepo:     deps.AccountRepo,
		TokenRepo:       deps.TokenRepo,
		HMACSecret:      cfg.TokenHMACSecret,
		MaxActiveTokens: cfg.MaxActiveTokens,
	})

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(accountSvc)
	tokenH := handler.NewTokenHandler(tokenSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/accounts/signup", accountH.Signup)
		r.With(sensitiveRL.Limit).Post("/accounts/verify-email", accountH.VerifyEmail)
		r.With(sensitiveRL.Limit).Post("/tokens", tokenH.Create)
	})

	return r
}
