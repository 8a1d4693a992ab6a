package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/token"
	"github.com/otp-auth-api/internal/application/user"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/otp-auth-api/internal/transport/http/middleware"
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	otpSvc := otp.NewService(deps.OTPRepo, deps.Dispatcher,
		cfg.OTPDigits, cfg.OTPExpiryMinutes, cfg.OTPMaxAttempts, cfg.OTPRetentionMinutes)
	tokenSvc := token.NewService(deps.JWTProvider, deps.TokenRepo, deps.UserRepo)
	userSvc := user.NewService(deps.UserRepo, otpSvc, tokenSvc)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc)
	userH := handler.NewUserHandler(userSvc)
	sessionH := handler.NewSessionHandler(userSvc, tokenSvc)
	fileH := handler.NewFileHandler(deps.S3Store)

	authMw := appmiddleware.Auth(tokenSvc)

	// 5 requests/second, burst of 10, applied to the public code-issuing and
	// code-checking endpoints on top of the per-identifier cooldown.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/otp/request", otpH.Request)
		r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)
		r.Get("/otp/status", otpH.Status)

		r.With(sensitiveRL.Limit).Post("/users/register", userH.Register)
		r.With(sensitiveRL.Limit).Post("/users/verify-registration", userH.VerifyRegistration)

		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/verify-login", sessionH.VerifyLogin)
		r.Post("/sessions/refresh", sessionH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/me", userH.Me)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Post("/sessions/logout-all", sessionH.LogoutAll)
			r.Post("/files/images", fileH.UploadImage)
		})
	})

	return r
}
