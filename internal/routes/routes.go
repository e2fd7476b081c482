package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkaraba/slotbook/internal/auth"
	"github.com/tkaraba/slotbook/internal/handlers"
	"github.com/tkaraba/slotbook/internal/middleware"
	"github.com/tkaraba/slotbook/internal/repositories"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	registry *prometheus.Registry,
	healthCheck http.HandlerFunc,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public auth routes. Credential and token endpoints carry an IP rate
	// limit on top of the per-account lockout.
	router.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/register", authHandler.Register)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/login", authHandler.Login)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password/validate", authHandler.ValidateResetToken)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/reset-password", authHandler.ResetPassword)

		r.Post("/verify-email", authHandler.VerifyEmail)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/resend-verification", authHandler.ResendVerification)

		// Protected routes - authentication required
		r.Group(func(pr chi.Router) {
			pr.Use(auth.AuthMiddleware(tokenManager, userRepo))
			pr.Get("/me", authHandler.Me)
		})
	})

	router.Get("/health", healthCheck)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
