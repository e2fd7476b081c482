package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tkaraba/slotbook/internal/auth"
	"github.com/tkaraba/slotbook/internal/background"
	"github.com/tkaraba/slotbook/internal/config"
	"github.com/tkaraba/slotbook/internal/database"
	"github.com/tkaraba/slotbook/internal/handlers"
	"github.com/tkaraba/slotbook/internal/metrics"
	"github.com/tkaraba/slotbook/internal/middleware"
	"github.com/tkaraba/slotbook/internal/repositories"
	"github.com/tkaraba/slotbook/internal/routes"
	"github.com/tkaraba/slotbook/internal/services"
	pkghttp "github.com/tkaraba/slotbook/pkg/http"
	pkglogger "github.com/tkaraba/slotbook/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run schema migrations before opening the pool
	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	refreshRepo := repositories.NewRefreshTokenRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Token manager and auth policies
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	lockoutPolicy := auth.LockoutPolicy{
		Threshold: cfg.Auth.LockoutThreshold,
		Cap:       cfg.Auth.LockoutCap,
	}
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandMs,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.VerificationURLBase,
		cfg.Email.ResetURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Services
	emailVerificationService := services.NewEmailVerificationService(
		verificationRepo,
		userRepo,
		emailService,
		logger,
		time.Duration(cfg.Email.TokenExpiryHours)*time.Hour,
	)
	passwordResetService := services.NewPasswordResetService(
		resetRepo,
		userRepo,
		refreshRepo,
		emailService,
		logger,
		time.Hour,
	)
	tokenService := services.NewTokenService(refreshRepo, userRepo, tokenManager, logger, auditLogger, m)
	authService := services.NewAuthService(
		userRepo,
		tokenService,
		lockoutPolicy,
		timingDelay,
		emailVerificationService,
		logger,
		auditLogger,
		m,
	)

	// Handlers
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Path:     "/auth",
		Secure:   cfg.CookiesSecure(),
		SameSite: cfg.Auth.CookieSameSite,
	}
	authHandler := handlers.NewAuthHandler(authService, emailVerificationService, passwordResetService, cookieConfig)

	// Background sweep of expired rows
	cleanupManager := background.NewCleanupManager(
		[]background.SweepTarget{
			{Name: "refresh_tokens", Repo: refreshRepo},
			{Name: "password_reset_tokens", Repo: resetRepo},
			{Name: "email_verification_tokens", Repo: verificationRepo},
		},
		logger,
		m,
		cfg.Auth.CleanupInterval,
	)

	// Router
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	corsConfig := middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(corsConfig))
	router.Use(middleware.SecureLogger(logger, ipConfig))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}

	routes.RegisterRoutes(router, authHandler, tokenManager, userRepo, registry, healthCheck)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
