package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ampa/internal/config"
	"ampa/internal/database"
	"ampa/internal/handlers"
	"ampa/internal/repository"
	"ampa/internal/security"
	"ampa/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()
	ctx := context.Background()

	// Initialize database with config (supports sqlite, postgres, mysql)
	handlers.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)
	handlers.CompleteStep(handlers.StepDatabase)

	// Run migrations
	handlers.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")
	handlers.CompleteStep(handlers.StepMigrations)

	// Initialize repositories
	handlers.SetCurrentStep(handlers.StepServices)
	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.SessionDuration)
	userService := service.NewUserService(userRepo)
	familyService := service.NewFamilyService(familyRepo)
	transferService := service.NewTransferService(familyRepo)
	reportService := service.NewReportService(familyRepo)

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug)
	if err != nil {
		log.Printf("Warning: Failed to initialize email service: %v", err)
	}
	var mailer service.CardMailer
	if emailService != nil {
		mailer = emailService
	}
	cardService := service.NewCardService(familyRepo, mailer, cfg.CardSigningSecret, cfg.CardTokenTTL, cfg.AppBaseURL)

	gemini, err := service.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Printf("Warning: AI summaries disabled: %v", err)
	}
	var summarizer service.Summarizer
	if gemini != nil {
		summarizer = gemini
	}
	summaryService := service.NewSummaryService(familyRepo, summarizer)
	handlers.CompleteStep(handlers.StepServices)

	handlers.SetCurrentStep(handlers.StepBootstrap)
	if _, err := userService.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword, cfg.BootstrapAdminName); err != nil {
		log.Fatalf("Failed to create bootstrap administrator: %v", err)
	}
	handlers.CompleteStep(handlers.StepBootstrap)

	// Rate limit login attempts per client address
	loginLimiter := security.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow).TrustProxyHeaders(cfg.TrustProxy)

	router := &handlers.Router{
		Middleware:   handlers.NewMiddleware(authService),
		Auth:         handlers.NewAuthHandler(authService, cfg.SessionDuration, cfg.CookieSecure),
		Families:     handlers.NewFamilyHandler(familyService, cardService, summaryService),
		Users:        handlers.NewUserHandler(userService),
		Transfer:     handlers.NewTransferHandler(transferService),
		Dashboard:    handlers.NewDashboardHandler(reportService),
		LoginLimiter: loginLimiter,
	}

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background cleanup
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go runCleanup(cleanupCtx, authService, loginLimiter)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	handlers.MarkReady()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

// runCleanup removes expired sessions and stale rate limiter entries hourly
func runCleanup(ctx context.Context, authService *service.AuthService, limiter *security.RateLimiter) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authService.CleanupExpiredSessions(ctx); err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
			}
			limiter.Cleanup()
		}
	}
}
