package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plethora-backend/internal/captcha"
	"plethora-backend/internal/config"
	"plethora-backend/internal/database"
	"plethora-backend/internal/email"
	"plethora-backend/internal/handlers"
	"plethora-backend/internal/magiclink"
	customMiddleware "plethora-backend/internal/middleware"
	"plethora-backend/internal/ratelimit"
	"plethora-backend/internal/repository"
	"plethora-backend/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Connect to MongoDB
	db, err := database.Connect(cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepo(db.Database())
	tokenRepo := repository.NewAuthTokenRepo(db.Database())
	campaignRepo := repository.NewCampaignRepo(db.Database())
	reviewRepo := repository.NewReviewRepo(db.Database())
	magicLinkRepo := repository.NewMagicLinkRepo(db.Database())

	// Ensure indexes
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create user indexes: %v", err)
	}
	if err := tokenRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create token indexes: %v", err)
	}
	if err := campaignRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create campaign indexes: %v", err)
	}
	if err := reviewRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create review indexes: %v", err)
	}
	if err := magicLinkRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create magic link indexes: %v", err)
	}
	cancel()

	// Core services
	dispatcher := webhook.NewDispatcher(campaignRepo, cfg.WebhookTimeout)
	magicLinks := magiclink.NewService(cfg.JWTSecret, cfg.BaseURL, magicLinkRepo, reviewRepo, dispatcher)
	guard := ratelimit.NewGuard(reviewRepo)
	mailer := email.NewMailer(cfg.ResendAPIKey, cfg.FromEmail)

	var verifier captcha.Verifier
	if cfg.HCaptchaSecret != "" {
		verifier = captcha.NewHCaptcha(cfg.HCaptchaSecret)
	} else {
		log.Println("⚠️  HCAPTCHA_SECRET_KEY not set, using mock captcha verifier")
		verifier = captcha.NewMock()
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(tokenRepo, userRepo, mailer, cfg.JWTSecret, cfg.BaseURL)
	userHandler := handlers.NewUserHandler(userRepo)
	campaignHandler := handlers.NewCampaignHandler(campaignRepo)
	reviewHandler := handlers.NewReviewHandler(reviewRepo, campaignRepo, userRepo, verifier, guard, dispatcher)
	magicLinkHandler := handlers.NewMagicLinkHandler(magicLinks, magicLinkRepo, campaignRepo, mailer)
	webhookHandler := handlers.NewWebhookHandler(campaignRepo, dispatcher)
	widgetHandler := handlers.NewWidgetHandler(campaignRepo, reviewRepo)

	// Setup chi router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"plethora-backend"}`))
	})

	// Public routes (no auth required)
	r.Post("/auth/request", authHandler.RequestLogin)
	r.Get("/auth/verify", authHandler.VerifyToken)

	r.Get("/r/{token}", magicLinkHandler.Verify)
	r.Post("/r/{token}", magicLinkHandler.Consume)

	r.Post("/campaigns/{campaignID}/reviews/anonymous", reviewHandler.SubmitAnonymous)

	r.Get("/widget/{campaignID}", widgetHandler.Get)
	r.Options("/widget/{campaignID}", widgetHandler.Options)

	// Protected routes (JWT required)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.JWTAuth(cfg.JWTSecret))

		r.Get("/user/me", userHandler.GetMe)

		r.Post("/campaigns", campaignHandler.Create)
		r.Get("/campaigns", campaignHandler.List)
		r.Get("/campaigns/{campaignID}", campaignHandler.Get)
		r.Put("/campaigns/{campaignID}", campaignHandler.Update)
		r.Delete("/campaigns/{campaignID}", campaignHandler.Delete)

		r.Post("/campaigns/{campaignID}/reviews", reviewHandler.SubmitAuthenticated)
		r.Get("/campaigns/{campaignID}/reviews", reviewHandler.List)
		r.Get("/campaigns/{campaignID}/reviews/export", reviewHandler.ExportCSV)
		r.Patch("/campaigns/{campaignID}/reviews/{reviewID}/status", reviewHandler.UpdateStatus)
		r.Patch("/campaigns/{campaignID}/reviews/{reviewID}/flag", reviewHandler.Flag)
		r.Delete("/campaigns/{campaignID}/reviews/{reviewID}", reviewHandler.Delete)

		r.Post("/campaigns/{campaignID}/magic-links", magicLinkHandler.Create)
		r.Post("/campaigns/{campaignID}/magic-links/bulk", magicLinkHandler.CreateBulk)
		r.Get("/campaigns/{campaignID}/magic-links", magicLinkHandler.List)
		r.Get("/campaigns/{campaignID}/magic-links/stats", magicLinkHandler.Stats)
		r.Delete("/campaigns/{campaignID}/magic-links/{linkID}", magicLinkHandler.Delete)

		r.Post("/campaigns/{campaignID}/webhooks", webhookHandler.Add)
		r.Put("/campaigns/{campaignID}/webhooks/{webhookID}", webhookHandler.Update)
		r.Delete("/campaigns/{campaignID}/webhooks/{webhookID}", webhookHandler.Delete)
		r.Post("/campaigns/{campaignID}/webhooks/{webhookID}/test", webhookHandler.Test)
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server
	go func() {
		log.Printf("🚀 Plethora backend starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then release the
	// database connection.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("🛑 Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	if err := db.Close(shutdownCtx); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
