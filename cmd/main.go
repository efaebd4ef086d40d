package main

import (
	"buddychat/backend/internal/api/handler"
	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/companion"
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/localization"
	"buddychat/backend/internal/storage"
	"buddychat/backend/internal/telegram"
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	log.Println("Starting BuddyChat Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Сховища
	stores, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.Close()

	localizer, err := localization.NewDefault("en")
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// 2. Координатор
	hub := chathub.NewManagerService(stores.Ephemeral, stores.Durable)
	hub.SetLocalizer(localizer, cfg.Language)
	if cfg.Completions.Enabled() {
		provider := companion.NewOpenAI(&http.Client{}, cfg.Completions.URL, cfg.Completions.APIKey, cfg.Completions.Model)
		hub.SetCompanion(provider, cfg.Completions.SystemPrompt, cfg.Completions.Timeout)
		log.Printf("INFO: Automated partner enabled (model %s).", cfg.Completions.Model)
	} else {
		log.Println("WARNING: No completions API key, fallback sessions will get an unavailable notice.")
	}

	// 3. Telegram, якщо налаштовано
	if cfg.Telegram.Token != "" {
		botService, err := telegram.NewBotService(cfg.Telegram, hub, localizer, cfg.Language)
		if err != nil {
			log.Fatalf("Failed to start Telegram bot: %v", err)
		}
		go botService.Run(ctx)
	}

	// 4. HTTP
	r := gin.Default()
	h := handler.NewHandler(hub, handler.NewTokenIssuer(cfg.Auth))
	h.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        c.Handler(r),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.Completions.Timeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("INFO: Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Graceful shutdown failed: %v", err)
	}
}
