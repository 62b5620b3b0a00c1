package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shehryarbajwa/docdesk/internal/api"
	"github.com/shehryarbajwa/docdesk/internal/blob"
	"github.com/shehryarbajwa/docdesk/internal/config"
	"github.com/shehryarbajwa/docdesk/internal/ratelimit"
	"github.com/shehryarbajwa/docdesk/internal/session"
	"github.com/shehryarbajwa/docdesk/internal/stream"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("Starting docdesk...")

	blobs := blob.NewStore()

	sessionMgr := session.NewManager(blobs, session.Options{
		UploadDelay:       cfg.UploadDelay,
		MaxPendingUploads: cfg.MaxPendingUploads,
	}, cfg.SessionTimeout)
	defer sessionMgr.Close()
	log.Printf("✓ Session manager initialized (upload delay %s, timeout %s)", cfg.UploadDelay, cfg.SessionTimeout)

	streamServer := stream.NewServer(sessionMgr)
	log.Println("✓ Event stream initialized")

	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerHour, cfg.RateLimitBurst)
	log.Printf("✓ Rate limiter initialized (%d req/hour per session)", cfg.RateLimitPerHour)

	handler := api.NewHandler(sessionMgr, rateLimiter, api.Options{
		MaxUploadMemory: cfg.MaxUploadMemory,
		CanvasWidth:     cfg.CanvasWidth,
		CanvasHeight:    cfg.CanvasHeight,
	})
	router := handler.SetupRoutes(streamServer)
	log.Println("✓ HTTP routes configured")

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("⏳ Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
