package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-health-navigator/internal/api"
	"ai-health-navigator/internal/app"
	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/notify"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.APIJWTSecret == "" {
		log.Fatal("API_JWT_SECRET environment variable not set")
	}

	ctx := context.Background()

	// Notices wait in the inbox until the browser polls /v1/notices.
	inbox := notify.NewInbox(0)
	application, cleanup, err := app.Bootstrap(ctx, cfg, notify.Multi{notify.LogSink{}, inbox})
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(application, inbox, []byte(cfg.APIJWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Health API listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = srv.Shutdown(ctxShutdown)
	// Pending auto-advances must not write after cleanup closes the store.
	application.Registry().Close()
	if err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
