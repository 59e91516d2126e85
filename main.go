package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/middleware"
	"github.com/primesmshub/sms-hub-api/models"
)

const shutdownTimeout = 15 * time.Second

// webhookRegistrar is implemented by messengers that receive updates over a webhook
type webhookRegistrar interface {
	SetWebhook(ctx context.Context, url string) error
}

func main() {
	log.Println("Starting Prime SMS Hub API server...")
	if err := run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	log.Println("Database migration completed successfully")

	rdb, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	ext := newExternals(ctx, cfg, logger)
	app, err := newApplication(cfg, db, rdb, ext, logger)
	if err != nil {
		return err
	}
	app.auth = middleware.EnsureValidToken(cfg)

	if registrar, ok := ext.messenger.(webhookRegistrar); ok && cfg.TelegramEnabled() && cfg.ServerURL != "" {
		if err := registrar.SetWebhook(ctx, cfg.ServerURL+cfg.BotWebhookPath()); err != nil {
			logger.Error("failed to register telegram webhook", "error", err)
		} else {
			logger.Info("telegram webhook registered", "url", cfg.ServerURL+"/bot<token>")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server is running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	// hijacked sockets are not tracked by Shutdown; their polls are stopped here
	app.sessions.StopAll()
	return err
}
