package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Juauvitorsm/painel-empresas/dashboard/internal/server"
	"github.com/Juauvitorsm/painel-empresas/pkg/config"
	"github.com/Juauvitorsm/painel-empresas/pkg/logger"
)

func main() {
	dotenvErr := config.LoadDotEnv()
	cfg := config.LoadDashboardConfig()
	log := logger.New("dashboard", logger.ParseLevel(cfg.LogLevel))
	if dotenvErr != nil {
		log.Warn("could not read .env", "error", dotenvErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, err := server.New(cfg, server.WithLogger(log))
	if err != nil {
		log.Error("failed to configure dashboard", "error", err)
		os.Exit(1)
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("dashboard starting", "addr", cfg.Addr, "api_base_url", cfg.APIBaseURL, "session_store", cfg.SessionStore)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("dashboard stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			handler.Close()
			os.Exit(1)
		}
	}
}
