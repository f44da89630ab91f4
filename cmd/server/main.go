package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/navistream/internal/app"
	"github.com/cesargomez89/navistream/internal/config"
	"github.com/cesargomez89/navistream/internal/constants"
	httpapp "github.com/cesargomez89/navistream/internal/http"
	"github.com/cesargomez89/navistream/internal/logger"
)

func main() {
	cfg := config.Load()

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if err := cfg.Validate(); err != nil {
		appLogger.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	svc, db, err := app.Build(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := svc.Ready(); err != nil {
		appLogger.Warn("No acquisition provider configured, serving the local library only", "error", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(svc, appLogger)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr, "library_root", cfg.LibraryRoot)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	// Committed jobs finish publishing before the store closes.
	if err := svc.Wait(ctx); err != nil {
		appLogger.Warn("Acquisitions still running at exit", "error", err)
	}

	appLogger.Info("Server exiting")
}
