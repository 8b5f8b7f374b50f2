package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unilost/lostfound/internal/api"
	"github.com/unilost/lostfound/internal/imagestore"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/revocation"
	"github.com/unilost/lostfound/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, closeLog, err := newLogger(os.Stdout, os.Stderr, cfg.Log.File)
		if err != nil {
			return err
		}
		defer closeLog()
		slog.SetDefault(logger)

		ctx := context.Background()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		slog.Info("database ready", "driver", cfg.Database.Driver)

		jwtSecret := cfg.Auth.JWTSecret
		if jwtSecret == "" {
			jwtSecret, err = store.GetJWTSecret(ctx, database)
			if err != nil {
				return fmt.Errorf("loading jwt secret: %w", err)
			}
		}

		revoker, closeRevoker, err := revocation.New(ctx, database, revocation.RedisOptions{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err != nil {
			return err
		}
		defer closeRevoker()

		images, err := imagestore.New(ctx, cfg.Images, database)
		if err != nil {
			return fmt.Errorf("setting up image storage: %w", err)
		}
		slog.Info("image storage ready", "backend", cfg.Images.Backend)

		handler := api.NewRouter(database, api.Options{
			JWTSecret:            jwtSecret,
			Revoker:              revoker,
			Images:               images,
			Policy:               model.Policy{SuperAdminModerates: cfg.Auth.SuperAdminModerates},
			OwnerCanMarkReturned: cfg.Auth.OwnerCanMarkReturned,
			SecureCookies:        cfg.Server.SecureCookies,
			AllowedOrigins:       cfg.Server.AllowedOrigins,
		})

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			sig := <-quit
			slog.Info("shutdown signal received", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				slog.Error("server forced to shutdown", "error", err)
			}
		}()

		slog.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		slog.Info("server stopped, closing database")
		return nil
	},
}
