package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"inventory-sync-api/internal/auth"
	"inventory-sync-api/internal/config"
	"inventory-sync-api/internal/database"
	"inventory-sync-api/internal/realtime"
	"inventory-sync-api/internal/routes"
	"inventory-sync-api/internal/warehouse"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the inventory websocket hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, *cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Server.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
			}
			return serve(ctx, cfg, logger, ln)
		},
	}
}

// serve runs until ctx is done, then drains connections within the
// configured shutdown timeout.
func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, ln net.Listener) error {
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	hubLogger := logger.With().Str("component", "hub").Logger()
	hub := realtime.NewHub(&hubLogger, realtime.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		WriteWait:      cfg.Realtime.WriteWait,
		PongWait:       cfg.Realtime.PongWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
	})

	svcLogger := logger.With().Str("component", "warehouse").Logger()
	service := warehouse.NewService(db, hub, &svcLogger, warehouse.Options{
		AllowBackorder: cfg.Inventory.AllowBackorder,
	})
	if _, err := service.Reconcile(ctx, false); err != nil {
		return fmt.Errorf("load inventory cache: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	router := routes.SetupRoutes(routes.Deps{
		DB:      db,
		Tokens:  tokens,
		Service: service,
		Hub:     hub,
		Logger:  &logger,
		WSPath:  cfg.Server.WSPath,
	})

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go warehouse.NewReconciler(service, cfg.Inventory.ReconcileInterval, &svcLogger).Run(bgCtx)

	srv := &http.Server{Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("ws_path", cfg.Server.WSPath).
			Msg("Inventory sync server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	bgCancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
