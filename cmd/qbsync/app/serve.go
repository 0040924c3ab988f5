package app

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eaur/qbsync/internal/api"
	v1 "github.com/eaur/qbsync/internal/api/v1"
	"github.com/eaur/qbsync/internal/syncengine/coordinator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync API server",
	Long: `Start the sync API server and the background sync loop.

The server requires a configuration file (--config) that specifies:
- Database connection parameters
- Accounting platform OAuth application settings
- Entity kinds, batch sizes and the sync interval`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 120 * time.Second // batch runs block the handler
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		panic(err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	svcs, err := buildServices(ctx, viper.GetString("config"))
	if err != nil {
		return err
	}
	defer svcs.close()

	cfg := svcs.cfg
	address := viper.GetString("address")
	if address == "" {
		address = cfg.Server.GetAddress()
	}

	// The background loop needs a connected company. Without a realm id the
	// server still runs so the operator can complete the connect flow.
	var coord coordinator.Coordinator
	if cfg.QuickBooks.RealmID != "" {
		interval, err := cfg.Sync.GetInterval()
		if err != nil {
			return fmt.Errorf("invalid sync interval: %w", err)
		}
		coord = coordinator.New(svcs.engine, coordinator.Config{
			Kinds:      cfg.EntityKinds(),
			Interval:   interval,
			BatchSize:  cfg.Sync.GetBatchSize(),
			MaxBatches: cfg.Sync.GetMaxBatches(),
		})

		coordCtx, coordCancel := context.WithCancel(context.Background())
		defer coordCancel()
		go func() {
			if err := coord.Start(coordCtx); err != nil {
				slog.Error("sync coordinator failed", "error", err)
			}
		}()
	} else {
		slog.Warn("no realm id configured, background sync disabled until connected")
	}

	routes := v1.NewRoutes(svcs.engine, svcs.manager, v1.Defaults{
		BatchSize:  cfg.Sync.GetBatchSize(),
		MaxBatches: cfg.Sync.GetMaxBatches(),
		RealmID:    cfg.QuickBooks.RealmID,
	})

	router := api.NewServer(routes, svcs.conn,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	if coord != nil {
		if err := coord.Stop(); err != nil {
			slog.Error("failed to stop sync coordinator", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return err
	}

	slog.Info("server shutdown complete")
	return nil
}
