package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wpdrift/worker/internal/app"
	"github.com/wpdrift/worker/internal/config"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/http/handlers"
	"github.com/wpdrift/worker/internal/http/router"
	"github.com/wpdrift/worker/internal/observability/logger"
	"github.com/wpdrift/worker/internal/store/pg"
)

var flagAuthHeader string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Levanta el servidor HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}

		logger.Init(logger.Config{Env: cfg.Env, Level: cfg.Log.Level, ServiceName: "worker"})
		defer func() { _ = logger.Sync() }()
		log := logger.Named("serve")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
			Pool: func() *pgxpool.Pool { return c.Pool },
		})
		if err != nil {
			return err
		}

		mux := router.New(c, handlers.HeaderAuthenticator{Header: flagAuthHeader}, metricsHandler)
		server := httpx.NewServer(cfg.HTTP.Addr, mux,
			cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.ShutdownTimeout)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return server.Run(ctx) })

		// Con Postgres, una rutina de limpieza borra filas vencidas.
		if c.Pool != nil {
			stores := pg.New(c.Pool)
			g.Go(func() error {
				ticker := time.NewTicker(10 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						purgeExpired(ctx, stores, log)
					}
				}
			})
		}

		log.Info("worker started", zap.String("addr", cfg.HTTP.Addr), zap.String("driver", cfg.Store.Driver))
		return g.Wait()
	},
}

func purgeExpired(ctx context.Context, stores *pg.Stores, log *zap.Logger) {
	n, err := stores.Tokens.PurgeExpired(ctx)
	if err != nil {
		log.Warn("token purge failed", zap.Error(err))
		return
	}
	m, err := stores.Codes.PurgeExpired(ctx)
	if err != nil {
		log.Warn("code purge failed", zap.Error(err))
		return
	}
	if n+m > 0 {
		log.Info("expired rows purged", zap.Int64("tokens", n), zap.Int64("codes", m))
	}
}

func init() {
	serveCmd.Flags().StringVar(&flagAuthHeader, "auth-header", "X-Authenticated-User",
		"header confiable con el usuario autenticado (lo setea el proxy)")
}
