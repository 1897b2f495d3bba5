package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/channel/adapters/bridge"
	"github.com/omnigatehq/omnigate/internal/channel/adapters/courier"
	"github.com/omnigatehq/omnigate/internal/channel/adapters/meta"
	"github.com/omnigatehq/omnigate/internal/config"
	"github.com/omnigatehq/omnigate/internal/conversation"
	"github.com/omnigatehq/omnigate/internal/db"
	"github.com/omnigatehq/omnigate/internal/events"
	"github.com/omnigatehq/omnigate/internal/gateway"
	"github.com/omnigatehq/omnigate/internal/handlers"
	"github.com/omnigatehq/omnigate/internal/logger"
	"github.com/omnigatehq/omnigate/internal/message"
	"github.com/omnigatehq/omnigate/internal/replyengine"
	"github.com/omnigatehq/omnigate/internal/server"

	"github.com/jackc/pgx/v5/pgxpool"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.Provide(
					provideConfig,
					provideLogger,
					provideDB,
					provideRegistry,
					provideEngine,
					providePublisher,
					conversation.NewService,
					message.NewService,
					gateway.New,
					provideReconciler,
					provideHandler,
					server.New,
				),
				fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
					return &fxevent.SlogLogger{Logger: log}
				}),
				fx.Invoke(registerLifecycle),
			)
			app.Run()
			return nil
		},
	}
}

func provideConfig() (config.Config, error) {
	return config.Load(resolveConfigPath())
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDB(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideRegistry(log *slog.Logger, cfg config.Config) *channel.Registry {
	registry := channel.NewRegistry()
	registry.MustRegister(meta.New(log, cfg.Meta))
	registry.MustRegister(bridge.New(log, cfg.Bridge))
	registry.MustRegister(courier.New(log, cfg.Courier))
	return registry
}

func provideEngine(log *slog.Logger, cfg config.Config) replyengine.Engine {
	return replyengine.NewClient(log, cfg.ReplyEngine)
}

func providePublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (events.Publisher, error) {
	publisher, err := events.NewPublisher(log, cfg.Events)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

func provideReconciler(log *slog.Logger, gw *gateway.Gateway, conversations conversation.Service, cfg config.Config) *gateway.WebhookReconciler {
	metaEnabled := cfg.Meta.BusinessID != ""
	return gateway.NewWebhookReconciler(log, gw, conversations, cfg.Webhook.ReconcileCron, metaEnabled)
}

func provideHandler(log *slog.Logger, gw *gateway.Gateway, conversations conversation.Service, messages message.Service, cfg config.Config) *handlers.Handler {
	return handlers.New(log, gw, conversations, messages, cfg)
}

func registerLifecycle(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, reconciler *gateway.WebhookReconciler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := reconciler.Start(); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("http server stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			reconciler.Stop()
			return srv.Shutdown(ctx)
		},
	})
}
