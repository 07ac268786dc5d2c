package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/photorelayhq/photorelay/internal/config"
	"github.com/photorelayhq/photorelay/internal/delivery"
	"github.com/photorelayhq/photorelay/internal/enhance"
	"github.com/photorelayhq/photorelay/internal/flow"
	"github.com/photorelayhq/photorelay/internal/handlers"
	"github.com/photorelayhq/photorelay/internal/logger"
	"github.com/photorelayhq/photorelay/internal/metrics"
	"github.com/photorelayhq/photorelay/internal/pending"
	"github.com/photorelayhq/photorelay/internal/server"
	"github.com/photorelayhq/photorelay/internal/session"
	"github.com/photorelayhq/photorelay/internal/whatsapp"
)

func main() {
	metrics.Init()
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideGateway,
			provideRestorer,
			provideEnhanceService,
			provideSessionStore,
			providePendingStore,
			provideMachine,
			provideOrchestrator,
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideSendImageHandler),
			provideServerHandler(provideEnhanceHandler),
			provideServerHandler(provideImagesHandler),
			provideServerHandler(handlers.NewPingHandler),
			provideServer,
		),
		fx.Invoke(
			startModelWarmup,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log)
}

func provideGateway(log *slog.Logger, cfg config.Config) *whatsapp.Client {
	return whatsapp.NewClient(log, cfg.WhatsApp)
}

// disabledRestorer serves deployments without a model endpoint: the enhance
// surface stays registered but reports the feature as unavailable.
type disabledRestorer struct{}

func (disabledRestorer) Restore(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("enhancement is not enabled on this deployment")
}

func provideRestorer(log *slog.Logger, cfg config.Config) enhance.Restorer {
	if !cfg.Enhance.Enabled {
		return disabledRestorer{}
	}
	return enhance.NewModelClient(log, cfg.Enhance)
}

func provideEnhanceService(log *slog.Logger, restorer enhance.Restorer) *enhance.Service {
	return enhance.NewService(log, restorer)
}

func provideSessionStore(lc fx.Lifecycle, cfg config.Config) *session.MemoryStore {
	store := session.NewMemoryStore(time.Duration(cfg.Store.SessionTTLMinutes) * time.Minute)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { store.Close(); return nil }})
	return store
}

func providePendingStore(lc fx.Lifecycle, cfg config.Config) *pending.MemoryStore {
	store := pending.NewMemoryStore(time.Duration(cfg.Store.PendingTTLMinutes) * time.Minute)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { store.Close(); return nil }})
	return store
}

func provideMachine(log *slog.Logger, sessions *session.MemoryStore, images *pending.MemoryStore, gateway *whatsapp.Client) *flow.Machine {
	return flow.NewMachine(log, sessions, images, gateway)
}

func provideOrchestrator(log *slog.Logger, cfg config.Config, gateway *whatsapp.Client, enhancer *enhance.Service) *delivery.Orchestrator {
	return delivery.NewOrchestrator(log, cfg, gateway, enhancer)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, machine *flow.Machine) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.PhoneNumberID, machine)
}

func provideSendImageHandler(log *slog.Logger, orchestrator *delivery.Orchestrator) *handlers.SendImageHandler {
	return handlers.NewSendImageHandler(log, orchestrator)
}

func provideEnhanceHandler(log *slog.Logger, svc *enhance.Service) *handlers.EnhanceHandler {
	return handlers.NewEnhanceHandler(log, svc)
}

func provideImagesHandler(log *slog.Logger, store *pending.MemoryStore) *handlers.ImagesHandler {
	return handlers.NewImagesHandler(log, store)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Handlers...)
}

// startModelWarmup pushes the one-time model load to startup so the first
// enhancement request does not pay it.
func startModelWarmup(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, restorer enhance.Restorer) {
	client, ok := restorer.(*enhance.ModelClient)
	if !ok || !cfg.Enhance.Enabled {
		return
	}
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		go func() {
			if err := client.Warmup(context.Background()); err != nil {
				log.Warn("model warmup failed", slog.Any("error", err))
			}
		}()
		return nil
	}})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
