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

	dbembed "github.com/memohai/msgbridge/db"
	"github.com/memohai/msgbridge/internal/bot"
	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/channel/adapters/chatwoot"
	"github.com/memohai/msgbridge/internal/channel/adapters/webchat"
	"github.com/memohai/msgbridge/internal/channel/adapters/whatsapp"
	"github.com/memohai/msgbridge/internal/config"
	"github.com/memohai/msgbridge/internal/db"
	"github.com/memohai/msgbridge/internal/handlers"
	"github.com/memohai/msgbridge/internal/logger"
	"github.com/memohai/msgbridge/internal/message/event"
	chatwootmirror "github.com/memohai/msgbridge/internal/plugins/chatwoot"
	"github.com/memohai/msgbridge/internal/server"
	"github.com/memohai/msgbridge/internal/storage"
	"github.com/memohai/msgbridge/internal/storage/memory"
	"github.com/memohai/msgbridge/internal/storage/postgres"
	"github.com/memohai/msgbridge/internal/version"
)

// outboundBurst is the token bucket size of every channel limiter.
const outboundBurst = 5

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			event.NewHub,
			provideStore,
			provideMirror,
			provideChannelRegistry,
			provideMessageHandler,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewChannelHandler),
			provideServerHandler(handlers.NewSwaggerHandler),
			provideServerHandler(provideAdminHandler),

			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
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
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// provideStore opens the storage backend once; every channel shares it. Tracked events are
// also published to the hub.
func provideStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, hub *event.Hub) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return event.Publishing(memory.New(), hub), nil
	case config.StorageDriverPostgres, "":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Storage.AutoMigrate {
		if err := db.RunMigrate(log, cfg.Postgres, dbembed.Migrations(), "up", nil); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return event.Publishing(postgres.New(log, pool), hub), nil
}

// provideMirror returns nil when mirroring is disabled.
func provideMirror(log *slog.Logger, cfg config.Config, store storage.Store) (*chatwootmirror.Mirror, error) {
	mc := cfg.Mirror.Chatwoot
	if !mc.Enabled {
		return nil, nil
	}
	return chatwootmirror.New(log, store, chatwootmirror.Config{
		BaseURL:   mc.BaseURL,
		APIKey:    mc.APIKey,
		AccountID: mc.AccountID,
		InboxID:   mc.InboxID,
	})
}

func provideChannelRegistry(log *slog.Logger, cfg config.Config, store storage.Store, mirror *chatwootmirror.Mirror) (*channel.Registry, error) {
	reg := channel.NewRegistry()
	register := func(ch channel.Channel) {
		if mirror != nil {
			ch = mirror.WrapChannel(ch)
		}
		reg.MustRegister(ch)
		log.Info("channel enabled", slog.String("channel", ch.ID()))
	}

	if wc := cfg.Channels.WhatsApp; wc.Enabled {
		ch, err := whatsapp.New(log, store, whatsapp.Config{
			NumberID:    wc.NumberID,
			Token:       wc.Token,
			VerifyToken: wc.VerifyToken,
			BaseURL:     wc.BaseURL,
			APIVersion:  wc.APIVersion,
			Limiter:     channel.NewLimiter(wc.RatePerSec, outboundBurst),
		})
		if err != nil {
			return nil, err
		}
		register(ch)
	}
	if cc := cfg.Channels.Chatwoot; cc.Enabled {
		ch, err := chatwoot.New(log, store, chatwoot.Config{
			UserAPIKey:  cc.UserAPIKey,
			BaseURL:     cc.BaseURL,
			AccountID:   cc.AccountID,
			InboxID:     cc.InboxID,
			VerifyToken: cc.VerifyToken,
			Limiter:     channel.NewLimiter(cc.RatePerSec, outboundBurst),
		})
		if err != nil {
			return nil, err
		}
		register(ch)
	}
	if web := cfg.Channels.Web; web.Enabled {
		ch, err := webchat.New(log, store, webchat.Config{
			AllowedOrigins:     web.AllowedOrigins,
			AuthorizationToken: web.AuthorizationToken,
		})
		if err != nil {
			return nil, err
		}
		register(ch)
	}
	if len(reg.IDs()) == 0 {
		log.Warn("no channel enabled")
	}
	return reg, nil
}

func provideMessageHandler(log *slog.Logger, store storage.Store, mirror *chatwootmirror.Mirror) channel.MessageHandler {
	handler := bot.NewEcho(log, store).Handle
	if mirror != nil {
		return mirror.WrapHandler(handler)
	}
	return handler
}

// provideAdminHandler mounts the admin API only when a JWT secret is configured.
func provideAdminHandler(log *slog.Logger, cfg config.Config, registry *channel.Registry, store storage.Store, hub *event.Hub) *handlers.AdminHandler {
	if cfg.Admin.JWTSecret == "" {
		log.Info("admin api disabled: no jwt secret")
		return nil
	}
	return handlers.NewAdminHandler(log, registry, store, hub)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Admin.JWTSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting msgbridge %s\n", version.Get())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
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
