package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"signal-feed/internal/alerting"
	"signal-feed/internal/api"
	"signal-feed/internal/broadcast"
	"signal-feed/internal/cache"
	"signal-feed/internal/config"
	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
	"signal-feed/internal/metrics"
	"signal-feed/internal/poller"
	"signal-feed/internal/resolver"
	"signal-feed/internal/service"
	"signal-feed/internal/storage"
	"signal-feed/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *instrument.Registry
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Registry: instrument.DefaultRegistry(),
	}
}

func (a *App) newFetchers() []fetcher.QuoteFetcher {
	bybit := fetcher.NewBybit(fetcher.BybitOptions{
		BaseURL: a.Config.Providers.Bybit.BaseURL,
		Timeout: a.Config.Providers.Bybit.Timeout,
	}, a.Logger)

	yahoo := fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:   a.Config.Providers.Yahoo.BaseURL,
		Timeout:   a.Config.Providers.Yahoo.Timeout,
		UserAgent: a.Config.Providers.Yahoo.UserAgent,
	}, a.Logger)

	return []fetcher.QuoteFetcher{bybit, yahoo}
}

func (a *App) newResolver(rec *metrics.Recorder) *resolver.Resolver {
	mock := resolver.NewMockSource(a.Config.Mock.PerturbationPct, a.Config.Mock.Seed)
	return resolver.New(a.newFetchers(), mock, rec, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) openMirror(ctx context.Context) (*storage.Mirror, func(), error) {
	if !a.Config.Redis.Enabled {
		return nil, nil, nil
	}

	client, err := storage.NewClient(ctx, a.Config.Redis)
	if err != nil {
		return nil, nil, err
	}

	mirror := storage.NewMirror(client, a.Config.Redis.Key, a.Config.Redis.Channel)
	closer := func() {
		if err := mirror.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close redis mirror")
		}
	}
	return mirror, closer, nil
}

// Run executes the long-running poller and HTTP server until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := metrics.New()
	res := a.newResolver(rec)
	pc := cache.New()
	hub := broadcast.NewHub(rec, a.Logger)

	mirror, closeMirror, err := a.openMirror(ctx)
	if err != nil {
		return err
	}
	if closeMirror != nil {
		defer closeMirror()
	}

	var snapshotMirror poller.Mirror
	if mirror != nil {
		snapshotMirror = mirror
	} else {
		a.Logger.Info().Msg("redis disabled; snapshot mirror off")
	}

	var alerts poller.AlertDispatcher
	if a.Config.Alerting.Enabled {
		if notifier := a.newNotifier(); notifier != nil {
			alerts = alerting.NewDispatcher(notifier, a.Config.Alerting.Cooldown, a.Logger)
		} else {
			a.Logger.Warn().Msg("alerting enabled but no channel configured")
		}
	}

	p := poller.New(poller.Options{
		Interval:     a.Config.Poller.Interval,
		StartupDelay: a.Config.Poller.StartupDelay,
		Concurrency:  a.Config.Poller.Concurrency,
		Align:        a.Config.Poller.Align,
	}, a.Registry, res, pc, hub, snapshotMirror, alerts, rec, a.Logger)

	svc := service.New(a.Config.App.Name, a.Registry, pc, res, p, hub, a.Logger)

	srv := api.NewServer(api.Deps{
		Service:     svc,
		Subscribers: hub,
		Snapshots:   pc,
		Poller:      p,
		Metrics:     rec,
	}, a.Config.Server, a.Config.WebSocket, a.Logger)

	a.Logger.Info().
		Int("instruments", len(a.Registry.Names())).
		Dur("interval", a.Config.Poller.Interval).
		Str("version", version.Version).
		Msg("starting signal feed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		if err := p.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("signal feed terminated with error")
		return err
	}

	a.Logger.Info().Msg("signal feed stopped")
	return nil
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	Assets  []string
	Timeout time.Duration
}
