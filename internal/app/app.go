package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"procwatch/internal/collector"
	"procwatch/internal/config"
	"procwatch/internal/db"
	"procwatch/internal/engine"
	"procwatch/internal/netmon"
	"procwatch/internal/notifier"
	"procwatch/internal/prevention"
	"procwatch/internal/retention"
	"procwatch/internal/store"
	"procwatch/internal/trust"
	"procwatch/internal/watcher"
	"procwatch/internal/web"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db     *db.Repository
	alerts *store.Store

	collector *collector.Service
	netmon    *netmon.Monitor
	watcher   *watcher.Watcher
	retention *retention.Service
	web       *web.Server

	httpSrv *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	sqldb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(sqldb); err != nil {
		return nil, err
	}
	repo := db.NewRepository(sqldb)

	runtime := config.NewRuntime(cfg.Settings)
	alerts := store.New(cfg.AlertsPath, logger.With("module", "store"))
	tc := trust.New(cfg.TrustListPath, logger.With("module", "trust"))
	det := engine.NewDetector(tc, runtime)
	term := prevention.NewTerminator(logger.With("module", "prevention"))
	n := notifier.NewWebhook(cfg.WebhookURL)
	eval := engine.NewEvaluator(det, alerts, term, n, repo, runtime, logger.With("module", "engine"))
	w := web.NewServer(alerts, eval, repo, runtime, n, logger.With("module", "web"))

	app := &App{
		cfg:       cfg,
		log:       logger,
		db:        repo,
		alerts:    alerts,
		collector: collector.NewService(repo, eval, logger.With("module", "collector")),
		netmon:    netmon.NewMonitor(repo, logger.With("module", "netmon")),
		retention: retention.NewService(repo, cfg.RetentionDays, logger.With("module", "retention")),
		web:       w,
	}
	if cfg.WatchDir != "" {
		app.watcher = watcher.New(cfg.WatchDir, repo, logger.With("module", "watcher"))
	}
	app.httpSrv = &http.Server{Addr: cfg.Addr, Handler: w.Routes()}
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("http server failed", "err", err)
		}
	}()

	scanTicker := time.NewTicker(a.cfg.ScanInterval)
	netTicker := time.NewTicker(a.cfg.NetInterval)
	watchTicker := time.NewTicker(a.cfg.WatchInterval)
	retentionTicker := time.NewTicker(6 * time.Hour)
	defer scanTicker.Stop()
	defer netTicker.Stop()
	defer watchTicker.Stop()
	defer retentionTicker.Stop()

	// Baselines first so only processes started after us get evaluated.
	a.collector.Tick(ctx)
	a.netmon.Tick(ctx)
	if a.watcher != nil {
		a.watcher.Poll(ctx)
	}
	a.retention.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = a.httpSrv.Shutdown(context.Background())
			return a.db.DB().Close()
		case <-scanTicker.C:
			a.collector.Tick(ctx)
		case <-netTicker.C:
			a.netmon.Tick(ctx)
		case <-watchTicker.C:
			if a.watcher != nil {
				a.watcher.Poll(ctx)
			}
		case <-retentionTicker.C:
			a.retention.Run(ctx)
		}
	}
}
