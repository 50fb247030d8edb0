package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"session-keeper/internal/browser"
	"session-keeper/internal/config"
	"session-keeper/internal/errortrack"
	"session-keeper/internal/health"
	"session-keeper/internal/infra/notifier"
	"session-keeper/internal/observability/logging"
	"session-keeper/internal/observability/metrics"
	"session-keeper/internal/observability/slo"
	"session-keeper/internal/resilience/circuitbreaker"
	"session-keeper/internal/scheduler"
	"session-keeper/internal/session"
	"session-keeper/internal/store"
	keeperUC "session-keeper/internal/usecase/keeper"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, warnings, err := config.Load()
	if err != nil {
		logger := logging.NewLogger("info")
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn("configuration fallback", slog.String("detail", w))
	}
	logger.Info("configuration loaded",
		slog.Bool("headless", cfg.Headless),
		slog.String("target_url", cfg.TargetURL),
		slog.Duration("nav_timeout", cfg.NavTimeout),
		slog.Int("memory_ceiling_mb", cfg.MemoryCeilingMB),
		slog.String("watchdog_schedule", cfg.WatchdogSchedule),
		slog.String("metrics_addr", cfg.MetricsAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	km := metrics.NewKeeperMetrics()
	km.MustRegister()

	st := initStore(logger, cfg)
	notif := initNotifier(logger, cfg)

	breaker := circuitbreaker.New(circuitbreaker.RefreshConfig(), logger)
	breaker.OnOpen(func(name string) {
		km.RecordBreakerOpen()
		alertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notif.Notify(alertCtx, "refresh circuit "+name+" opened: consecutive mint failures, serving stored artifact only"); err != nil {
			logger.Warn("breaker-open alert failed", slog.Any("error", err))
		}
	})

	scorer := health.NewScorer()
	tracker := errortrack.New(logger)

	mgr := initManager(logger, cfg, st, breaker, km)
	watchdog := session.NewWatchdog(mgr, breaker, logger)

	sched := scheduler.New(mgr, st, breaker, tracker, notif, km, logger,
		scheduler.WithRepersistInterval(cfg.RepersistInterval),
		scheduler.WithHealth(scorer))

	svc := keeperUC.NewService(mgr, breaker, st, scorer, tracker, notif, km, logger)

	startMetricsServer(ctx, logger, svc, cfg.MetricsAddr)

	// A failed initial start is not fatal: the store may still hold a
	// valid artifact, and the watchdog keeps retrying the resource.
	if err := mgr.Start(ctx); err != nil {
		logger.Error("initial resource start failed", slog.Any("error", err))
	} else {
		logger.Info("browser resource started")
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.WatchdogSchedule, func() {
		tickCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		watchdog.Tick(tickCtx)
	}); err != nil {
		logger.Error("failed to schedule watchdog", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := c.AddFunc("@every 1m", func() {
		updateSLOMetrics(scorer, mgr)
	}); err != nil {
		logger.Error("failed to schedule slo updater", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	logger.Info("watchdog scheduled", slog.String("schedule", cfg.WatchdogSchedule))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.RunRefreshLoop(gctx)
		return nil
	})
	g.Go(func() error {
		sched.RunProbeLoop(gctx)
		return nil
	})
	g.Go(func() error {
		sched.RunRepersistLoop(gctx)
		return nil
	})
	logger.Info("keeper loops running")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	shutdown(logger, c, g, mgr, svc)
}

// initStore builds the tiered artifact store and logs what it recovered.
func initStore(logger *slog.Logger, cfg *config.Config) *store.Store {
	var opts []store.Option
	if len(cfg.TierPaths) > 0 {
		opts = append(opts, store.WithTierPaths(cfg.TierPaths))
	}
	st := store.New(logger, opts...)

	if art, err := st.LoadArtifact(); err != nil {
		logger.Warn("no usable artifact at startup", slog.Any("error", err))
	} else {
		logger.Info("artifact recovered at startup", slog.Int("records", art.Len()))
	}
	return st
}

// initNotifier returns the webhook notifier when an endpoint is
// configured, otherwise the no-op sink.
func initNotifier(logger *slog.Logger, cfg *config.Config) notifier.Notifier {
	if cfg.WebhookURL == "" {
		logger.Info("alerting disabled: no webhook configured")
		return notifier.NewNoOpNotifier()
	}
	n, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{URL: cfg.WebhookURL})
	if err != nil {
		logger.Error("invalid webhook configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("webhook alerting enabled")
	return n
}

// initManager wires the persistent browser driver, the visible login
// driver, and the session manager around them.
func initManager(logger *slog.Logger, cfg *config.Config, st *store.Store, br session.Breaker, km session.Metrics) *session.Manager {
	driverCfg := browser.Config{
		Bin:               cfg.BrowserBin,
		Headless:          cfg.Headless,
		NoSandbox:         true,
		UserDataDir:       cfg.UserDataDir,
		TargetURL:         cfg.TargetURL,
		ProbeURL:          cfg.ProbeURL,
		CookieDomain:      cfg.CookieDomain,
		NavigationTimeout: cfg.NavTimeout,
	}
	driver := browser.NewRodDriver(driverCfg, logger)

	loginCfg := driverCfg
	loginCfg.Headless = false
	loginCfg.UserDataDir = cfg.LoginUserDataDir
	loginDriver := browser.NewRodDriver(loginCfg, logger)

	mgrCfg := session.Config{
		MemoryCeilingMB:      cfg.MemoryCeilingMB,
		MemoryExportFraction: cfg.MemoryExportFraction,
		RotationCeiling:      cfg.RotationCeiling,
		LoginTimeout:         cfg.LoginTimeout,
	}
	return session.NewManager(driver, loginDriver, st, br, km, mgrCfg, logger)
}

// updateSLOMetrics publishes the SLO gauges from the scorer's counters and
// the age of the last successful export.
func updateSLOMetrics(scorer *health.Scorer, mgr *session.Manager) {
	snap := scorer.Snapshot()
	if total := snap.Successes + snap.Failures; total > 0 {
		slo.UpdateRefreshSuccessRatio(float64(snap.Successes) / float64(total))
	}
	slo.UpdateHealthScoreRatio(float64(snap.Score) / 100)
	if last := mgr.LastRefreshAt(); !last.IsZero() {
		slo.UpdateArtifactAge(time.Since(last).Seconds())
	}
}

// shutdown stops the loops, closes any open login session, and stops the
// resource with a final cookie export so restarts resume from fresh state.
func shutdown(logger *slog.Logger, c *cron.Cron, g *errgroup.Group, mgr *session.Manager, svc keeperUC.Service) {
	_ = g.Wait()
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if mgr.ManualSessionActive() {
		if n, err := svc.StopLogin(ctx); err != nil {
			logger.Warn("closing login session failed", slog.Any("error", err))
		} else {
			logger.Info("login session closed", slog.Int("records", n))
		}
	}

	if n, err := mgr.Stop(ctx, true); err != nil {
		logger.Error("final export failed", slog.Any("error", err))
	} else {
		logger.Info("resource stopped with final export", slog.Int("records", n))
	}
	logger.Info("keeper stopped")
}
