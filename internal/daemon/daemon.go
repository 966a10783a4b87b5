package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/levelup-learning/levelup/internal/api"
	"github.com/levelup-learning/levelup/internal/app/engagement"
	"github.com/levelup-learning/levelup/internal/health"
	"github.com/levelup-learning/levelup/internal/infra/metrics"
	"github.com/levelup-learning/levelup/internal/infra/sqlite"
	"github.com/levelup-learning/levelup/internal/notify"
)

// shutdownTimeout bounds HTTP shutdown and the final queue drain.
const shutdownTimeout = 30 * time.Second

// Daemon is the core LevelUp runtime. It wires together all services.
type Daemon struct {
	Config  Config
	DB      *sqlite.DB
	Engine  *engagement.Engine
	Service *engagement.Service
	Queue   *notify.Queue
	Health  *health.Checker
	Server  *api.Server

	log *logrus.Entry
}

// NewWithConfig creates a Daemon with the given configuration. Terminal
// cards and sound cues are written to out.
func NewWithConfig(cfg Config, log *logrus.Entry, out io.Writer) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	catalog := engagement.DefaultCatalog()
	if cfg.Engagement.CatalogFile != "" {
		if catalog, err = engagement.LoadCatalog(cfg.Engagement.CatalogFile); err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}

	dataDir := cfg.Store.Dir
	if dataDir == "" {
		dataDir = levelupHome()
	}
	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.SetMeta(context.Background(), "catalog_version", catalog.Version); err != nil {
		db.Close()
		return nil, fmt.Errorf("record catalog version: %w", err)
	}

	qcfg := notify.Config{
		Spacing: parseDuration(cfg.Notifications.Spacing, notify.DefaultSpacing),
		Logger:  log,
	}
	if cfg.Notifications.Sound {
		qcfg.Sound = notify.NewBellPlayer(out)
	}
	queue := notify.NewQueue(buildSink(cfg.Notifications.Sinks, db, log, out), qcfg)

	eng := engagement.NewEngine(catalog, loc)
	svc := engagement.NewService(db, db, eng, queue, engagement.ServiceOptions{
		CreateIfMissing: cfg.Engagement.AutoCreateUsers,
		Logger:          log,
	})

	checker := health.NewChecker(db, queue, dataDir, health.Options{
		MaxBacklog: cfg.Notifications.MaxBacklog,
		Logger:     log,
	})

	srv := api.NewServer(svc, checker, api.Options{
		AllowedOrigins: cfg.API.CORSOrigins,
		ActivityRate:   cfg.API.ActivityRate,
		ActivityBurst:  cfg.API.ActivityBurst,
		RequestTimeout: parseDuration(cfg.API.RequestTimeout, 30*time.Second),
		Metrics:        cfg.Telemetry.Prometheus,
		Logger:         log,
	})

	return &Daemon{
		Config:  cfg,
		DB:      db,
		Engine:  eng,
		Service: svc,
		Queue:   queue,
		Health:  checker,
		Server:  srv,
		log:     log.WithField("component", "daemon"),
	}, nil
}

// buildSink assembles the configured sinks. Unknown names are rejected by
// Config.Validate.
func buildSink(names []string, db *sqlite.DB, log *logrus.Entry, out io.Writer) notify.Sink {
	var sinks notify.MultiSink
	for _, name := range names {
		switch name {
		case "terminal":
			sinks = append(sinks, notify.NewTerminalSink(out))
		case "log":
			sinks = append(sinks, notify.NewLogSink(log))
		case "inbox":
			sinks = append(sinks, notify.NewInboxSink(db))
		}
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}

// Serve runs the HTTP server, the health loop and inbox pruning until ctx
// is cancelled or SIGINT/SIGTERM arrives, then shuts down gracefully:
// stop accepting requests, let the notification queue drain, close the
// database.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.WithField("addr", addr).Info("LevelUp serving")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return d.Health.Run(gctx)
	})

	g.Go(func() error {
		return d.pruneLoop(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		d.log.Info("shutting down")
		err := httpServer.Shutdown(shutdownCtx)
		if qerr := d.Queue.WaitIdle(shutdownCtx); qerr != nil {
			d.log.WithError(qerr).Warn("notification queue did not drain")
		}
		return err
	})

	err := g.Wait()
	if cerr := d.DB.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// pruneLoop deletes shown inbox notifications older than the retention.
func (d *Daemon) pruneLoop(ctx context.Context) error {
	retention := parseDuration(d.Config.Notifications.Retention, 0)
	if retention <= 0 {
		return nil
	}
	ticker := time.NewTicker(parseDuration(d.Config.Notifications.PruneInterval, time.Hour))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.pruneOnce(ctx, time.Now().Add(-retention))
		}
	}
}

func (d *Daemon) pruneOnce(ctx context.Context, cutoff time.Time) {
	n, err := d.DB.PruneNotifications(ctx, cutoff)
	if err != nil {
		d.log.WithError(err).Warn("prune notifications")
		return
	}
	if n > 0 {
		d.log.WithField("deleted", n).Debug("pruned notifications")
	}
	metrics.NotificationQueueDepth.Set(float64(d.Queue.Len()))
}

// Close releases daemon resources without waiting for the queue.
// Use it only when Serve was never called.
func (d *Daemon) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
