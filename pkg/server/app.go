package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EarnPull/internal/usecase"
	"EarnPull/pkg/calendar"
	"EarnPull/pkg/config"
	xhttp "EarnPull/pkg/http"
	xlogger "EarnPull/pkg/logger"
	"EarnPull/pkg/scheduler"
)

// Closers are infrastructure clients released after the cache is saved.
type Closers []io.Closer

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *xlogger.Logger
	cache      *usecase.EarningsCache
	job        *usecase.SnapshotJob
	sched      *scheduler.Scheduler
	httpServer *xhttp.Server
	closers    Closers
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *xlogger.Logger,
	cache *usecase.EarningsCache,
	job *usecase.SnapshotJob,
	sched *scheduler.Scheduler,
	httpServer *xhttp.Server,
	closers Closers,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		cache:      cache,
		job:        job,
		sched:      sched,
		httpServer: httpServer,
		closers:    closers,
	}
}

// Run loads the snapshot, starts the snapshot job and the HTTP server, and
// blocks until interrupted.
func (a *App) Run() error {
	if err := a.cache.Open(); err != nil {
		return fmt.Errorf("open earnings cache: %w", err)
	}
	a.log.Info("earnings cache ready",
		xlogger.String("snapshot", a.cfg.Earnings.SnapshotPath),
		xlogger.Int("records", a.cache.Len()),
	)

	schedule := "@every " + a.cfg.Snapshot.MonitorInterval.String()
	if err := a.sched.AddJob(schedule, a.job); err != nil {
		return fmt.Errorf("schedule snapshot job: %w", err)
	}
	a.sched.Start()

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", xlogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Lookup resolves each ticker once, writes one line per ticker to w and
// saves the snapshot. Used by the command line mode.
func (a *App) Lookup(ctx context.Context, tickers []string, w io.Writer) error {
	if err := a.cache.Open(); err != nil {
		return fmt.Errorf("open earnings cache: %w", err)
	}

	now := time.Now()
	for _, t := range tickers {
		rec, err := a.cache.Get(ctx, t)
		if err != nil {
			fmt.Fprintf(w, "%-10s error: %v\n", t, err)
			continue
		}
		if !rec.Available {
			fmt.Fprintf(w, "%-10s unavailable\n", rec.Ticker)
			continue
		}
		status := "unconfirmed"
		if rec.Confirmed {
			status = "confirmed"
		}
		fmt.Fprintf(w, "%-10s %s  %-12s %-11s %s\n",
			rec.Ticker,
			calendar.FormatLongDate(rec.ReleaseAt),
			rec.ReleaseTime,
			status,
			calendar.FormatDays(calendar.DaysUntil(rec.ReleaseAt, now)),
		)
	}

	return a.closeAll()
}

// Shutdown stops background work, saves the cache and releases clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	a.sched.Stop()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", xlogger.Error(err))
	}

	if err := a.closeAll(); err != nil {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeAll() error {
	var saveErr error
	if err := a.cache.Close(); err != nil {
		a.log.Error("final snapshot save failed", xlogger.Error(err))
		saveErr = fmt.Errorf("save snapshot: %w", err)
	}
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close error", xlogger.Error(err))
		}
	}
	return saveErr
}
