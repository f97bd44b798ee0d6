package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/JonMunkholm/stepimport/internal/config"
	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/logging"
	"github.com/JonMunkholm/stepimport/internal/notify"
	"github.com/JonMunkholm/stepimport/internal/progress"
	"github.com/JonMunkholm/stepimport/internal/store"
)

// deps holds the collaborators a command needs beyond its flags.
type deps struct {
	cfg       *config.Config
	db        core.DBTX
	store     core.ProgressStore
	notifiers []notify.Notifier
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// openDeps loads configuration and connects to the database and progress
// store. Tests replace it.
var openDeps = func(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}

	// Logs go to stderr so progress lines on stdout stay machine readable.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	rt := &deps{cfg: cfg}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.db = pool
	rt.closers = append(rt.closers, pool.Close)

	ps, closeProgress, err := progress.New(cfg.Progress, pool)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = ps
	rt.closers = append(rt.closers, func() {
		if err := closeProgress(); err != nil {
			slog.Warn("close progress store", "error", err)
		}
	})

	rt.notifiers = []notify.Notifier{notify.Log{}}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.notifiers = append(rt.notifiers, kafka)
		rt.closers = append(rt.closers, func() { _ = kafka.Close() })
	}

	return rt, nil
}
