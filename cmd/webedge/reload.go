package main

import (
	"context"
	"time"

	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/observability"
)

// reloadTimeout bounds the composition of a reloaded site.
const reloadTimeout = 10 * time.Second

// startConfigWatcher starts watching the site file when enabled. A
// watcher that cannot start is logged and the current site keeps serving.
func (a *application) startConfigWatcher(ctx context.Context) {
	if !a.settings.WatchConfig {
		return
	}

	path, err := config.ResolveConfigPath(a.settings.ConfigPath)
	if err != nil {
		a.logger.Warn("failed to resolve config path for watching", observability.Error(err))
		return
	}

	watcher, err := config.NewWatcher(path, func(site *config.Site) {
		a.reload(ctx, site)
	},
		config.WithLogger(a.logger.With(observability.Component("watcher"))),
		config.WithLoader(config.NewLoader(config.WithLookup(a.lookup))),
		config.WithErrorCallback(func(err error) {
			a.metrics.RecordConfigReload(err)
		}),
	)
	if err != nil {
		a.logger.Warn("failed to create config watcher", observability.Error(err))
		return
	}

	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("failed to start config watcher", observability.Error(err))
		return
	}
	a.watcher = watcher
}

// reload rebuilds the snapshot from site and publishes it. On failure the
// previous snapshot keeps serving.
func (a *application) reload(ctx context.Context, site *config.Site) {
	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()

	start := time.Now()
	snap, _, err := a.buildSnapshot(ctx, site)
	a.metrics.RecordConfigReload(err)
	if err != nil {
		a.logger.Error("failed to reload site configuration, keeping previous",
			observability.Error(err),
		)
		return
	}

	a.holder.Store(snap)
	a.logger.Info("site configuration applied",
		observability.Site(snap.Site),
		observability.Duration("duration", time.Since(start)),
	)
}
