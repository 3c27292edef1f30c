package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/webedge/internal/banners"
	"github.com/vyrodovalexey/webedge/internal/compose"
	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/edge"
	"github.com/vyrodovalexey/webedge/internal/observability"
	"github.com/vyrodovalexey/webedge/internal/plugins"
	"github.com/vyrodovalexey/webedge/internal/rules"
)

// application holds all application components.
type application struct {
	settings *config.Settings
	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	lookup   config.LookupFunc
	holder   *edge.Holder
	server   *edge.Server
	watcher  *config.Watcher
}

// newApplication loads the site, composes it and builds the server. The
// first snapshot must build; a broken site aborts startup.
func newApplication(ctx context.Context, s *config.Settings, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("webedge")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:  s.ServiceName,
		OTLPEndpoint: s.OTLPEndpoint,
		SamplingRate: s.TracingSampleRate,
		Enabled:      s.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	app := &application{
		settings: s,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		lookup:   os.LookupEnv,
	}

	site, err := app.loadSite()
	if err != nil {
		return nil, err
	}

	snap, _, err := app.buildSnapshot(ctx, site)
	if err != nil {
		return nil, err
	}
	app.holder = edge.NewHolder(snap)

	opts := []edge.ServerOption{
		edge.WithLogger(logger),
		edge.WithMetrics(metrics),
		edge.WithTracerProvider(tracer.Provider()),
	}
	if s.Upstream != "" {
		target, err := url.Parse(s.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream: %w", err)
		}
		opts = append(opts, edge.WithUpstream(target))
		if s.BreakerThreshold > 0 {
			opts = append(opts, edge.WithCircuitBreaker(edge.BreakerConfig{
				Threshold: s.BreakerThreshold,
				Timeout:   s.BreakerTimeout,
			}))
		}
	}

	app.server = edge.NewServer(&edge.ServerConfig{
		Address:        s.ListenAddr,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
		IdleTimeout:    s.IdleTimeout,
		MaxHeaderBytes: edge.DefaultServerConfig().MaxHeaderBytes,
	}, app.holder, opts...)

	return app, nil
}

// loadSite reads and validates the site configuration file.
func (a *application) loadSite() (*config.Site, error) {
	path, err := config.ResolveConfigPath(a.settings.ConfigPath)
	if err != nil {
		return nil, err
	}

	site, err := config.NewLoader(config.WithLookup(a.lookup)).Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateSite(site); err != nil {
		return nil, fmt.Errorf("invalid site configuration %s: %w", path, err)
	}

	a.logger.Info("site configuration loaded",
		observability.Site(site.Metadata.Name),
		observability.Path(path),
		observability.Int("rewrites", len(site.Spec.Rewrites)),
		observability.Int("redirects", len(site.Spec.Redirects)),
		observability.Int("headers", len(site.Spec.Headers)),
		observability.Int("banner_groups", len(site.Spec.Banners)),
	)

	return site, nil
}

// compose runs the transform chain over site.
func (a *application) compose(ctx context.Context, site *config.Site) (*config.Site, error) {
	chain := compose.NewChain[*config.Site](
		compose.WithLogger(a.logger.With(observability.Component("compose"))),
		compose.WithMetrics(a.metrics),
		compose.WithTracer(a.tracer.Provider().Tracer("webedge/compose")),
	)
	plugins.Register(chain, plugins.Options{
		LogIngestEndpoint: a.settings.LogIngestEndpoint,
		Lookup:            a.lookup,
	})

	return chain.Apply(ctx, site)
}

// buildSnapshot composes site and compiles everything the server needs.
// It returns the composed site with the snapshot.
func (a *application) buildSnapshot(ctx context.Context, site *config.Site) (*edge.Snapshot, *config.Site, error) {
	effective, err := a.compose(ctx, site)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compose site configuration: %w", err)
	}

	table, err := rules.NewTable(effective.Rules())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	catalog, err := banners.NewCatalog(effective.Spec.Banners,
		banners.WithLogger(a.logger.With(observability.Component("banners"))),
		banners.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile banners: %w", err)
	}

	a.logger.Info("site composed",
		observability.Site(effective.Metadata.Name),
		observability.Int("redirects", table.Len(rules.KindRedirect)),
		observability.Int("rewrites", table.Len(rules.KindRewrite)),
		observability.Int("headers", table.Len(rules.KindHeader)),
		observability.Int("banners", catalog.Len()),
		observability.Strings("plugins", effective.Spec.Build.Plugins),
	)

	return &edge.Snapshot{
		Site:    effective.Metadata.Name,
		Table:   table,
		Catalog: catalog,
		Menu:    effective.Spec.Menu,
	}, effective, nil
}

// runOffline loads and composes the site without serving. With printSite
// set the composed site is written to w as YAML.
func runOffline(
	ctx context.Context,
	s *config.Settings,
	printSite bool,
	w io.Writer,
	logger observability.Logger,
) error {
	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{ServiceName: s.ServiceName})
	if err != nil {
		return err
	}

	app := &application{
		settings: s,
		logger:   logger,
		tracer:   tracer,
		lookup:   os.LookupEnv,
	}
	return app.offline(ctx, printSite, w)
}

func (a *application) offline(ctx context.Context, printSite bool, w io.Writer) error {
	site, err := a.loadSite()
	if err != nil {
		return err
	}

	_, effective, err := a.buildSnapshot(ctx, site)
	if err != nil {
		return err
	}

	if !printSite {
		a.logger.Info("site configuration is valid",
			observability.Site(effective.Metadata.Name))
		return nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(effective); err != nil {
		return fmt.Errorf("failed to encode site: %w", err)
	}
	return enc.Close()
}
