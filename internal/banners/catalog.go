package banners

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/observability"
	"github.com/vyrodovalexey/webedge/internal/util"
)

// Signals are the request attributes visibility expressions can read.
type Signals struct {
	ChainID int64
	Locale  string
	Path    string
	Flags   map[string]bool
	Now     time.Time
}

// activation returns the CEL variable bindings for s.
func (s Signals) activation() map[string]any {
	flags := s.Flags
	if flags == nil {
		flags = map[string]bool{}
	}
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	return map[string]any{
		"chain_id": s.ChainID,
		"locale":   s.Locale,
		"path":     s.Path,
		"flags":    flags,
		"now":      now,
	}
}

// Banner is the payload of a selected banner.
type Banner = config.BannerSpec

type compiledBanner struct {
	spec    Banner
	program cel.Program
}

type compiledGroup struct {
	name     string
	ordering Ordering
	banners  []compiledBanner
}

// Catalog is an immutable banner catalog whose visibility is decided per
// request by CEL expressions.
type Catalog struct {
	groups      []compiledGroup
	logger      observability.Logger
	metrics     *observability.Metrics
	newShuffler func() Shuffler
}

// CatalogOption is a functional option for the catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *observability.Metrics) CatalogOption {
	return func(c *Catalog) {
		c.metrics = metrics
	}
}

// WithShuffler sets the factory for shuffled orderings. It is called once
// per Select, so each call owns its source and a seeded *rand.Rand can be
// returned without locking.
func WithShuffler(newShuffler func() Shuffler) CatalogOption {
	return func(c *Catalog) {
		c.newShuffler = newShuffler
	}
}

// newCELEnvironment creates the CEL environment for visibility expressions.
func newCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("chain_id", cel.IntType),
		cel.Variable("locale", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("flags", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("now", cel.TimestampType),
	)
}

// NewCatalog compiles the visibility expressions of groups. An
// expression that fails to compile or does not yield a bool is a
// *util.ConfigError naming the banner.
func NewCatalog(groups []config.BannerGroup, opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	env, err := newCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	c.groups = make([]compiledGroup, 0, len(groups))
	for i, g := range groups {
		ordering, err := parseOrdering(g.Ordering)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(fmt.Sprintf("spec.banners[%d].ordering", i), "invalid ordering", err)
		}

		cg := compiledGroup{
			name:     g.Name,
			ordering: ordering,
			banners:  make([]compiledBanner, 0, len(g.Banners)),
		}
		for j, b := range g.Banners {
			program, err := compileVisibility(env, b.Visible)
			if err != nil {
				return nil, util.NewConfigErrorWithCause(
					fmt.Sprintf("spec.banners[%d].banners[%d].visible", i, j),
					fmt.Sprintf("banner %s", b.ID), err)
			}
			cg.banners = append(cg.banners, compiledBanner{spec: b, program: program})
		}
		c.groups = append(c.groups, cg)
	}

	return c, nil
}

func parseOrdering(s string) (Ordering, error) {
	switch s {
	case "", config.OrderingFixed:
		return Fixed, nil
	case config.OrderingShuffled:
		return Shuffled, nil
	default:
		return Fixed, fmt.Errorf("unknown ordering %q", s)
	}
}

// compileVisibility compiles expr; an empty expression is always visible.
func compileVisibility(env *cel.Env, expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}

// Resolve evaluates every banner's visibility against signals. A banner
// whose expression fails at runtime is hidden.
func (c *Catalog) Resolve(signals Signals) []Group[Banner] {
	vars := signals.activation()

	out := make([]Group[Banner], len(c.groups))
	for i, g := range c.groups {
		entries := make([]Entry[Banner], len(g.banners))
		for j, b := range g.banners {
			entries[j] = Entry[Banner]{ShouldRender: c.visible(b, vars), Payload: b.spec}
		}
		out[i] = Group[Banner]{Name: g.name, Ordering: g.ordering, Entries: entries}
	}
	return out
}

func (c *Catalog) visible(b compiledBanner, vars map[string]any) bool {
	if b.program == nil {
		return true
	}

	result, _, err := b.program.Eval(vars)
	if err != nil {
		c.logger.Warn("banner visibility evaluation error",
			observability.Banner(b.spec.ID),
			observability.Error(err),
		)
		c.metrics.RecordBannerVisibilityError(b.spec.ID)
		return false
	}

	visible, ok := result.Value().(bool)
	return ok && visible
}

// Select returns the banners to render for signals, in display order.
func (c *Catalog) Select(signals Signals) []Banner {
	var shuffler Shuffler
	if c.newShuffler != nil {
		shuffler = c.newShuffler()
	}
	selected := Select(c.Resolve(signals), shuffler)
	c.metrics.RecordBannerSelection(len(selected))
	return selected
}

// Len returns the total number of banners in the catalog.
func (c *Catalog) Len() int {
	n := 0
	for _, g := range c.groups {
		n += len(g.banners)
	}
	return n
}
