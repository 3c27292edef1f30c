package compose

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vyrodovalexey/webedge/internal/observability"
)

// Option configures a Chain.
type Option func(*options)

type options struct {
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// WithLogger sets the logger used to report each step.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithTracer sets the tracer used to create a span per Apply.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

type step[T any] struct {
	name      string
	transform Transform[T]
}

// Chain is an ordered list of named transforms.
//
// Steps are registered during startup with Use. Apply may be called
// concurrently with itself; Use must not race with Apply.
type Chain[T any] struct {
	mu    sync.RWMutex
	steps []step[T]
	opts  options
}

// NewChain creates an empty chain.
func NewChain[T any](opts ...Option) *Chain[T] {
	o := options{
		logger: observability.NopLogger(),
		tracer: noop.NewTracerProvider().Tracer("webedge/compose"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Chain[T]{opts: o}
}

// Use appends a named transform and returns the chain for chaining.
func (c *Chain[T]) Use(name string, t Transform[T]) *Chain[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step[T]{name: name, transform: t})
	return c
}

// Names returns the step names in application order.
func (c *Chain[T]) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.name
	}
	return names
}

// Len returns the number of steps.
func (c *Chain[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.steps)
}

// Apply composes the registered steps over base. It has the same
// all-or-nothing semantics as Compose. A cancelled context stops the
// chain before the next step runs.
func (c *Chain[T]) Apply(ctx context.Context, base T) (T, error) {
	c.mu.RLock()
	steps := append([]step[T](nil), c.steps...)
	c.mu.RUnlock()

	ctx, span := c.opts.tracer.Start(ctx, "compose.Apply",
		trace.WithAttributes(attribute.Int("compose.steps", len(steps))),
	)
	defer span.End()

	logger := c.opts.logger.WithContext(ctx)
	cfg := cloneOf(base)

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return c.fail(span, logger, i, s.name, err)
		}

		start := time.Now()
		next, err := run(s.transform, cfg)
		duration := time.Since(start)
		c.opts.metrics.RecordComposeStep(s.name, err, duration)

		if err != nil {
			return c.fail(span, logger, i, s.name, err)
		}

		logger.Debug("transform applied",
			observability.Int("index", i),
			observability.Step(s.name),
			observability.Duration("duration", duration),
		)
		cfg = next
	}

	span.SetStatus(codes.Ok, "")
	return cfg, nil
}

func (c *Chain[T]) fail(
	span trace.Span,
	logger observability.Logger,
	index int,
	name string,
	err error,
) (T, error) {
	stepErr := &StepError{Index: index, Name: name, Err: err}

	logger.Error("transform failed",
		observability.Int("index", index),
		observability.Step(name),
		observability.Error(err),
	)
	span.RecordError(stepErr)
	span.SetStatus(codes.Error, stepErr.Error())

	var zero T
	return zero, stepErr
}
