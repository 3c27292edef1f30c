package edge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/webedge/internal/observability"
)

const tracerName = "webedge/edge"

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

// Server is the HTTP host that executes the site's rule table in front
// of an upstream application and serves the banner and menu endpoints.
type Server struct {
	config     *ServerConfig
	holder     *Holder
	engine     *gin.Engine
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener

	logger     observability.Logger
	metrics    *observability.Metrics
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	target     *url.URL
	upstream   *Upstream
	breakerCfg *BreakerConfig
	breaker    *breaker
	fallback   http.Handler

	mu      sync.RWMutex
	running bool
	stopped bool
}

// ServerOption is a functional option for the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics and exposes them on /metrics.
func WithMetrics(metrics *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracerProvider sets the tracer provider for request spans.
func WithTracerProvider(provider trace.TracerProvider) ServerOption {
	return func(s *Server) {
		s.provider = provider
	}
}

// WithPropagator sets the propagator used to extract incoming trace context.
func WithPropagator(propagator propagation.TextMapPropagator) ServerOption {
	return func(s *Server) {
		s.propagator = propagator
	}
}

// WithUpstream proxies requests no local handler serves to target.
// Without an upstream such requests get 404.
func WithUpstream(target *url.URL) ServerOption {
	return func(s *Server) {
		s.target = target
	}
}

// WithCircuitBreaker guards the upstream with a circuit breaker. It has
// no effect without WithUpstream.
func WithCircuitBreaker(cfg BreakerConfig) ServerOption {
	return func(s *Server) {
		s.breakerCfg = &cfg
	}
}

// NewServer creates a server serving the snapshots published by holder.
func NewServer(cfg *ServerConfig, holder *Holder, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		config: cfg,
		holder: holder,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		s.provider = otel.GetTracerProvider()
	}
	if s.propagator == nil {
		s.propagator = otel.GetTextMapPropagator()
	}
	if s.target != nil {
		s.upstream = NewUpstream(s.target, s.logger)
		s.fallback = s.upstream
		if s.breakerCfg != nil {
			s.breaker = newBreaker(*s.breakerCfg, s.logger, s.metrics)
			s.fallback = s.breaker.wrap(s.upstream)
		}
	}

	s.engine = s.newEngine()
	s.handler = Chain(s.engine,
		RequestID(),
		Logging(s.logger, s.metrics),
		Tracing(s.provider, s.propagator, HealthPath, MetricsPath),
		Recovery(s.logger),
		Rules(holder,
			WithRuleLogger(s.logger),
			WithRuleMetrics(s.metrics),
			WithExternalProxy(NewExternalProxy(s.logger)),
		),
	)

	return s
}

// newEngine registers the local endpoints and the fallback.
func (s *Server) newEngine() *gin.Engine {
	engine := gin.New()

	h := &handlers{holder: s.holder, metrics: s.metrics}
	engine.GET(BannersPath, h.banners)
	engine.GET(MenuStatusPath, h.menuStatus)
	engine.GET(HealthPath, h.health)
	if s.metrics != nil {
		engine.GET(MetricsPath, gin.WrapH(s.metrics.Handler()))
	}

	engine.NoRoute(func(c *gin.Context) {
		if s.fallback != nil {
			s.fallback.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
			"path":  c.Request.URL.Path,
		})
	})

	return engine
}

// Handler returns the full request handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start listens on the configured address and serves until Stop is
// called. It returns nil after a graceful stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.running = true
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", ln.Addr().String()),
		observability.Duration("read_timeout", s.config.ReadTimeout),
		observability.Duration("write_timeout", s.config.WriteTimeout),
	)

	err = srv.Serve(ln)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down. A server stopped before it
// started never starts.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	running := s.running
	s.mu.Unlock()

	if !running || srv == nil {
		return nil
	}

	s.logger.Info("stopping HTTP server")

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
