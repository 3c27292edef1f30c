// Package observability provides logging, metrics, and tracing
// functionality for webedge.
//
// Logging goes through the Logger interface backed by zap, metrics
// through a private Prometheus registry, and tracing through an
// OpenTelemetry tracer provider with optional OTLP export.
//
// # Logging
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("rule table installed",
//	    observability.Int("redirects", 12),
//	)
//
// # Metrics
//
//	metrics := observability.NewMetrics("webedge")
//	metrics.RecordRuleMatch("redirect")
//	handler := metrics.Handler()
//
// # Tracing
//
//	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
//	    ServiceName:  "webedge",
//	    OTLPEndpoint: "otel-collector:4317",
//	    SamplingRate: 0.1,
//	    Enabled:      true,
//	})
//	defer tracer.Shutdown(ctx)
package observability
