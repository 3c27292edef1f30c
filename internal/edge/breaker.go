package edge

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/webedge/internal/observability"
	"github.com/vyrodovalexey/webedge/internal/util"
)

const errUpstreamUnavailable = `{"error":"upstream unavailable"}`

// BreakerConfig configures the circuit breaker guarding the upstream.
type BreakerConfig struct {
	// Threshold is the minimum number of requests in an interval before
	// the breaker may trip. The breaker opens once at least half of them
	// failed.
	Threshold int
	// Timeout is both the counting interval while closed and the time
	// the breaker stays open before probing again.
	Timeout time.Duration
}

// errUpstreamStatus marks an upstream 5xx as a breaker failure.
type errUpstreamStatus int

func (e errUpstreamStatus) Error() string {
	return fmt.Sprintf("upstream answered %d", int(e))
}

// breaker sheds upstream traffic while the upstream keeps failing.
type breaker struct {
	cb      *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics *observability.Metrics
}

func newBreaker(cfg BreakerConfig, logger observability.Logger, metrics *observability.Metrics) *breaker {
	threshold := uint32(max(cfg.Threshold, 1)) //nolint:gosec // bounded below, config-sized
	b := &breaker{logger: logger, metrics: metrics}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && ratio >= 0.5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.logger.Warn("upstream circuit breaker state change",
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			b.metrics.RecordBreakerTransition(from.String(), to.String())
		},
	})

	return b
}

// wrap guards next. Upstream 5xx answers count as failures and are
// passed through unchanged; while the breaker is open requests get 503
// without reaching next.
func (b *breaker) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := util.NewStatusCapturingResponseWriter(w)

		_, err := b.cb.Execute(func() (any, error) {
			next.ServeHTTP(rw, r)
			if rw.StatusCode >= http.StatusInternalServerError {
				return nil, errUpstreamStatus(rw.StatusCode)
			}
			return nil, nil
		})
		if err == nil || rw.HeaderWritten {
			return
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.metrics.RecordBreakerRejection()
			b.logger.WithContext(r.Context()).Warn("upstream circuit breaker rejected request",
				observability.Path(r.URL.Path),
				observability.String("state", b.cb.State().String()),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(errUpstreamUnavailable))
		}
	})
}

// State returns the breaker state name.
func (b *breaker) State() string {
	return b.cb.State().String()
}
