package edge

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/webedge/internal/observability"
)

func statusUpstream(t *testing.T, status *atomic.Int32, hits *atomic.Int32) *url.URL {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return target
}

func TestServer_CircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	var status, hits atomic.Int32
	status.Store(http.StatusInternalServerError)

	metrics := observability.NewMetrics("test")
	s := NewServer(nil, NewHolder(nil),
		WithMetrics(metrics),
		WithUpstream(statusUpstream(t, &status, &hits)),
		WithCircuitBreaker(BreakerConfig{Threshold: 2, Timeout: time.Minute}),
	)

	// Failures pass through until the threshold trips the breaker.
	assert.Equal(t, http.StatusInternalServerError, serve(s.Handler(), http.MethodGet, "/liquidity").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s.Handler(), http.MethodGet, "/liquidity").Code)
	assert.Equal(t, "open", s.breaker.State())

	rec := serve(s.Handler(), http.MethodGet, "/liquidity")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, errUpstreamUnavailable, rec.Body.String())
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the upstream")

	expected := `
# HELP test_upstream_breaker_rejections_total Total number of requests rejected by the open upstream circuit breaker
# TYPE test_upstream_breaker_rejections_total counter
test_upstream_breaker_rejections_total 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"test_upstream_breaker_rejections_total"))
}

func TestServer_CircuitBreakerRecovers(t *testing.T) {
	t.Parallel()

	var status, hits atomic.Int32
	status.Store(http.StatusBadGateway)

	s := NewServer(nil, NewHolder(nil),
		WithUpstream(statusUpstream(t, &status, &hits)),
		WithCircuitBreaker(BreakerConfig{Threshold: 1, Timeout: 50 * time.Millisecond}),
	)

	assert.Equal(t, http.StatusBadGateway, serve(s.Handler(), http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(s.Handler(), http.MethodGet, "/").Code)

	status.Store(http.StatusOK)
	assert.Eventually(t, func() bool {
		return serve(s.Handler(), http.MethodGet, "/").Code == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "closed", s.breaker.State())
}

func TestServer_NoBreakerWithoutUpstream(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(nil),
		WithCircuitBreaker(BreakerConfig{Threshold: 1, Timeout: time.Second}))

	assert.Nil(t, s.breaker)
	assert.Equal(t, http.StatusNotFound, serve(s.Handler(), http.MethodGet, "/anything").Code)
}

func TestBreaker_SuccessesKeepClosed(t *testing.T) {
	t.Parallel()

	b := newBreaker(BreakerConfig{Threshold: 2, Timeout: time.Minute}, observability.NopLogger(), nil)
	h := b.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, "closed", b.State())
}
