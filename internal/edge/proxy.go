package edge

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/vyrodovalexey/webedge/internal/observability"
)

const errBadGateway = `{"error":"bad gateway"}`

// newErrorHandler answers proxy failures with 502, or 504 when the
// upstream timed out.
func newErrorHandler(logger observability.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithContext(r.Context()).Error("proxy error",
			observability.Path(r.URL.Path),
			observability.String("target", r.URL.String()),
			observability.Error(err),
		)

		status := http.StatusBadGateway
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			status = http.StatusGatewayTimeout
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(errBadGateway))
	}
}

// ExternalProxy forwards rewritten requests to absolute destinations,
// such as a log ingest endpoint.
type ExternalProxy struct {
	logger    observability.Logger
	transport http.RoundTripper
}

// NewExternalProxy creates a proxy for absolute rewrite destinations.
func NewExternalProxy(logger observability.Logger) *ExternalProxy {
	return &ExternalProxy{logger: logger}
}

// ServeURL proxies r to target. The incoming query is kept when target
// has none.
func (p *ExternalProxy) ServeURL(w http.ResponseWriter, r *http.Request, target *url.URL) {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			out := *target
			if out.RawQuery == "" {
				out.RawQuery = pr.In.URL.RawQuery
			}
			pr.Out.URL = &out
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		Transport:    p.transport,
		ErrorHandler: newErrorHandler(p.logger),
	}
	proxy.ServeHTTP(w, r)
}

// Upstream forwards requests no local handler serves to the application
// host the rules front.
type Upstream struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// NewUpstream creates a proxy to target.
func NewUpstream(target *url.URL, logger observability.Logger) *Upstream {
	return &Upstream{
		target: target,
		proxy: &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
			},
			ErrorHandler: newErrorHandler(logger),
		},
	}
}

// ServeHTTP implements http.Handler.
func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}

// Target returns the upstream URL.
func (u *Upstream) Target() *url.URL {
	return u.target
}
