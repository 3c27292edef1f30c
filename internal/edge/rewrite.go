package edge

import (
	"bufio"
	"net"
	"net/http"
	"net/url"

	"github.com/vyrodovalexey/webedge/internal/observability"
	"github.com/vyrodovalexey/webedge/internal/rules"
)

// Rule kinds as reported in metrics.
const (
	kindRedirect = "redirect"
	kindRewrite  = "rewrite"
	kindHeader   = "header"
)

// RuleOption configures the rule middleware.
type RuleOption func(*ruleHandler)

// WithRuleLogger sets the logger of the rule middleware.
func WithRuleLogger(logger observability.Logger) RuleOption {
	return func(h *ruleHandler) {
		h.logger = logger
	}
}

// WithRuleMetrics sets the metrics of the rule middleware.
func WithRuleMetrics(metrics *observability.Metrics) RuleOption {
	return func(h *ruleHandler) {
		h.metrics = metrics
	}
}

// WithExternalProxy sets the handler for rewrites to absolute URLs.
func WithExternalProxy(proxy *ExternalProxy) RuleOption {
	return func(h *ruleHandler) {
		h.external = proxy
	}
}

type ruleHandler struct {
	holder   *Holder
	next     http.Handler
	logger   observability.Logger
	metrics  *observability.Metrics
	external *ExternalProxy
}

// Rules returns a middleware that evaluates the current rule table for
// every request. A redirect answers the request. A rewrite to a path
// changes the routed path while the client URL stays the same; a rewrite
// to an absolute URL is proxied there. Matching header rules are set on
// the response just before it is committed, overriding downstream values.
func Rules(holder *Holder, opts ...RuleOption) Middleware {
	return func(next http.Handler) http.Handler {
		h := &ruleHandler{
			holder: holder,
			next:   next,
			logger: observability.NopLogger(),
		}
		for _, opt := range opts {
			opt(h)
		}
		if h.external == nil {
			h.external = NewExternalProxy(h.logger)
		}
		return h
	}
}

// ServeHTTP implements http.Handler.
func (h *ruleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.holder.Load()
	if snap == nil || snap.Table == nil {
		h.next.ServeHTTP(w, r)
		return
	}

	res := snap.Table.Evaluate(r.URL.Path)

	if res.Redirect != nil {
		h.redirect(w, r, res.Redirect)
		return
	}

	if len(res.Headers) > 0 {
		h.metrics.RecordRuleMatch(kindHeader)
		w = &headerResponseWriter{ResponseWriter: w, headers: res.Headers}
	}

	if !res.Rewritten {
		h.next.ServeHTTP(w, r)
		return
	}

	h.metrics.RecordRuleMatch(kindRewrite)

	dest, err := url.Parse(res.Rewrite)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("invalid rewrite destination",
			observability.Path(r.URL.Path),
			observability.String("destination", res.Rewrite),
			observability.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	h.logger.WithContext(r.Context()).Debug("request rewritten",
		observability.Path(r.URL.Path),
		observability.String("destination", res.Rewrite),
	)

	if dest.IsAbs() {
		h.external.ServeURL(w, r, dest)
		return
	}

	h.next.ServeHTTP(w, rewriteRequest(r, dest))
}

func (h *ruleHandler) redirect(w http.ResponseWriter, r *http.Request, redirect *rules.Redirect) {
	status := redirect.StatusCode()

	h.metrics.RecordRuleMatch(kindRedirect)
	h.metrics.RecordRedirect(status)

	h.logger.WithContext(r.Context()).Debug("request redirected",
		observability.Path(r.URL.Path),
		observability.String("location", redirect.Location),
		observability.String("source", redirect.Source),
		observability.Int("status", status),
	)

	w.Header().Set("Location", redirect.Location)
	w.WriteHeader(status)
}

// rewriteRequest returns a copy of r routed to dest. The query of dest is
// merged over the incoming query; RequestURI keeps the client's URL.
func rewriteRequest(r *http.Request, dest *url.URL) *http.Request {
	out := r.Clone(r.Context())
	out.URL.Path = dest.Path
	out.URL.RawPath = dest.RawPath

	if dest.RawQuery != "" {
		q := r.URL.Query()
		for k, vs := range dest.Query() {
			q[k] = vs
		}
		out.URL.RawQuery = q.Encode()
	}

	return out
}

// headerResponseWriter sets rule headers right before the header is
// written.
type headerResponseWriter struct {
	http.ResponseWriter
	headers       []rules.Header
	headerWritten bool
}

func (rw *headerResponseWriter) apply() {
	if rw.headerWritten {
		return
	}
	rw.headerWritten = true
	for _, hdr := range rw.headers {
		rw.ResponseWriter.Header().Set(hdr.Key, hdr.Value)
	}
}

// WriteHeader applies the rule headers before writing.
func (rw *headerResponseWriter) WriteHeader(code int) {
	rw.apply()
	rw.ResponseWriter.WriteHeader(code)
}

// Write ensures the rule headers are applied before the body.
func (rw *headerResponseWriter) Write(b []byte) (int, error) {
	rw.apply()
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *headerResponseWriter) Flush() {
	rw.apply()
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker.
func (rw *headerResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (rw *headerResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
