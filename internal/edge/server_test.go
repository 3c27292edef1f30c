package edge

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/webedge/internal/banners"
	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/observability"
	"github.com/vyrodovalexey/webedge/internal/rules"
)

func init() {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})
}

func lookup(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// siteSnapshot builds a snapshot from the default site file.
func siteSnapshot(t *testing.T, env map[string]string) *Snapshot {
	t.Helper()

	site, err := config.NewLoader(config.WithLookup(lookup(env))).Load("../../configs/webedge.yaml")
	require.NoError(t, err)
	require.NoError(t, config.ValidateSite(site))

	table, err := rules.NewTable(site.Rules())
	require.NoError(t, err)

	catalog, err := banners.NewCatalog(site.Spec.Banners,
		banners.WithShuffler(func() banners.Shuffler { return rand.New(rand.NewPCG(1, 2)) }))
	require.NoError(t, err)

	return &Snapshot{
		Site:    site.Metadata.Name,
		Table:   table,
		Catalog: catalog,
		Menu:    site.Spec.Menu,
	}
}

// echoUpstream answers with the path and query it received.
func echoUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Upstream", "app")
		_, _ = io.WriteString(w, r.URL.RequestURI())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServer_Redirects(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)))

	tests := []struct {
		path     string
		status   int
		location string
	}{
		{"/send", http.StatusPermanentRedirect, "/swap"},
		{"/swap/CAKE", http.StatusPermanentRedirect, "/swap?outputCurrency=CAKE"},
		{"/create/BNB/CAKE", http.StatusPermanentRedirect, "/add/BNB/CAKE"},
		{"/create", http.StatusPermanentRedirect, "/add"},
		{"/info/pools/0xabc", http.StatusPermanentRedirect, "/info/pairs/0xabc"},
		{
			"/api/v3/56/farms/liquidity/0xabc",
			http.StatusTemporaryRedirect,
			"https://farms-api.pancakeswap.com/v3/56/liquidity/0xabc",
		},
		{
			"/images/tokens/0xabc.png",
			http.StatusTemporaryRedirect,
			"https://tokens.pancakeswap.finance/images/0xabc.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			rec := serve(s.Handler(), http.MethodGet, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestServer_EncodedReservedCharsInPath(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)))

	tests := []struct {
		name     string
		target   string
		status   int
		location string
	}{
		{name: "encoded question mark", target: "/send%3Fanything/else", status: http.StatusNotFound},
		{name: "encoded question mark single segment", target: "/send%3Fx", status: http.StatusNotFound},
		{name: "encoded hash", target: "/send%23frag", status: http.StatusNotFound},
		{name: "real query string", target: "/send?x=1", status: http.StatusPermanentRedirect, location: "/swap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(s.Handler(), http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestServer_RewriteKeepsClientURL(t *testing.T) {
	t.Parallel()

	upstream := echoUpstream(t)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)), WithUpstream(target))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"token", "/info/token/0x1", "/info/tokens/0x1"},
		{"pool", "/info/pool/0x2?tab=tx", "/info/pools/0x2?tab=tx"},
		{"no rule", "/farms", "/farms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(s.Handler(), http.MethodGet, tt.path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Header().Get("Location"))
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestServer_HeaderRules(t *testing.T) {
	t.Parallel()

	upstream := echoUpstream(t)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)), WithUpstream(target))

	tests := []struct {
		path         string
		cacheControl string
	}{
		{"/favicon.ico", "public, immutable, max-age=31536000"},
		{"/images/hero.png", "public, immutable, max-age=31536000"},
		{"/images/tokens/0xabc/large.png", "public, immutable, max-age=604800"},
		{"/swap", "no-cache"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			rec := serve(s.Handler(), http.MethodGet, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tt.cacheControl}, rec.Header().Values("Cache-Control"))
			assert.Equal(t, "app", rec.Header().Get("X-Upstream"))
		})
	}
}

func TestServer_HeaderRulesOnLocalResponse(t *testing.T) {
	t.Parallel()

	table, err := rules.NewTable([]rules.Rule{{
		Kind:    rules.KindHeader,
		Source:  "/api/:path*",
		Headers: []rules.Header{{Key: "X-Frame-Options", Value: "DENY"}},
	}})
	require.NoError(t, err)

	s := NewServer(nil, NewHolder(&Snapshot{Site: "test", Table: table}))

	rec := serve(s.Handler(), http.MethodGet, MenuStatusPath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestServer_AbsoluteRewriteIsProxied(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Method + " " + r.URL.RequestURI()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(ingest.Close)

	table, err := rules.NewTable([]rules.Rule{{
		Kind:        rules.KindRewrite,
		Source:      "/_axiom/logs",
		Destination: ingest.URL + "/v1/logs",
	}})
	require.NoError(t, err)

	s := NewServer(nil, NewHolder(&Snapshot{Site: "test", Table: table}))

	req := httptest.NewRequest(http.MethodPost, "/_axiom/logs?dataset=web", strings.NewReader(`[]`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "POST /v1/logs?dataset=web", <-got)
}

func TestServer_NoUpstream(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)))

	rec := serve(s.Handler(), http.MethodGet, "/info/token/0x1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/info/tokens/0x1", body["path"])
}

func TestServer_Banners(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)))

	rec := serve(s.Handler(), http.MethodGet, BannersPath+"?chainId=56&locale=en-US")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Banners []config.BannerSpec `json:"banners"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Banners)
	assert.Equal(t, "linea", body.Banners[0].ID)
	assert.Equal(t, "perpetual", body.Banners[len(body.Banners)-1].ID)
}

func TestServer_BannersBadQuery(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)))

	rec := serve(s.Handler(), http.MethodGet, BannersPath+"?chainId=bsc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "chainId")
}

func TestServer_MenuStatus(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, map[string]string{"WEBEDGE_IFO_STATUS": "live"})))

	tests := []struct {
		name   string
		query  string
		status int
		want   map[string]string
	}{
		{"empty", "", http.StatusOK, map[string]string{}},
		{"locked", "?locked=true", http.StatusOK, map[string]string{"/pools": "lock_end"}},
		{"unlocked", "?locked=false", http.StatusOK, map[string]string{}},
		{"ifo", "?block=100", http.StatusOK, map[string]string{"/ifo": "live"}},
		{"both", "?locked=1&block=7", http.StatusOK, map[string]string{"/pools": "lock_end", "/ifo": "live"}},
		{"bad locked", "?locked=maybe", http.StatusBadRequest, nil},
		{"bad block", "?block=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(s.Handler(), http.MethodGet, MenuStatusPath+tt.query)
			require.Equal(t, tt.status, rec.Code)
			if tt.want == nil {
				return
			}

			var body struct {
				Status map[string]string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status)
		})
	}
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	holder := &Holder{}
	s := NewServer(nil, holder)

	rec := serve(s.Handler(), http.MethodGet, HealthPath)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(s.Handler(), http.MethodGet, BannersPath)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	holder.Store(&Snapshot{Site: "pancake-web"})
	rec = serve(s.Handler(), http.MethodGet, HealthPath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","site":"pancake-web"}`, rec.Body.String())
}

func TestServer_SnapshotSwap(t *testing.T) {
	t.Parallel()

	first, err := rules.NewTable([]rules.Rule{{
		Kind: rules.KindRedirect, Source: "/old", Destination: "/v1", Permanent: true,
	}})
	require.NoError(t, err)
	second, err := rules.NewTable([]rules.Rule{{
		Kind: rules.KindRedirect, Source: "/old", Destination: "/v2",
	}})
	require.NoError(t, err)

	holder := NewHolder(&Snapshot{Table: first})
	s := NewServer(nil, holder)

	rec := serve(s.Handler(), http.MethodGet, "/old")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/v1", rec.Header().Get("Location"))

	holder.Store(&Snapshot{Table: second})

	rec = serve(s.Handler(), http.MethodGet, "/old")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/v2", rec.Header().Get("Location"))
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("webedge")
	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)), WithMetrics(metrics))

	serve(s.Handler(), http.MethodGet, "/send")
	serve(s.Handler(), http.MethodGet, "/swap/CAKE")

	rec := serve(s.Handler(), http.MethodGet, MetricsPath)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `webedge_rules_redirects_total{status="308"} 2`)
	assert.Contains(t, body, `webedge_rules_matches_total{kind="redirect"} 2`)
	assert.Contains(t, body, "webedge_requests_total")
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, NewHolder(siteSnapshot(t, nil)))

	rec := serve(s.Handler(), http.MethodGet, "/send")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

func TestServer_StartStop(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	s := NewServer(cfg, NewHolder(siteSnapshot(t, nil)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return s.IsRunning() && s.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get("http://" + s.Addr() + "/send")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, <-errCh)
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Stop(ctx))
}

func TestDefaultServerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
}
