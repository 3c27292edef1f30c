package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/webedge/internal/util"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		segments []Segment
		names    []string
	}{
		{
			name:     "root",
			raw:      "/",
			segments: nil,
		},
		{
			name:     "literal only",
			raw:      "/farms/archived",
			segments: []Segment{{Literal, "farms"}, {Literal, "archived"}},
		},
		{
			name:     "trailing slash ignored",
			raw:      "/send/",
			segments: []Segment{{Literal, "send"}},
		},
		{
			name:     "named capture",
			raw:      "/swap/:outputCurrency",
			segments: []Segment{{Literal, "swap"}, {Param, "outputCurrency"}},
			names:    []string{"outputCurrency"},
		},
		{
			name: "two captures",
			raw:  "/api/v3/:chainId/farms/liquidity/:address",
			segments: []Segment{
				{Literal, "api"}, {Literal, "v3"}, {Param, "chainId"},
				{Literal, "farms"}, {Literal, "liquidity"}, {Param, "address"},
			},
			names: []string{"chainId", "address"},
		},
		{
			name:     "terminal wildcard",
			raw:      "/images/tokens/:all*",
			segments: []Segment{{Literal, "images"}, {Literal, "tokens"}, {Wildcard, "all"}},
			names:    []string{"all"},
		},
		{
			name:     "literal with dot",
			raw:      "/favicon.ico",
			segments: []Segment{{Literal, "favicon.ico"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.segments, p.Segments())
			assert.Equal(t, tt.names, p.Names())
			assert.Equal(t, tt.raw, p.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{name: "empty", raw: "", reason: "must start with '/'"},
		{name: "relative", raw: "swap/:x", reason: "must start with '/'"},
		{name: "double slash", raw: "/a//b", reason: "empty segment"},
		{name: "non-terminal wildcard", raw: "/images/:all*/large", reason: "wildcard capture must be the last segment"},
		{name: "two wildcards", raw: "/:a*/:b*", reason: "wildcard capture must be the last segment"},
		{name: "empty capture name", raw: "/swap/:", reason: `invalid capture name ""`},
		{name: "bare star capture", raw: "/swap/:*", reason: `invalid capture name ""`},
		{name: "capture name starts with digit", raw: "/x/:1abc", reason: `invalid capture name "1abc"`},
		{name: "optional modifier unsupported", raw: "/x/:id?", reason: `invalid capture name "id?"`},
		{name: "inline capture", raw: "/token-:address", reason: "captures must span a whole segment"},
		{name: "star in literal", raw: "/images/*", reason: "'*' is only allowed after a capture name"},
		{name: "duplicate capture", raw: "/:a/:a", reason: `duplicate capture "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.reason)
			assert.True(t, errors.Is(err, ErrInvalidPattern))
			assert.True(t, errors.Is(err, util.ErrConfigInvalid))

			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr))
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustParse("no-slash") })
	assert.NotPanics(t, func() { MustParse("/ok") })
}

func TestPattern_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		path     string
		matched  bool
		captures Captures
	}{
		{
			name:     "exact literal",
			pattern:  "/send",
			path:     "/send",
			matched:  true,
			captures: Captures{},
		},
		{
			name:    "literal is not a prefix match",
			pattern: "/send",
			path:    "/send/more",
		},
		{
			name:    "literal mismatch",
			pattern: "/send",
			path:    "/sender",
		},
		{
			name:     "trailing slash on path",
			pattern:  "/send",
			path:     "/send/",
			matched:  true,
			captures: Captures{},
		},
		{
			name:    "decoded question mark is part of the segment",
			pattern: "/send",
			path:    "/send?x",
		},
		{
			name:    "decoded question mark does not end the path",
			pattern: "/send",
			path:    "/send?anything/else",
		},
		{
			name:     "decoded hash is captured verbatim",
			pattern:  "/swap/:outputCurrency",
			path:     "/swap/CAKE#frag",
			matched:  true,
			captures: Captures{"outputCurrency": "CAKE#frag"},
		},
		{
			name:     "named capture",
			pattern:  "/swap/:outputCurrency",
			path:     "/swap/CAKE",
			matched:  true,
			captures: Captures{"outputCurrency": "CAKE"},
		},
		{
			name:    "named capture requires a segment",
			pattern: "/swap/:outputCurrency",
			path:    "/swap",
		},
		{
			name:    "named capture does not span segments",
			pattern: "/swap/:outputCurrency",
			path:    "/swap/CAKE/BNB",
		},
		{
			name:     "multiple captures",
			pattern:  "/api/v3/:chainId/farms/liquidity/:address",
			path:     "/api/v3/56/farms/liquidity/0xabc",
			matched:  true,
			captures: Captures{"chainId": "56", "address": "0xabc"},
		},
		{
			name:     "wildcard absorbs remainder",
			pattern:  "/images/tokens/:all*",
			path:     "/images/tokens/0xabc/large.png",
			matched:  true,
			captures: Captures{"all": "0xabc/large.png"},
		},
		{
			name:     "wildcard single segment",
			pattern:  "/images/:all*",
			path:     "/images/logo.png",
			matched:  true,
			captures: Captures{"all": "logo.png"},
		},
		{
			name:     "wildcard matches zero segments",
			pattern:  "/images/:all*",
			path:     "/images",
			matched:  true,
			captures: Captures{"all": ""},
		},
		{
			name:    "wildcard still anchors the prefix",
			pattern: "/images/tokens/:all*",
			path:    "/images/logo.png",
		},
		{
			name:     "root pattern",
			pattern:  "/",
			path:     "/",
			matched:  true,
			captures: Captures{},
		},
		{
			name:    "root pattern rejects subpaths",
			pattern: "/",
			path:    "/pools",
		},
		{
			name:    "relative path never matches",
			pattern: "/:all*",
			path:    "pools",
		},
		{
			name:    "case sensitive",
			pattern: "/Send",
			path:    "/send",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := MustParse(tt.pattern)
			captures, matched := p.Match(tt.path)
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.matched, p.Matches(tt.path))
			if tt.matched {
				assert.Equal(t, tt.captures, captures)
			} else {
				assert.Nil(t, captures)
			}
		})
	}
}

func TestPattern_Accessors(t *testing.T) {
	t.Parallel()

	p := MustParse("/create/:currency*")
	assert.True(t, p.HasWildcard())
	assert.True(t, p.Binds("currency"))
	assert.False(t, p.Binds("address"))

	segments := p.Segments()
	segments[0].Value = "mutated"
	assert.Equal(t, "create", p.Segments()[0].Value)

	assert.False(t, MustParse("/").HasWildcard())
	assert.False(t, MustParse("/swap/:x").HasWildcard())
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "literal", Literal.String())
	assert.Equal(t, "param", Param.String())
	assert.Equal(t, "wildcard", Wildcard.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}
