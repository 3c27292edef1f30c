package config

import (
	"maps"
	"slices"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/rules"
)

// Site document identity.
const (
	APIVersionPrefix = "webedge.io/"
	APIVersionV1     = APIVersionPrefix + "v1"
	KindSite         = "Site"
)

// Banner group orderings.
const (
	OrderingFixed    = "fixed"
	OrderingShuffled = "shuffled"
)

// Site is the root of a site configuration document.
type Site struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       SiteSpec `yaml:"spec" json:"spec"`
}

// Metadata contains site metadata.
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// SiteSpec contains the site specification.
type SiteSpec struct {
	Compiler          CompilerConfig     `yaml:"compiler,omitempty" json:"compiler,omitempty"`
	Experimental      ExperimentalConfig `yaml:"experimental,omitempty" json:"experimental,omitempty"`
	TranspilePackages []string           `yaml:"transpilePackages,omitempty" json:"transpilePackages,omitempty"`
	ReactStrictMode   bool               `yaml:"reactStrictMode,omitempty" json:"reactStrictMode,omitempty"`
	SWCMinify         bool               `yaml:"swcMinify,omitempty" json:"swcMinify,omitempty"`
	Images            ImagesConfig       `yaml:"images,omitempty" json:"images,omitempty"`

	Rewrites  []RewriteRule  `yaml:"rewrites,omitempty" json:"rewrites,omitempty"`
	Redirects []RedirectRule `yaml:"redirects,omitempty" json:"redirects,omitempty"`
	Headers   []HeaderRule   `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Env holds variables exposed to the client bundle.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	Build   BuildConfig   `yaml:"build,omitempty" json:"build,omitempty"`
	Banners []BannerGroup `yaml:"banners,omitempty" json:"banners,omitempty"`
	Menu    MenuConfig    `yaml:"menu,omitempty" json:"menu,omitempty"`
}

// CompilerConfig toggles compiler transforms.
type CompilerConfig struct {
	StyledComponents bool `yaml:"styledComponents,omitempty" json:"styledComponents,omitempty"`
}

// ExperimentalConfig holds experimental build options.
type ExperimentalConfig struct {
	ScrollRestoration         bool                `yaml:"scrollRestoration,omitempty" json:"scrollRestoration,omitempty"`
	OutputFileTracingRoot     string              `yaml:"outputFileTracingRoot,omitempty" json:"outputFileTracingRoot,omitempty"`
	OutputFileTracingExcludes map[string][]string `yaml:"outputFileTracingExcludes,omitempty" json:"outputFileTracingExcludes,omitempty"`
}

// ImagesConfig configures the image optimizer.
type ImagesConfig struct {
	// ContentDispositionType is "inline" or "attachment".
	ContentDispositionType string          `yaml:"contentDispositionType,omitempty" json:"contentDispositionType,omitempty"`
	RemotePatterns         []RemotePattern `yaml:"remotePatterns,omitempty" json:"remotePatterns,omitempty"`
}

// RemotePattern allows optimizing images from a remote origin.
type RemotePattern struct {
	Protocol string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Hostname string `yaml:"hostname" json:"hostname"`
	Port     string `yaml:"port,omitempty" json:"port,omitempty"`
	Pathname string `yaml:"pathname,omitempty" json:"pathname,omitempty"`
}

// RewriteRule maps a public path to an internal destination.
type RewriteRule struct {
	Source      string `yaml:"source" json:"source"`
	Destination string `yaml:"destination" json:"destination"`
}

// RedirectRule sends the client to a new location.
type RedirectRule struct {
	Source      string `yaml:"source" json:"source"`
	Destination string `yaml:"destination" json:"destination"`
	Permanent   bool   `yaml:"permanent" json:"permanent"`
}

// HeaderRule adds response headers to every path matching Source.
type HeaderRule struct {
	Source  string         `yaml:"source" json:"source"`
	Headers []rules.Header `yaml:"headers" json:"headers"`
}

// BuildConfig describes bundler settings that transforms extend.
type BuildConfig struct {
	// Plugins are registered bundler plugins, in order.
	Plugins []string `yaml:"plugins,omitempty" json:"plugins,omitempty"`

	// Defines are compile-time constant substitutions.
	Defines map[string]string `yaml:"defines,omitempty" json:"defines,omitempty"`

	// WorkerDependencies are the packages bundled into the quote worker.
	// Names under the "@pancakeswap/" scope resolve to workspace paths.
	WorkerDependencies []string `yaml:"workerDependencies,omitempty" json:"workerDependencies,omitempty"`

	// SplitChunks is nil when chunk splitting is disabled.
	SplitChunks *SplitChunksConfig `yaml:"splitChunks,omitempty" json:"splitChunks,omitempty"`

	// Analyze enables the bundle size report.
	Analyze bool `yaml:"analyze,omitempty" json:"analyze,omitempty"`
}

// SplitChunksConfig configures chunk splitting.
type SplitChunksConfig struct {
	CacheGroups []CacheGroup `yaml:"cacheGroups,omitempty" json:"cacheGroups,omitempty"`
}

// CacheGroup assigns modules whose resource path contains any of Test to
// a named chunk.
type CacheGroup struct {
	Name               string   `yaml:"name" json:"name"`
	Chunks             string   `yaml:"chunks,omitempty" json:"chunks,omitempty"`
	Test               []string `yaml:"test,omitempty" json:"test,omitempty"`
	Priority           int      `yaml:"priority,omitempty" json:"priority,omitempty"`
	ReuseExistingChunk bool     `yaml:"reuseExistingChunk,omitempty" json:"reuseExistingChunk,omitempty"`
}

// Matches reports whether resource belongs to the cache group.
func (g CacheGroup) Matches(resource string) bool {
	if resource == "" {
		return false
	}
	for _, t := range g.Test {
		if t != "" && strings.Contains(resource, t) {
			return true
		}
	}
	return false
}

// BannerGroup is an ordered group of home page banners.
type BannerGroup struct {
	Name string `yaml:"name" json:"name"`

	// Ordering is "fixed" (declaration order) or "shuffled" (a fresh
	// permutation on every selection). Defaults to "fixed".
	Ordering string       `yaml:"ordering,omitempty" json:"ordering,omitempty"`
	Banners  []BannerSpec `yaml:"banners" json:"banners"`
}

// BannerSpec describes a single banner.
type BannerSpec struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
	Href  string `yaml:"href,omitempty" json:"href,omitempty"`
	Image string `yaml:"image,omitempty" json:"image,omitempty"`

	// Visible is a CEL expression evaluated against the request signals.
	// Empty means always visible.
	Visible string `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// MenuConfig configures menu status badges.
type MenuConfig struct {
	IFO IFOConfig `yaml:"ifo,omitempty" json:"ifo,omitempty"`
}

// IFOConfig describes the current initial farm offering.
type IFOConfig struct {
	// Status is the badge shown on the IFO menu entry, e.g. "coming_soon"
	// or "live". Empty disables the badge.
	Status string `yaml:"status,omitempty" json:"status,omitempty"`

	// EndBlock is the last block of the offering; zero means open-ended.
	EndBlock uint64 `yaml:"endBlock,omitempty" json:"endBlock,omitempty"`
}

// Rules converts the rewrite, redirect and header sections into rule
// table entries, preserving declaration order within each kind.
func (s *Site) Rules() []rules.Rule {
	spec := &s.Spec
	out := make([]rules.Rule, 0, len(spec.Redirects)+len(spec.Rewrites)+len(spec.Headers))

	for _, r := range spec.Redirects {
		out = append(out, rules.Rule{
			Kind:        rules.KindRedirect,
			Source:      r.Source,
			Destination: r.Destination,
			Permanent:   r.Permanent,
		})
	}
	for _, r := range spec.Rewrites {
		out = append(out, rules.Rule{
			Kind:        rules.KindRewrite,
			Source:      r.Source,
			Destination: r.Destination,
		})
	}
	for _, r := range spec.Headers {
		out = append(out, rules.Rule{
			Kind:    rules.KindHeader,
			Source:  r.Source,
			Headers: slices.Clone(r.Headers),
		})
	}

	return out
}

// Clone returns a deep copy of the site.
func (s *Site) Clone() *Site {
	if s == nil {
		return nil
	}

	out := *s
	out.Metadata.Labels = maps.Clone(s.Metadata.Labels)
	out.Metadata.Annotations = maps.Clone(s.Metadata.Annotations)

	spec := &out.Spec
	spec.Experimental.OutputFileTracingExcludes = cloneStringSlices(s.Spec.Experimental.OutputFileTracingExcludes)
	spec.TranspilePackages = slices.Clone(s.Spec.TranspilePackages)
	spec.Images.RemotePatterns = slices.Clone(s.Spec.Images.RemotePatterns)
	spec.Rewrites = slices.Clone(s.Spec.Rewrites)
	spec.Redirects = slices.Clone(s.Spec.Redirects)
	spec.Env = maps.Clone(s.Spec.Env)

	if s.Spec.Headers != nil {
		spec.Headers = make([]HeaderRule, len(s.Spec.Headers))
		for i, h := range s.Spec.Headers {
			spec.Headers[i] = HeaderRule{Source: h.Source, Headers: slices.Clone(h.Headers)}
		}
	}

	spec.Build.Plugins = slices.Clone(s.Spec.Build.Plugins)
	spec.Build.WorkerDependencies = slices.Clone(s.Spec.Build.WorkerDependencies)
	spec.Build.Defines = maps.Clone(s.Spec.Build.Defines)
	if s.Spec.Build.SplitChunks != nil {
		groups := make([]CacheGroup, len(s.Spec.Build.SplitChunks.CacheGroups))
		for i, g := range s.Spec.Build.SplitChunks.CacheGroups {
			g.Test = slices.Clone(g.Test)
			groups[i] = g
		}
		spec.Build.SplitChunks = &SplitChunksConfig{CacheGroups: groups}
	}

	if s.Spec.Banners != nil {
		spec.Banners = make([]BannerGroup, len(s.Spec.Banners))
		for i, g := range s.Spec.Banners {
			g.Banners = slices.Clone(g.Banners)
			spec.Banners[i] = g
		}
	}

	return &out
}

func cloneStringSlices(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
