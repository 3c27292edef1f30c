package plugins

import (
	"slices"

	"github.com/vyrodovalexey/webedge/internal/config"
)

// Bundler plugin names.
const (
	StyleExtractPlugin   = "vanilla-extract"
	BundleAnalyzerPlugin = "bundle-analyzer"
)

// AnalyzeEnvKey enables the bundle analyzer when set to "true".
const AnalyzeEnvKey = "ANALYZE"

// StyleExtract registers the zero-runtime style extraction plugin.
func StyleExtract() Transform {
	return func(site *config.Site) (*config.Site, error) {
		addPlugin(&site.Spec.Build, StyleExtractPlugin)
		return site, nil
	}
}

// BundleAnalyzer enables the bundle size report when ANALYZE=true in
// the environment seen through lookup.
func BundleAnalyzer(lookup config.LookupFunc) Transform {
	return func(site *config.Site) (*config.Site, error) {
		if v, ok := lookup(AnalyzeEnvKey); !ok || v != "true" {
			return site, nil
		}

		site.Spec.Build.Analyze = true
		addPlugin(&site.Spec.Build, BundleAnalyzerPlugin)
		return site, nil
	}
}

func addPlugin(build *config.BuildConfig, name string) {
	if !slices.Contains(build.Plugins, name) {
		build.Plugins = append(build.Plugins, name)
	}
}
