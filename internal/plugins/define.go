package plugins

import (
	"fmt"
	"maps"
	"regexp"

	"github.com/vyrodovalexey/webedge/internal/config"
)

var defineKeyPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// SentryDefines returns the constants that tree-shake Sentry debug and
// tracing code out of the client bundle.
func SentryDefines() map[string]string {
	return map[string]string{
		"__SENTRY_DEBUG__":   "false",
		"__SENTRY_TRACING__": "false",
	}
}

// DefineConstants merges defines into the build's compile-time
// constants. Existing keys are overwritten.
func DefineConstants(defines map[string]string) Transform {
	defines = maps.Clone(defines)

	return func(site *config.Site) (*config.Site, error) {
		for k := range defines {
			if !defineKeyPattern.MatchString(k) {
				return nil, fmt.Errorf("invalid define key %q", k)
			}
		}

		if len(defines) == 0 {
			return site, nil
		}
		if site.Spec.Build.Defines == nil {
			site.Spec.Build.Defines = make(map[string]string, len(defines))
		}
		maps.Copy(site.Spec.Build.Defines, defines)
		return site, nil
	}
}
