package plugins

import (
	"os"

	"github.com/vyrodovalexey/webedge/internal/compose"
	"github.com/vyrodovalexey/webedge/internal/config"
)

// Transform is a site configuration transform.
type Transform = compose.Transform[*config.Site]

// Step names, in application order.
const (
	StepDefineConstants = "define-constants"
	StepWorkerChunks    = "worker-chunks"
	StepSecurityHeaders = "security-headers"
	StepLogIngest       = "log-ingest"
	StepStyleExtract    = "style-extract"
	StepBundleAnalyzer  = "bundle-analyzer"
)

// Options configures the default transform chain.
type Options struct {
	// Defines are compile-time constants. Nil means SentryDefines.
	Defines map[string]string

	// Security configures the security header rule. Nil means
	// DefaultSecurityHeaders.
	Security *SecurityHeadersConfig

	// LogIngestEndpoint is the client log ingest URL. Empty disables
	// the log ingest rewrites.
	LogIngestEndpoint string

	// Lookup resolves environment flags read by transforms. Nil means
	// os.LookupEnv.
	Lookup config.LookupFunc
}

// Register appends the default transforms to chain in their canonical
// order and returns the chain.
func Register(chain *compose.Chain[*config.Site], opts Options) *compose.Chain[*config.Site] {
	defines := opts.Defines
	if defines == nil {
		defines = SentryDefines()
	}

	security := opts.Security
	if security == nil {
		security = DefaultSecurityHeaders()
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return chain.
		Use(StepDefineConstants, DefineConstants(defines)).
		Use(StepWorkerChunks, WorkerChunks()).
		Use(StepSecurityHeaders, SecurityHeaders(security)).
		Use(StepLogIngest, LogIngest(opts.LogIngestEndpoint)).
		Use(StepStyleExtract, StyleExtract()).
		Use(StepBundleAnalyzer, BundleAnalyzer(lookup))
}
