package plugins

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/config"
)

// Log ingest proxy paths served by the site.
const (
	WebVitalsPath = "/_axiom/web-vitals"
	LogsPath      = "/_axiom/logs"
)

// LogIngestEnvKey exposes the ingest endpoint to the client bundle.
const LogIngestEnvKey = "NEXT_PUBLIC_AXIOM_INGEST_ENDPOINT"

// LogIngest rewrites the client log and web-vitals paths to the ingest
// endpoint and exposes the endpoint to the client. Without an endpoint
// it leaves the site unchanged.
func LogIngest(endpoint string) Transform {
	return func(site *config.Site) (*config.Site, error) {
		if endpoint == "" {
			return site, nil
		}

		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("log ingest endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("log ingest endpoint %q must be an http(s) URL", endpoint)
		}

		base := strings.TrimSuffix(endpoint, "/")
		site.Spec.Rewrites = append(site.Spec.Rewrites,
			config.RewriteRule{Source: WebVitalsPath, Destination: base + "/web-vitals"},
			config.RewriteRule{Source: LogsPath, Destination: base + "/logs"},
		)

		if site.Spec.Env == nil {
			site.Spec.Env = make(map[string]string)
		}
		site.Spec.Env[LogIngestEnvKey] = endpoint

		return site, nil
	}
}
