package plugins

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/rules"
)

// SecurityHeadersSource matches every path.
const SecurityHeadersSource = "/:path*"

// SecurityHeadersConfig configures the site-wide security header rule.
type SecurityHeadersConfig struct {
	// XFrameOptions sets the X-Frame-Options header.
	// Valid values: DENY, SAMEORIGIN
	XFrameOptions string

	// XContentTypeOptions sets the X-Content-Type-Options header.
	// Valid value: nosniff
	XContentTypeOptions string

	// ReferrerPolicy sets the Referrer-Policy header.
	ReferrerPolicy string

	// PermissionsPolicy sets the Permissions-Policy header.
	PermissionsPolicy string

	// HSTS configures Strict-Transport-Security. Nil omits the header.
	HSTS *HSTSConfig
}

// HSTSConfig configures HTTP Strict Transport Security.
type HSTSConfig struct {
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

// DefaultSecurityHeaders returns the headers applied to every page.
func DefaultSecurityHeaders() *SecurityHeadersConfig {
	return &SecurityHeadersConfig{
		XFrameOptions:       "SAMEORIGIN",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		HSTS: &HSTSConfig{
			MaxAge:            31536000,
			IncludeSubDomains: true,
		},
	}
}

var validReferrerPolicies = map[string]bool{
	"no-referrer":                     true,
	"no-referrer-when-downgrade":      true,
	"origin":                          true,
	"origin-when-cross-origin":        true,
	"same-origin":                     true,
	"strict-origin":                   true,
	"strict-origin-when-cross-origin": true,
	"unsafe-url":                      true,
}

// Validate validates the security header configuration.
func (c *SecurityHeadersConfig) Validate() error {
	if c.XFrameOptions != "" {
		upper := strings.ToUpper(c.XFrameOptions)
		if upper != "DENY" && upper != "SAMEORIGIN" {
			return fmt.Errorf("invalid X-Frame-Options: %s", c.XFrameOptions)
		}
	}

	if c.XContentTypeOptions != "" && c.XContentTypeOptions != "nosniff" {
		return fmt.Errorf("invalid X-Content-Type-Options: %s (must be 'nosniff')", c.XContentTypeOptions)
	}

	if c.ReferrerPolicy != "" && !validReferrerPolicies[c.ReferrerPolicy] {
		return fmt.Errorf("invalid referrer policy: %s", c.ReferrerPolicy)
	}

	if c.HSTS != nil {
		if c.HSTS.MaxAge < 0 {
			return errors.New("hsts maxAge must be non-negative")
		}
		// Preload requires includeSubDomains and maxAge >= 1 year
		if c.HSTS.Preload {
			if !c.HSTS.IncludeSubDomains {
				return errors.New("hsts preload requires includeSubDomains")
			}
			if c.HSTS.MaxAge < 31536000 {
				return errors.New("hsts preload requires maxAge >= 31536000 (1 year)")
			}
		}
	}

	return nil
}

// Headers returns the configured headers in a stable order.
func (c *SecurityHeadersConfig) Headers() []rules.Header {
	var headers []rules.Header
	add := func(key, value string) {
		if value != "" {
			headers = append(headers, rules.Header{Key: key, Value: value})
		}
	}

	add("X-Frame-Options", c.XFrameOptions)
	add("X-Content-Type-Options", c.XContentTypeOptions)
	add("Referrer-Policy", c.ReferrerPolicy)
	add("Permissions-Policy", c.PermissionsPolicy)

	if c.HSTS != nil {
		value := "max-age=" + strconv.Itoa(c.HSTS.MaxAge)
		if c.HSTS.IncludeSubDomains {
			value += "; includeSubDomains"
		}
		if c.HSTS.Preload {
			value += "; preload"
		}
		add("Strict-Transport-Security", value)
	}

	return headers
}

// SecurityHeaders appends a header rule applying cfg to every path.
// Being last in the header table, it overrides earlier rules that set
// the same keys.
func SecurityHeaders(cfg *SecurityHeadersConfig) Transform {
	return func(site *config.Site) (*config.Site, error) {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("security headers: %w", err)
		}

		headers := cfg.Headers()
		if len(headers) == 0 {
			return site, nil
		}

		site.Spec.Headers = append(site.Spec.Headers, config.HeaderRule{
			Source:  SecurityHeadersSource,
			Headers: headers,
		})
		return site, nil
	}
}
