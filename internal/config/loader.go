package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// escapedDollar temporarily replaces "$$" during substitution.
const escapedDollar = "\x00ESCAPED_DOLLAR\x00"

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Loader handles site configuration loading from files and readers.
type Loader struct {
	lookup LookupFunc
}

// LoaderOption is a functional option for configuring the loader.
type LoaderOption func(*Loader)

// WithLookup sets the function used to resolve ${VAR} references.
func WithLookup(lookup LookupFunc) LoaderOption {
	return func(l *Loader) {
		l.lookup = lookup
	}
}

// NewLoader creates a new configuration loader resolving variables from
// the process environment.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadSite loads a site configuration from a file path.
func LoadSite(path string) (*Site, error) {
	return NewLoader().Load(path)
}

// LoadSiteFromReader loads a site configuration from an io.Reader.
func LoadSiteFromReader(r io.Reader) (*Site, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads a site configuration from a file path.
func (l *Loader) Load(path string) (*Site, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parse(data)
}

// LoadFromReader loads a site configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*Site, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parse(data)
}

// parse decodes YAML data into a Site and applies defaults. Unknown
// fields are rejected so that a misspelled rule key fails loudly.
func (l *Loader) parse(data []byte) (*Site, error) {
	content := l.substituteEnvVars(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)

	var site Site
	if err := dec.Decode(&site); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ApplyDefaults(&site)
	return &site, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values. "$$" yields a literal "$".
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", escapedDollar)

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := l.lookup(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, escapedDollar, "$")
}

// ApplyDefaults fills optional fields with their default values.
func ApplyDefaults(site *Site) {
	for i := range site.Spec.Banners {
		if site.Spec.Banners[i].Ordering == "" {
			site.Spec.Banners[i].Ordering = OrderingFixed
		}
	}

	for i := range site.Spec.Images.RemotePatterns {
		if site.Spec.Images.RemotePatterns[i].Protocol == "" {
			site.Spec.Images.RemotePatterns[i].Protocol = "https"
		}
	}
}

// ResolveConfigPath resolves a configuration file path, checking common locations.
func ResolveConfigPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("config file not found: %s", path)
	}

	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}

	etcPath := filepath.Join(string(filepath.Separator), "etc", "webedge")
	commonPaths := []string{
		filepath.Join("configs", path),
		filepath.Join(etcPath, path),
	}
	if home, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(home, ".webedge", path))
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("config file not found: %s", path)
}
