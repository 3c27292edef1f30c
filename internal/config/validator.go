package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/rules"
	"github.com/vyrodovalexey/webedge/internal/util"
)

// envKeyPattern matches exposable environment variable names.
var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports util.ErrConfigInvalid matches.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Paths returns the paths of all errors in order.
func (e ValidationErrors) Paths() []string {
	paths := make([]string, len(e))
	for i, err := range e {
		paths[i] = err.Path
	}
	return paths
}

// Validator validates site configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateSite validates a site configuration.
func ValidateSite(site *Site) error {
	v := NewValidator()
	return v.Validate(site)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(site *Site) error {
	v.errors = make(ValidationErrors, 0)

	if site == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(site)
	v.validateMetadata(&site.Metadata)
	v.validateSpec(site)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateRoot validates root-level fields.
func (v *Validator) validateRoot(site *Site) {
	if site.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(site.APIVersion, APIVersionPrefix) {
		v.addError("apiVersion", "apiVersion must start with '"+APIVersionPrefix+"'")
	}

	if site.Kind == "" {
		v.addError("kind", "kind is required")
	} else if site.Kind != KindSite {
		v.addError("kind", "kind must be '"+KindSite+"'")
	}
}

// validateMetadata validates metadata fields.
func (v *Validator) validateMetadata(metadata *Metadata) {
	if metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

// validateSpec validates the site spec.
func (v *Validator) validateSpec(site *Site) {
	spec := &site.Spec

	v.validateImages(&spec.Images)
	v.validateRules(site)
	v.validateEnv(spec.Env)
	v.validateBuild(&spec.Build)
	v.validateBanners(spec.Banners)
	v.validateMenu(&spec.Menu)
}

// validateImages validates the image optimizer settings.
func (v *Validator) validateImages(images *ImagesConfig) {
	switch images.ContentDispositionType {
	case "", "inline", "attachment":
	default:
		v.addError("spec.images.contentDispositionType", "contentDispositionType must be 'inline' or 'attachment'")
	}

	for i, p := range images.RemotePatterns {
		path := fmt.Sprintf("spec.images.remotePatterns[%d]", i)

		switch p.Protocol {
		case "", "http", "https":
		default:
			v.addError(path+".protocol", "protocol must be 'http' or 'https'")
		}

		if p.Hostname == "" {
			v.addError(path+".hostname", "hostname is required")
		} else if strings.ContainsAny(p.Hostname, "/: \t") {
			v.addError(path+".hostname", fmt.Sprintf("invalid hostname: %s", p.Hostname))
		}

		if p.Port != "" {
			if port, err := strconv.Atoi(p.Port); err != nil || port < 1 || port > 65535 {
				v.addError(path+".port", fmt.Sprintf("invalid port: %s", p.Port))
			}
		}

		if p.Pathname != "" && !strings.HasPrefix(p.Pathname, "/") {
			v.addError(path+".pathname", "pathname must start with '/'")
		}
	}
}

// validateRules compiles the rule tables and reports every invalid rule
// at its position in the document.
func (v *Validator) validateRules(site *Site) {
	_, err := rules.NewTable(site.Rules())
	if err == nil {
		return
	}

	var ruleErrs rules.ValidationErrors
	if !errors.As(err, &ruleErrs) {
		v.addError("spec", err.Error())
		return
	}

	for _, re := range ruleErrs {
		v.addError(fmt.Sprintf("%s[%d]", rulesPath(re.Kind), re.Index), re.Err.Error())
	}
}

func rulesPath(kind rules.Kind) string {
	switch kind {
	case rules.KindRedirect:
		return "spec.redirects"
	case rules.KindRewrite:
		return "spec.rewrites"
	case rules.KindHeader:
		return "spec.headers"
	default:
		return "spec"
	}
}

// validateEnv validates exposed environment variable names.
func (v *Validator) validateEnv(env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !envKeyPattern.MatchString(k) {
			v.addError("spec.env."+k, "invalid environment variable name")
		}
	}
}

// validateBuild validates bundler settings.
func (v *Validator) validateBuild(build *BuildConfig) {
	seen := make(map[string]bool)
	for i, p := range build.Plugins {
		path := fmt.Sprintf("spec.build.plugins[%d]", i)
		switch {
		case p == "":
			v.addError(path, "plugin name is required")
		case seen[p]:
			v.addError(path, fmt.Sprintf("duplicate plugin: %s", p))
		default:
			seen[p] = true
		}
	}

	if build.SplitChunks == nil {
		return
	}

	names := make(map[string]bool)
	for i, g := range build.SplitChunks.CacheGroups {
		path := fmt.Sprintf("spec.build.splitChunks.cacheGroups[%d]", i)
		switch {
		case g.Name == "":
			v.addError(path+".name", "cache group name is required")
		case names[g.Name]:
			v.addError(path+".name", fmt.Sprintf("duplicate cache group name: %s", g.Name))
		default:
			names[g.Name] = true
		}

		switch g.Chunks {
		case "", "all", "async", "initial":
		default:
			v.addError(path+".chunks", "chunks must be 'all', 'async', or 'initial'")
		}
	}
}

// validateBanners validates banner groups. Visibility expressions are
// compiled by the banner catalog.
func (v *Validator) validateBanners(groups []BannerGroup) {
	groupNames := make(map[string]bool)
	ids := make(map[string]string)

	for i, g := range groups {
		path := fmt.Sprintf("spec.banners[%d]", i)

		switch {
		case g.Name == "":
			v.addError(path+".name", "banner group name is required")
		case groupNames[g.Name]:
			v.addError(path+".name", fmt.Sprintf("duplicate banner group name: %s", g.Name))
		default:
			groupNames[g.Name] = true
		}

		switch g.Ordering {
		case "", OrderingFixed, OrderingShuffled:
		default:
			v.addError(path+".ordering", "ordering must be 'fixed' or 'shuffled'")
		}

		for j, b := range g.Banners {
			bannerPath := fmt.Sprintf("%s.banners[%d]", path, j)
			v.validateBanner(&b, bannerPath, g.Name, ids)
		}
	}
}

// validateBanner validates a single banner.
func (v *Validator) validateBanner(b *BannerSpec, path, group string, ids map[string]string) {
	prev, dup := ids[b.ID]
	switch {
	case b.ID == "":
		v.addError(path+".id", "banner id is required")
	case dup:
		v.addError(path+".id", fmt.Sprintf("banner id %s already used in group %s", b.ID, prev))
	default:
		ids[b.ID] = group
	}

	if b.Href != "" {
		if _, err := url.Parse(b.Href); err != nil {
			v.addError(path+".href", fmt.Sprintf("invalid href: %v", err))
		}
	}
}

// validateMenu validates menu settings.
func (v *Validator) validateMenu(menu *MenuConfig) {
	if menu.IFO.EndBlock > 0 && menu.IFO.Status == "" {
		v.addError("spec.menu.ifo.status", "status is required when endBlock is set")
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{
		Path:    path,
		Message: message,
	})
}
