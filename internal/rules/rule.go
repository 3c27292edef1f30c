package rules

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/util"
)

// Kind is the kind of a rule.
type Kind string

// Rule kinds.
const (
	KindRewrite  Kind = "rewrite"
	KindRedirect Kind = "redirect"
	KindHeader   Kind = "header"
)

// Valid reports whether k is a known rule kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRewrite, KindRedirect, KindHeader:
		return true
	default:
		return false
	}
}

// Header is a response header contributed by a header rule.
type Header struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// Rule is a declarative path rule.
//
// Rewrite and redirect rules use Destination, a template whose ":name"
// references must be captured by Source. Header rules use Headers.
type Rule struct {
	Kind        Kind
	Source      string
	Destination string
	Permanent   bool
	Headers     []Header
}

// String returns a short human-readable description of the rule.
func (r Rule) String() string {
	switch r.Kind {
	case KindHeader:
		keys := make([]string, len(r.Headers))
		for i, h := range r.Headers {
			keys[i] = h.Key
		}
		return fmt.Sprintf("header %s [%s]", r.Source, strings.Join(keys, ", "))
	case KindRedirect:
		return fmt.Sprintf("redirect %s -> %s (permanent=%t)", r.Source, r.Destination, r.Permanent)
	default:
		return fmt.Sprintf("%s %s -> %s", r.Kind, r.Source, r.Destination)
	}
}

// clone returns a deep copy of the rule.
func (r Rule) clone() Rule {
	r.Headers = append([]Header(nil), r.Headers...)
	return r
}

// Redirect is the signal emitted when a redirect rule matches.
type Redirect struct {
	Location  string
	Permanent bool
	Source    string
}

// StatusCode returns 308 for permanent and 307 for temporary redirects.
// Both preserve the request method.
func (r Redirect) StatusCode() int {
	if r.Permanent {
		return http.StatusPermanentRedirect
	}
	return http.StatusTemporaryRedirect
}

// RuleError describes an invalid rule at a position in its sub-table.
type RuleError struct {
	Kind  Kind
	Index int
	Rule  string
	Err   error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("%ss[%d] (%s): %v", e.Kind, e.Index, e.Rule, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// Is reports util.ErrConfigInvalid matches.
func (e *RuleError) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// ValidationErrors collects every invalid rule of a table.
type ValidationErrors []*RuleError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no rule errors"
	}
	if len(e) == 1 {
		return "invalid rule table: " + e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("invalid rule table: %d errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap exposes the individual rule errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// Is reports util.ErrConfigInvalid matches.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}
