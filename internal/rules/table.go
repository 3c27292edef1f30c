package rules

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/pattern"
)

// compiledRule is a rule with its source and destination pre-parsed.
type compiledRule struct {
	rule        Rule
	source      *pattern.Pattern
	destination *pattern.Template
}

// Table is a compiled, immutable rule table.
//
// Redirects, rewrites and header rules are independent sub-tables, each
// evaluated in declaration order. A Table never changes after NewTable
// returns, so it is safe for concurrent use without locking.
type Table struct {
	all       []Rule
	redirects []compiledRule
	rewrites  []compiledRule
	headers   []compiledRule
}

// Result is the outcome of evaluating a path against a Table.
type Result struct {
	// Redirect is set when a redirect rule matched. Nothing else is
	// evaluated in that case.
	Redirect *Redirect

	// Rewrite is the internal destination path when Rewritten is true.
	Rewrite   string
	Rewritten bool

	// Headers are the merged contributions of all matching header rules.
	Headers []Header
}

// NewTable compiles rules into a Table.
//
// Every rule is validated; if any rule is invalid no table is returned
// and the error is a ValidationErrors listing all of them.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{all: make([]Rule, 0, len(rules))}

	var errs ValidationErrors
	counts := make(map[Kind]int, 3)

	for _, r := range rules {
		index := counts[r.Kind]
		counts[r.Kind]++

		compiled, err := compile(r)
		if err != nil {
			errs = append(errs, &RuleError{Kind: r.Kind, Index: index, Rule: r.Source, Err: err})
			continue
		}

		t.all = append(t.all, r.clone())
		switch r.Kind {
		case KindRedirect:
			t.redirects = append(t.redirects, compiled)
		case KindRewrite:
			t.rewrites = append(t.rewrites, compiled)
		case KindHeader:
			t.headers = append(t.headers, compiled)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return t, nil
}

// MustNewTable is like NewTable but panics on error.
func MustNewTable(rules []Rule) *Table {
	t, err := NewTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// compile validates and pre-parses a single rule.
func compile(r Rule) (compiledRule, error) {
	if !r.Kind.Valid() {
		return compiledRule{}, fmt.Errorf("unknown rule kind %q", r.Kind)
	}

	source, err := pattern.Parse(r.Source)
	if err != nil {
		return compiledRule{}, err
	}

	compiled := compiledRule{rule: r.clone(), source: source}

	if r.Kind == KindHeader {
		if r.Destination != "" {
			return compiledRule{}, errors.New("header rules do not take a destination")
		}
		if len(r.Headers) == 0 {
			return compiledRule{}, errors.New("header rule has no headers")
		}
		for _, h := range r.Headers {
			if strings.TrimSpace(h.Key) == "" {
				return compiledRule{}, errors.New("header key is required")
			}
			if strings.ContainsAny(h.Key, ": \t\r\n") {
				return compiledRule{}, fmt.Errorf("invalid header key %q", h.Key)
			}
		}
		return compiled, nil
	}

	if len(r.Headers) > 0 {
		return compiledRule{}, errors.New("headers are only allowed on header rules")
	}
	if r.Destination == "" {
		return compiledRule{}, errors.New("destination is required")
	}

	destination, err := pattern.ParseTemplate(r.Destination)
	if err != nil {
		return compiledRule{}, err
	}
	if err := pattern.CheckBindings(source, destination); err != nil {
		return compiledRule{}, err
	}
	compiled.destination = destination

	return compiled, nil
}

// MatchRedirect returns the first redirect rule matching path.
func (t *Table) MatchRedirect(path string) (*Redirect, bool) {
	for i := range t.redirects {
		r := &t.redirects[i]
		if captures, ok := r.source.Match(path); ok {
			return &Redirect{
				Location:  r.destination.Render(captures),
				Permanent: r.rule.Permanent,
				Source:    r.rule.Source,
			}, true
		}
	}
	return nil, false
}

// MatchRewrite returns the destination of the first rewrite rule matching path.
func (t *Table) MatchRewrite(path string) (string, bool) {
	for i := range t.rewrites {
		r := &t.rewrites[i]
		if captures, ok := r.source.Match(path); ok {
			return r.destination.Render(captures), true
		}
	}
	return "", false
}

// MatchHeaders returns the headers of every header rule matching path.
//
// Contributions are appended in table order. When two contributions use
// the same header key (compared case-insensitively) the later value wins
// and the header keeps the position of its first appearance.
func (t *Table) MatchHeaders(path string) []Header {
	var (
		out       []Header
		positions map[string]int
	)

	for i := range t.headers {
		r := &t.headers[i]
		if !r.source.Matches(path) {
			continue
		}

		if positions == nil {
			positions = make(map[string]int)
		}
		for _, h := range r.rule.Headers {
			key := http.CanonicalHeaderKey(h.Key)
			if pos, ok := positions[key]; ok {
				out[pos].Value = h.Value
				continue
			}
			positions[key] = len(out)
			out = append(out, h)
		}
	}

	return out
}

// Evaluate evaluates path against all sub-tables. A matching redirect
// terminates evaluation; otherwise the rewrite and header tables are
// evaluated independently of each other.
func (t *Table) Evaluate(path string) Result {
	if redirect, ok := t.MatchRedirect(path); ok {
		return Result{Redirect: redirect}
	}

	var res Result
	res.Rewrite, res.Rewritten = t.MatchRewrite(path)
	res.Headers = t.MatchHeaders(path)
	return res
}

// Rules returns a copy of the rules in declaration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.all))
	for i, r := range t.all {
		out[i] = r.clone()
	}
	return out
}

// Len returns the number of rules of the given kind.
func (t *Table) Len(kind Kind) int {
	switch kind {
	case KindRedirect:
		return len(t.redirects)
	case KindRewrite:
		return len(t.rewrites)
	case KindHeader:
		return len(t.headers)
	default:
		return 0
	}
}
