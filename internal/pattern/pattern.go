package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/util"
)

// ErrInvalidPattern is returned (wrapped) for malformed patterns and templates.
var ErrInvalidPattern = errors.New("invalid path pattern")

// Kind identifies the type of a pattern segment.
type Kind int

const (
	// Literal segments must equal the path segment exactly.
	Literal Kind = iota
	// Param segments (":name") capture exactly one non-empty path segment.
	Param
	// Wildcard segments (":name*") capture zero or more remaining segments.
	Wildcard
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Param:
		return "param"
	case Wildcard:
		return "wildcard"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Segment is one node of a parsed pattern. Value holds the literal text
// for Literal segments and the capture name otherwise.
type Segment struct {
	Kind  Kind
	Value string
}

// Captures maps capture names to the path text they matched.
type Captures map[string]string

// SyntaxError describes why a pattern or template could not be parsed.
type SyntaxError struct {
	Input   string
	Segment int
	Reason  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("invalid pattern %q: segment %d: %s", e.Input, e.Segment, e.Reason)
	}
	return fmt.Sprintf("invalid pattern %q: %s", e.Input, e.Reason)
}

// Is reports ErrInvalidPattern and util.ErrConfigInvalid matches.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrInvalidPattern || target == util.ErrConfigInvalid
}

// Pattern is a compiled source pattern such as "/info/pools/:address"
// or "/images/tokens/:all*".
//
// A Pattern is immutable and safe for concurrent use.
type Pattern struct {
	raw      string
	segments []Segment
	names    []string
}

// Parse tokenizes raw into a Pattern.
//
// The grammar is a "/"-separated list of segments. A segment is either
// literal text, ":name" or ":name*". At most one wildcard is allowed and
// it must be the final segment. A single trailing slash is ignored.
func Parse(raw string) (*Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, &SyntaxError{Input: raw, Segment: -1, Reason: "must start with '/'"}
	}
	if strings.Contains(raw, "//") {
		return nil, &SyntaxError{Input: raw, Segment: -1, Reason: "empty segment"}
	}

	p := &Pattern{raw: raw}

	body := strings.TrimSuffix(raw[1:], "/")
	if body == "" {
		return p, nil
	}

	parts := strings.Split(body, "/")
	p.segments = make([]Segment, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for i, part := range parts {
		seg, reason := tokenize(part)
		if reason != "" {
			return nil, &SyntaxError{Input: raw, Segment: i, Reason: reason}
		}

		if seg.Kind == Wildcard && i != len(parts)-1 {
			return nil, &SyntaxError{Input: raw, Segment: i, Reason: "wildcard capture must be the last segment"}
		}

		if seg.Kind != Literal {
			if seen[seg.Value] {
				return nil, &SyntaxError{Input: raw, Segment: i, Reason: fmt.Sprintf("duplicate capture %q", seg.Value)}
			}
			seen[seg.Value] = true
			p.names = append(p.names, seg.Value)
		}

		p.segments = append(p.segments, seg)
	}

	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) *Pattern {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// tokenize classifies a single segment. A non-empty reason means the
// segment is malformed.
func tokenize(part string) (seg Segment, reason string) {
	if part == "" {
		return Segment{}, "empty segment"
	}

	if part[0] == ':' {
		name := part[1:]
		kind := Param
		if strings.HasSuffix(name, "*") {
			name = strings.TrimSuffix(name, "*")
			kind = Wildcard
		}
		if !isIdentifier(name) {
			return Segment{}, fmt.Sprintf("invalid capture name %q", name)
		}
		return Segment{Kind: kind, Value: name}, ""
	}

	if strings.ContainsRune(part, ':') {
		return Segment{}, "captures must span a whole segment"
	}
	if strings.ContainsRune(part, '*') {
		return Segment{}, "'*' is only allowed after a capture name"
	}

	return Segment{Kind: Literal, Value: part}, ""
}

// Match matches path against the pattern. The match is anchored: every
// path segment must be consumed, except by a terminal wildcard which
// absorbs the remainder. path must already be stripped of any query or
// fragment; a literal '?' or '#' in it is matched like any other byte.
func (p *Pattern) Match(path string) (Captures, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}

	var parts []string
	if body := strings.TrimSuffix(path[1:], "/"); body != "" {
		parts = strings.Split(body, "/")
	}

	captures := make(Captures, len(p.names))

	for i, seg := range p.segments {
		switch seg.Kind {
		case Wildcard:
			captures[seg.Value] = strings.Join(parts[i:], "/")
			return captures, true
		case Param:
			if i >= len(parts) || parts[i] == "" {
				return nil, false
			}
			captures[seg.Value] = parts[i]
		default:
			if i >= len(parts) || parts[i] != seg.Value {
				return nil, false
			}
		}
	}

	if len(parts) != len(p.segments) {
		return nil, false
	}
	return captures, true
}

// Matches reports whether path matches the pattern.
func (p *Pattern) Matches(path string) bool {
	_, ok := p.Match(path)
	return ok
}

// Names returns the capture names in declaration order.
func (p *Pattern) Names() []string {
	return append([]string(nil), p.names...)
}

// Binds reports whether the pattern captures name.
func (p *Pattern) Binds(name string) bool {
	for _, n := range p.names {
		if n == name {
			return true
		}
	}
	return false
}

// Segments returns a copy of the parsed segments.
func (p *Pattern) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// HasWildcard reports whether the pattern ends in a wildcard capture.
func (p *Pattern) HasWildcard() bool {
	return len(p.segments) > 0 && p.segments[len(p.segments)-1].Kind == Wildcard
}

// String returns the raw pattern.
func (p *Pattern) String() string {
	return p.raw
}

// isIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
