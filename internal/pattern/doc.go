// Package pattern implements the path patterns used by rewrite,
// redirect, and header rules.
//
// A pattern is tokenized into a small AST of segments:
//
//   - literal: "swap" matches exactly "swap"
//   - param: ":address" captures one non-empty path segment
//   - wildcard: ":all*" captures zero or more remaining segments
//
// Matching is anchored, and the single permitted wildcard must be the
// final segment, so a path matches a pattern in at most one way.
//
//	p := pattern.MustParse("/swap/:outputCurrency")
//	captures, ok := p.Match("/swap/CAKE")
//	// ok == true, captures["outputCurrency"] == "CAKE"
//
//	t := pattern.MustParseTemplate("/swap?outputCurrency=:outputCurrency")
//	t.Render(captures) // "/swap?outputCurrency=CAKE"
package pattern
