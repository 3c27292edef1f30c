// Package rules compiles and evaluates the declarative rewrite,
// redirect, and header rule tables of a site.
//
// # Evaluation
//
// For a request path:
//
//  1. The redirect table is scanned top to bottom. The first match
//     yields a Redirect and nothing else is evaluated.
//  2. The rewrite table is scanned top to bottom. The first match gives
//     the internal destination; the client-visible URL is unchanged.
//  3. Every matching header rule contributes its headers. On a key
//     collision the later rule wins.
//
// # Validation
//
// NewTable refuses a table containing any malformed pattern or any
// destination that references a capture its source does not bind:
//
//	table, err := rules.NewTable([]rules.Rule{
//	    {Kind: rules.KindRedirect, Source: "/swap/:outputCurrency",
//	        Destination: "/swap?outputCurrency=:outputCurrency", Permanent: true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if r, ok := table.MatchRedirect("/swap/CAKE"); ok {
//	    // r.Location == "/swap?outputCurrency=CAKE", r.StatusCode() == 308
//	}
package rules
