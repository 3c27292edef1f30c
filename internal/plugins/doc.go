// Package plugins provides the site configuration transforms applied at
// startup, in order:
//
//  1. define-constants: compile-time constants (Sentry tree shaking).
//  2. worker-chunks: groups the quote worker's dependencies into a chunk.
//  3. security-headers: a header rule on every path.
//  4. log-ingest: web-vitals and log proxy rewrites.
//  5. style-extract: the style extraction bundler plugin.
//  6. bundle-analyzer: the size report, only when ANALYZE=true.
//
// Each transform owns its enabling condition; the composer applies all
// of them unconditionally.
package plugins
