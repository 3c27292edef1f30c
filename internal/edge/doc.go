// Package edge is the HTTP host that executes a site's declared rule
// table against real traffic.
//
// Every request passes through request ID, access logging, tracing and
// panic recovery, then the rule middleware:
//
//   - a matching redirect answers 308 (permanent) or 307 (temporary);
//   - a matching rewrite routes the request to its destination without
//     changing the client URL, or proxies it when the destination is an
//     absolute URL;
//   - matching header rules are set on whatever response is produced.
//
// Requests are then routed by a gin engine serving the banner, menu
// status, health and metrics endpoints. Anything else is proxied to the
// configured upstream or answered with 404. An optional circuit breaker
// sheds upstream traffic with 503 while the upstream keeps answering 5xx.
//
// The served state lives in a Holder. Reloads publish a new Snapshot
// atomically, so in-flight requests keep the table they started with.
package edge
