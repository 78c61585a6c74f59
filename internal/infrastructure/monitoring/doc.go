// Package monitoring provides Prometheus metrics for HTTP traffic, snippet
// runs, capability invocations, and upstream provider requests.
package monitoring
