/*
Package marketdata provides the upstream data surface consumed by the
capability layer.

Two implementations of Provider exist:

  - Static: in-memory fixture catalog (YAML-loadable), the default mode.
    Deterministic, credential-free; used by tests and local development.
  - Client: HTTP upstream with retries, request pacing, and a circuit
    breaker. Process-wide credentials are configured once at construction.

Absence is not an error: unknown tickers and unsupported currency pairs
yield nil values or empty slices, which the capability layer passes through
as the documented null/empty contract.
*/
package marketdata
