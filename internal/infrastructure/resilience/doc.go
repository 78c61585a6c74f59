/*
Package resilience provides a circuit breaker for upstream market data calls.

The breaker has three states (Closed, Open, Half-Open) with automatic
transitions: failures in Closed trip it Open, after Timeout it allows a
bounded number of probe requests in Half-Open, and a probe success closes
it again. Used by the HTTP market data provider so a flapping upstream
degrades to the capability null/empty contracts instead of stalls.
*/
package resilience
