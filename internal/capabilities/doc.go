/*
Package capabilities defines the closed set of asynchronous data functions
reachable from sandboxed snippets.

The Surface is the only channel between untrusted code and the outside
world: no ambient network, timers, or filesystem are exposed. Bindings are
fixed at construction and never mutated afterward.

Every capability is null/empty-safe. An implementation error (upstream
outage, bad arguments, panic) is reported to the caller as an error, and
the bridge substitutes the capability's documented contract value (null
for scalar lookups, an empty list for getHistoricalData), so a failure
never surfaces inside the snippet as an exception.

The surface:

	getTickerPrice(ticker)                       -> number | null
	getHistoricalData(ticker, start, end)        -> [{date, price}] ascending
	getExchangeRate(from, to)                    -> number | null
	findLastEarningsDate(ticker, beforeDate)     -> "YYYY-MM-DD" | null
	getPriceOnDate(ticker, date)                 -> number | null
	getDateAfterTradingDays(startDate, n)        -> "YYYY-MM-DD" | null

getDateAfterTradingDays skips weekends only, with no holiday awareness, and
bounds its loop at 3×n iterations. The approximation is intentional and
matches the documented behavior.
*/
package capabilities
