package marketdata

import "context"

// DateLayout is the wire format for all dates crossing the provider boundary.
const DateLayout = "2006-01-02"

// PricePoint is a single dated closing price.
type PricePoint struct {
	Date  string  `json:"date" yaml:"date"`
	Price float64 `json:"price" yaml:"price"`
}

// Provider is the upstream market data surface. Lookups that find no data
// return (nil, nil) / (empty, nil); errors are reserved for transport and
// provider-internal failures.
type Provider interface {
	// TickerPrice returns the latest price for ticker, or nil if unknown.
	TickerPrice(ctx context.Context, ticker string) (*float64, error)

	// HistoricalData returns dated prices within [start, end], ascending by
	// date. No overlapping data yields an empty slice.
	HistoricalData(ctx context.Context, ticker, start, end string) ([]PricePoint, error)

	// ExchangeRate returns the conversion rate, or nil for unsupported pairs.
	ExchangeRate(ctx context.Context, from, to string) (*float64, error)

	// EarningsDates returns all known earnings dates for ticker, unordered.
	EarningsDates(ctx context.Context, ticker string) ([]string, error)

	// PriceOnDate returns the close price on date, or nil when the market
	// was closed or no data exists.
	PriceOnDate(ctx context.Context, ticker, date string) (*float64, error)
}
