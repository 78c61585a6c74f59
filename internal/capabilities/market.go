package capabilities

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/marketscript/backend/internal/providers/marketdata"
)

// market implements the six data capabilities over a marketdata.Provider.
type market struct {
	provider marketdata.Provider
	clock    func() time.Time
}

func (m *market) capabilities() []Capability {
	return []Capability{
		{
			Name:     "getTickerPrice",
			Params:   []string{"ticker"},
			Returns:  "number|null",
			Fallback: nil,
			Handler:  m.tickerPrice,
		},
		{
			Name:     "getHistoricalData",
			Params:   []string{"ticker", "startDate", "endDate"},
			Returns:  "[{date, price}]",
			Fallback: []interface{}{},
			Handler:  m.historicalData,
		},
		{
			Name:     "getExchangeRate",
			Params:   []string{"fromCurrency", "toCurrency"},
			Returns:  "number|null",
			Fallback: nil,
			Handler:  m.exchangeRate,
		},
		{
			Name:     "findLastEarningsDate",
			Params:   []string{"ticker", "beforeDate"},
			Returns:  "string|null",
			Fallback: nil,
			Handler:  m.lastEarningsDate,
		},
		{
			Name:     "getPriceOnDate",
			Params:   []string{"ticker", "date"},
			Returns:  "number|null",
			Fallback: nil,
			Handler:  m.priceOnDate,
		},
		{
			Name:     "getDateAfterTradingDays",
			Params:   []string{"startDate", "tradingDays"},
			Returns:  "string|null",
			Fallback: nil,
			Handler:  m.dateAfterTradingDays,
		},
	}
}

func (m *market) tickerPrice(ctx context.Context, args []interface{}) (interface{}, error) {
	ticker, err := argString(args, 0, "ticker")
	if err != nil {
		return nil, err
	}
	price, err := m.provider.TickerPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if price == nil {
		return nil, nil
	}
	return *price, nil
}

func (m *market) historicalData(ctx context.Context, args []interface{}) (interface{}, error) {
	ticker, err := argString(args, 0, "ticker")
	if err != nil {
		return nil, err
	}
	start, err := argDate(args, 1, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := argDate(args, 2, "endDate")
	if err != nil {
		return nil, err
	}

	points, err := m.provider.HistoricalData(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	// Ascending order is part of the contract regardless of provider behavior.
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	out := make([]interface{}, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]interface{}{
			"date":  p.Date,
			"price": p.Price,
		})
	}
	return out, nil
}

func (m *market) exchangeRate(ctx context.Context, args []interface{}) (interface{}, error) {
	from, err := argString(args, 0, "fromCurrency")
	if err != nil {
		return nil, err
	}
	to, err := argString(args, 1, "toCurrency")
	if err != nil {
		return nil, err
	}
	rate, err := m.provider.ExchangeRate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, nil
	}
	return *rate, nil
}

func (m *market) lastEarningsDate(ctx context.Context, args []interface{}) (interface{}, error) {
	ticker, err := argString(args, 0, "ticker")
	if err != nil {
		return nil, err
	}
	before, err := argString(args, 1, "beforeDate")
	if err != nil {
		return nil, err
	}
	if before == "today" {
		before = m.clock().UTC().Format(marketdata.DateLayout)
	} else if _, perr := time.Parse(marketdata.DateLayout, before); perr != nil {
		return nil, fmt.Errorf("beforeDate %q: %w", before, perr)
	}

	dates, err := m.provider.EarningsDates(ctx, ticker)
	if err != nil {
		return nil, err
	}

	// Most recent date strictly before the cutoff. ISO dates compare
	// lexicographically.
	var best string
	for _, d := range dates {
		if d < before && d > best {
			best = d
		}
	}
	if best == "" {
		return nil, nil
	}
	return best, nil
}

func (m *market) priceOnDate(ctx context.Context, args []interface{}) (interface{}, error) {
	ticker, err := argString(args, 0, "ticker")
	if err != nil {
		return nil, err
	}
	date, err := argString(args, 1, "date")
	if err != nil {
		return nil, err
	}
	price, err := m.provider.PriceOnDate(ctx, ticker, date)
	if err != nil {
		return nil, err
	}
	if price == nil {
		return nil, nil
	}
	return *price, nil
}

func (m *market) dateAfterTradingDays(_ context.Context, args []interface{}) (interface{}, error) {
	start, err := argString(args, 0, "startDate")
	if err != nil {
		return nil, err
	}
	n, err := argInt(args, 1, "tradingDays")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("tradingDays must be >= 0, got %d", n)
	}

	result, ok := dateAfterTradingDays(start, n)
	if !ok {
		return nil, nil
	}
	return result, nil
}

// argString extracts a required string argument.
func argString(args []interface{}, idx int, name string) (string, error) {
	if idx >= len(args) {
		return "", fmt.Errorf("missing argument %s", name)
	}
	s, ok := args[idx].(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string, got %T", name, args[idx])
	}
	return s, nil
}

// argDate extracts a required ISO date argument and validates its format.
func argDate(args []interface{}, idx int, name string) (string, error) {
	s, err := argString(args, idx, name)
	if err != nil {
		return "", err
	}
	if _, err := time.Parse(marketdata.DateLayout, s); err != nil {
		return "", fmt.Errorf("argument %s %q: %w", name, s, err)
	}
	return s, nil
}

// argInt extracts a required integer argument. JS numbers export as float64.
func argInt(args []interface{}, idx int, name string) (int, error) {
	if idx >= len(args) {
		return 0, fmt.Errorf("missing argument %s", name)
	}
	switch v := args[idx].(type) {
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("argument %s must be an integer, got %v", name, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %s must be a number, got %T", name, args[idx])
	}
}
