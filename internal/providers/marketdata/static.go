package marketdata

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Catalog is the fixture data backing the static provider.
type Catalog struct {
	Tickers map[string]TickerData `yaml:"tickers"`
	// Rates are keyed "FROM/TO", e.g. "USD/EUR".
	Rates map[string]float64 `yaml:"rates"`
}

// TickerData holds all fixture data for one symbol.
type TickerData struct {
	Price    float64      `yaml:"price"`
	History  []PricePoint `yaml:"history"`
	Earnings []string     `yaml:"earnings"`
}

// Static serves market data from an in-memory catalog. It backs tests and
// the default service mode, so runs are deterministic without upstream
// credentials.
type Static struct {
	catalog Catalog
}

// NewStatic creates a static provider from the given catalog.
func NewStatic(catalog Catalog) *Static {
	return &Static{catalog: catalog}
}

// NewStaticFromFile loads a YAML catalog from disk.
func NewStaticFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewStatic(catalog), nil
}

// DefaultCatalog returns a small built-in catalog for local development.
func DefaultCatalog() Catalog {
	return Catalog{
		Tickers: map[string]TickerData{
			"AAPL": {
				Price: 150.25,
				History: []PricePoint{
					{Date: "2024-01-02", Price: 148.10},
					{Date: "2024-01-03", Price: 149.32},
					{Date: "2024-01-04", Price: 147.85},
					{Date: "2024-01-05", Price: 150.25},
				},
				Earnings: []string{"2023-11-02", "2023-08-03", "2024-02-01", "2023-05-04"},
			},
			"MSFT": {
				Price: 374.58,
				History: []PricePoint{
					{Date: "2024-01-02", Price: 370.87},
					{Date: "2024-01-03", Price: 373.26},
					{Date: "2024-01-04", Price: 374.58},
				},
				Earnings: []string{"2024-01-30", "2023-10-24", "2023-07-25"},
			},
		},
		Rates: map[string]float64{
			"USD/EUR": 0.92,
			"EUR/USD": 1.087,
			"USD/GBP": 0.79,
			"GBP/USD": 1.266,
		},
	}
}

func (s *Static) TickerPrice(_ context.Context, ticker string) (*float64, error) {
	data, ok := s.catalog.Tickers[strings.ToUpper(ticker)]
	if !ok {
		return nil, nil
	}
	price := data.Price
	return &price, nil
}

func (s *Static) HistoricalData(_ context.Context, ticker, start, end string) ([]PricePoint, error) {
	data, ok := s.catalog.Tickers[strings.ToUpper(ticker)]
	if !ok {
		return []PricePoint{}, nil
	}

	points := make([]PricePoint, 0, len(data.History))
	for _, p := range data.History {
		if (start == "" || p.Date >= start) && (end == "" || p.Date <= end) {
			points = append(points, p)
		}
	}
	// ISO dates sort lexicographically
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

func (s *Static) ExchangeRate(_ context.Context, from, to string) (*float64, error) {
	if strings.EqualFold(from, to) {
		rate := 1.0
		return &rate, nil
	}
	key := strings.ToUpper(from) + "/" + strings.ToUpper(to)
	rate, ok := s.catalog.Rates[key]
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

func (s *Static) EarningsDates(_ context.Context, ticker string) ([]string, error) {
	data, ok := s.catalog.Tickers[strings.ToUpper(ticker)]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, data.Earnings...), nil
}

func (s *Static) PriceOnDate(_ context.Context, ticker, date string) (*float64, error) {
	data, ok := s.catalog.Tickers[strings.ToUpper(ticker)]
	if !ok {
		return nil, nil
	}
	for _, p := range data.History {
		if p.Date == date {
			price := p.Price
			return &price, nil
		}
	}
	return nil, nil
}
