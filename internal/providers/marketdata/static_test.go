package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTickerPrice(t *testing.T) {
	provider := NewStatic(DefaultCatalog())
	ctx := context.Background()

	price, err := provider.TickerPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 150.25, *price)

	// case-insensitive lookup
	price, err = provider.TickerPrice(ctx, "aapl")
	require.NoError(t, err)
	require.NotNil(t, price)

	price, err = provider.TickerPrice(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestStaticHistoricalDataAscending(t *testing.T) {
	provider := NewStatic(Catalog{
		Tickers: map[string]TickerData{
			"TEST": {
				History: []PricePoint{
					{Date: "2024-01-05", Price: 3},
					{Date: "2024-01-02", Price: 1},
					{Date: "2024-01-03", Price: 2},
				},
			},
		},
	})

	points, err := provider.HistoricalData(context.Background(), "TEST", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].Date, points[i].Date)
	}
}

func TestStaticHistoricalDataRangeFilter(t *testing.T) {
	provider := NewStatic(DefaultCatalog())
	ctx := context.Background()

	points, err := provider.HistoricalData(ctx, "AAPL", "2024-01-03", "2024-01-04")
	require.NoError(t, err)
	assert.Len(t, points, 2)

	points, err = provider.HistoricalData(ctx, "AAPL", "2030-01-01", "2030-12-31")
	require.NoError(t, err)
	assert.Empty(t, points)

	points, err = provider.HistoricalData(ctx, "UNKNOWN", "", "")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestStaticExchangeRate(t *testing.T) {
	provider := NewStatic(DefaultCatalog())
	ctx := context.Background()

	tests := []struct {
		name string
		from string
		to   string
		want *float64
	}{
		{"known pair", "USD", "EUR", ptr(0.92)},
		{"lowercase pair", "usd", "eur", ptr(0.92)},
		{"identity pair", "USD", "USD", ptr(1.0)},
		{"unsupported pair", "USD", "XYZ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := provider.ExchangeRate(ctx, tt.from, tt.to)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, rate)
			} else {
				require.NotNil(t, rate)
				assert.Equal(t, *tt.want, *rate)
			}
		})
	}
}

func TestStaticPriceOnDate(t *testing.T) {
	provider := NewStatic(DefaultCatalog())
	ctx := context.Background()

	price, err := provider.PriceOnDate(ctx, "AAPL", "2024-01-03")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 149.32, *price)

	// weekend / no data
	price, err = provider.PriceOnDate(ctx, "AAPL", "2024-01-06")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestStaticFromFile(t *testing.T) {
	catalogYAML := `
tickers:
  NVDA:
    price: 495.22
    history:
      - date: "2024-01-02"
        price: 481.68
    earnings:
      - "2023-11-21"
rates:
  USD/JPY: 141.05
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))

	provider, err := NewStaticFromFile(path)
	require.NoError(t, err)

	price, err := provider.TickerPrice(context.Background(), "NVDA")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 495.22, *price)

	rate, err := provider.ExchangeRate(context.Background(), "USD", "JPY")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, 141.05, *rate)
}

func ptr(f float64) *float64 { return &f }
