package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketscript/backend/internal/capabilities"
	"github.com/marketscript/backend/internal/providers/marketdata"
)

func TestDeepCopy(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		wantErr bool
	}{
		{"nil", nil, false},
		{"number", 42.5, false},
		{"string", "hello", false},
		{"nested map", map[string]interface{}{"a": []interface{}{1.0, "b"}}, false},
		{"function rejected", func() {}, true},
		{"channel rejected", make(chan int), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := deepCopy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("deepCopy(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.in == nil && out != nil {
				t.Errorf("deepCopy(nil) = %v, want nil", out)
			}
		})
	}
}

func TestDeepCopyIsACopy(t *testing.T) {
	original := map[string]interface{}{"prices": []interface{}{1.0, 2.0}}
	copied, err := deepCopy(original)
	if err != nil {
		t.Fatalf("deepCopy failed: %v", err)
	}

	original["prices"].([]interface{})[0] = 99.0
	got := copied.(map[string]interface{})["prices"].([]interface{})[0]
	if got != 1.0 {
		t.Errorf("copy shares state with original: %v", got)
	}
}

func TestCapabilityFailureAbsorbedIntoContractValue(t *testing.T) {
	surface := capabilities.NewSurface(erroringProvider{})
	session, failure := NewSession(Config{
		MemoryLimitMB: 64,
		Timeout:       2 * time.Second,
		Surface:       surface,
	})
	if failure != nil {
		t.Fatalf("failed to create session: %v", failure)
	}

	// The provider errors on every lookup, yet the snippet sees the
	// documented contract values, never an exception.
	outcome := session.Run(context.Background(), `(async () => {
		const price = await getTickerPrice("AAPL");
		const history = await getHistoricalData("AAPL", "2024-01-01", "2024-01-31");
		return { price: price, count: history.length };
	})()`)

	if !outcome.Completed() {
		t.Fatalf("expected completion, got %s: %v", outcome.State, outcome.Failure)
	}
	result := outcome.Value.(map[string]interface{})
	if result["price"] != nil {
		t.Errorf("price = %v, want null contract value", result["price"])
	}
	if result["count"] != float64(0) {
		t.Errorf("count = %v, want empty-list contract value", result["count"])
	}
}

func TestUncopyableArgumentResolvesToContractValue(t *testing.T) {
	outcome := run(t, `(async () => await getTickerPrice(function() {}))()`)
	if !outcome.Completed() {
		t.Fatalf("expected completion, got %s: %v", outcome.State, outcome.Failure)
	}
	if outcome.Value != nil {
		t.Errorf("value = %v, want null", outcome.Value)
	}
}

func TestFanOutResponsesRoutedByCorrelationID(t *testing.T) {
	// Per-ticker distinct values with deliberately skewed latencies: the
	// slowest call is issued first, so responses arrive out of issue order.
	surface := capabilities.NewSurface(latencyProvider{
		prices: map[string]float64{"A": 1, "B": 2, "C": 3},
		delays: map[string]time.Duration{
			"A": 60 * time.Millisecond,
			"B": 30 * time.Millisecond,
			"C": 1 * time.Millisecond,
		},
	})
	session, failure := NewSession(Config{
		MemoryLimitMB: 64,
		Timeout:       5 * time.Second,
		Surface:       surface,
	})
	if failure != nil {
		t.Fatalf("failed to create session: %v", failure)
	}

	outcome := session.Run(context.Background(), `(async () => {
		const results = await Promise.all([
			getTickerPrice("A"),
			getTickerPrice("B"),
			getTickerPrice("C"),
		]);
		return results;
	})()`)

	if !outcome.Completed() {
		t.Fatalf("expected completion, got %s: %v", outcome.State, outcome.Failure)
	}
	results := outcome.Value.([]interface{})
	want := []float64{1, 2, 3}
	for i, w := range want {
		if results[i] != w {
			t.Errorf("results[%d] = %v, want %v (responses swapped across call sites)", i, results[i], w)
		}
	}
}

// erroringProvider fails every lookup.
type erroringProvider struct{}

var errLookup = errors.New("lookup failed")

func (erroringProvider) TickerPrice(context.Context, string) (*float64, error) {
	return nil, errLookup
}

func (erroringProvider) HistoricalData(context.Context, string, string, string) ([]marketdata.PricePoint, error) {
	return nil, errLookup
}

func (erroringProvider) ExchangeRate(context.Context, string, string) (*float64, error) {
	return nil, errLookup
}

func (erroringProvider) EarningsDates(context.Context, string) ([]string, error) {
	return nil, errLookup
}

func (erroringProvider) PriceOnDate(context.Context, string, string) (*float64, error) {
	return nil, errLookup
}

// latencyProvider returns per-ticker prices after per-ticker delays.
type latencyProvider struct {
	prices map[string]float64
	delays map[string]time.Duration
}

func (p latencyProvider) TickerPrice(ctx context.Context, ticker string) (*float64, error) {
	select {
	case <-time.After(p.delays[ticker]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	price, ok := p.prices[ticker]
	if !ok {
		return nil, nil
	}
	return &price, nil
}

func (p latencyProvider) HistoricalData(context.Context, string, string, string) ([]marketdata.PricePoint, error) {
	return []marketdata.PricePoint{}, nil
}

func (p latencyProvider) ExchangeRate(context.Context, string, string) (*float64, error) {
	return nil, nil
}

func (p latencyProvider) EarningsDates(context.Context, string) ([]string, error) {
	return []string{}, nil
}

func (p latencyProvider) PriceOnDate(context.Context, string, string) (*float64, error) {
	return nil, nil
}
