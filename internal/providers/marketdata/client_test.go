package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL}, nil, nil)
}

func TestClientTickerPrice(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/price/AAPL":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"price": 150.25}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	price, err := client.TickerPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 150.25, *price)

	// unknown ticker maps to nil, not error
	price, err = client.TickerPrice(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestClientHistoricalDataPassesRange(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/history/MSFT", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("end"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"points": [{"date": "2024-01-02", "price": 370.87}]}`))
	}))

	points, err := client.HistoricalData(context.Background(), "MSFT", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-01-02", points[0].Date)
}

func TestClientExchangeRateNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rate, err := client.ExchangeRate(context.Background(), "USD", "XYZ")
	require.NoError(t, err)
	assert.Nil(t, rate)
}

func TestClientUpstreamErrorSurfaces(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.TickerPrice(context.Background(), "AAPL")
	assert.Error(t, err)
}
