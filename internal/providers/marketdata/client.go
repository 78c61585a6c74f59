package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/infrastructure/resilience"
)

// Recorder receives provider request outcomes for metrics.
type Recorder interface {
	RecordProviderRequest(operation, status string)
}

// ClientConfig configures the HTTP market data provider.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond paces upstream calls; zero means unlimited.
	RequestsPerSecond float64
}

// Client is an HTTP-backed market data provider with retries, pacing, and a
// circuit breaker guarding the upstream.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	recorder Recorder
	log      *logging.Logger
}

// NewClient creates a production-ready market data client.
func NewClient(cfg ClientConfig, recorder Recorder, log *logging.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "marketscript/1.0")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)
	if cfg.APIKey != "" {
		restyClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	breaker := resilience.New("marketdata", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	if log == nil {
		log = logging.NewNop()
	}

	return &Client{
		resty:    restyClient,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  breaker,
		recorder: recorder,
		log:      log.Named("marketdata"),
	}
}

// get performs a paced, breaker-guarded GET. A 404 is reported as
// (found=false, nil): the capability contracts turn absence into null.
func (c *Client) get(ctx context.Context, operation, path string, params map[string]string, out interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var resp *resty.Response
	err := c.breaker.Execute(func() error {
		var reqErr error
		resp, reqErr = c.resty.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(out).
			Get(path)
		if reqErr != nil {
			return reqErr
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("upstream returned %d", resp.StatusCode())
		}
		return nil
	})

	if err != nil {
		c.record(operation, "error")
		c.log.Warn("upstream request failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return false, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		c.record(operation, "not_found")
		return false, nil
	}
	if resp.IsError() {
		c.record(operation, "error")
		return false, fmt.Errorf("upstream returned %d", resp.StatusCode())
	}

	c.record(operation, "ok")
	return true, nil
}

func (c *Client) record(operation, status string) {
	if c.recorder != nil {
		c.recorder.RecordProviderRequest(operation, status)
	}
}

type priceResponse struct {
	Price float64 `json:"price"`
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

type historyResponse struct {
	Points []PricePoint `json:"points"`
}

type earningsResponse struct {
	Dates []string `json:"dates"`
}

func (c *Client) TickerPrice(ctx context.Context, ticker string) (*float64, error) {
	var body priceResponse
	found, err := c.get(ctx, "price", "/v1/price/"+ticker, nil, &body)
	if err != nil || !found {
		return nil, err
	}
	return &body.Price, nil
}

func (c *Client) HistoricalData(ctx context.Context, ticker, start, end string) ([]PricePoint, error) {
	var body historyResponse
	found, err := c.get(ctx, "history", "/v1/history/"+ticker, map[string]string{
		"start": start,
		"end":   end,
	}, &body)
	if err != nil || !found {
		return []PricePoint{}, err
	}
	return body.Points, nil
}

func (c *Client) ExchangeRate(ctx context.Context, from, to string) (*float64, error) {
	var body rateResponse
	found, err := c.get(ctx, "fx", fmt.Sprintf("/v1/fx/%s/%s", from, to), nil, &body)
	if err != nil || !found {
		return nil, err
	}
	return &body.Rate, nil
}

func (c *Client) EarningsDates(ctx context.Context, ticker string) ([]string, error) {
	var body earningsResponse
	found, err := c.get(ctx, "earnings", "/v1/earnings/"+ticker, nil, &body)
	if err != nil || !found {
		return []string{}, err
	}
	return body.Dates, nil
}

func (c *Client) PriceOnDate(ctx context.Context, ticker, date string) (*float64, error) {
	var body priceResponse
	found, err := c.get(ctx, "price_on_date", fmt.Sprintf("/v1/price/%s/%s", ticker, date), nil, &body)
	if err != nil || !found {
		return nil, err
	}
	return &body.Price, nil
}
