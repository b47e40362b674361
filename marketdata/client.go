package marketdata

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DEFAULT_BASE_URL = "https://api.binance.com"
const KLINES_ENDPOINT = "/api/v3/klines"

const (
	INTERVAL_DAILY = "1d"
	MAX_KLINES     = 1000
)

const maxResponseSize = 10 * 1024 * 1024

type Client struct {
	baseUrl        string
	httpClient     *http.Client
	rateLimiter    *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptions   retry.Options
	logger         *zap.Logger
}

func NewClient(baseUrl string, proxyDSN string, log *zap.Logger) (*Client, error) {
	if baseUrl == "" {
		baseUrl = DEFAULT_BASE_URL
	}

	transport := &http.Transport{
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	if proxyDSN != "" {
		proxyURL, err := url.Parse(proxyDSN)
		if err != nil {
			return nil, fmt.Errorf("market data proxy dsn error: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: false}
	}

	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "BinanceAPI",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Client errors such as an unknown symbol say nothing about the API's health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status := retry.StatusCode(err)
			return status >= 400 && status < 500 && status != http.StatusTooManyRequests
		},
	})

	return &Client{
		baseUrl:        baseUrl,
		httpClient:     &http.Client{Timeout: 30 * time.Second, Transport: transport},
		rateLimiter:    rate.NewLimiter(rate.Limit(10), 20),
		circuitBreaker: circuitBreaker,
		retryOptions: retry.Options{
			MaxRetries: 3,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
		},
		logger: logger.Named(log, "marketdata"),
	}, nil
}

// makeRequest performs a rate limited GET through the circuit breaker, retrying 429 and 5xx.
func (c *Client) makeRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, c.retryOptions, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, endpoint, params)
		})
		if err != nil {
			return err
		}
		body = result.([]byte)
		return nil
	})
	if err != nil {
		c.logger.Warn("Market data request failed",
			zap.String("endpoint", endpoint),
			zap.Any("params", params),
			zap.Error(err))
		return nil, err
	}

	return body, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error create request: %w", err)
	}

	q := req.URL.Query()
	for key, value := range params {
		if value != "" {
			q.Add(key, value)
		}
	}
	req.URL.RawQuery = q.Encode()

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("error read response: %w", err)
	}

	c.logger.Debug("Market data response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(startTime).Milliseconds()))

	if resp.StatusCode != http.StatusOK {
		return nil, retry.NewHTTPError(resp, bodyBytes)
	}

	return bodyBytes, nil
}

type KlineRequest struct {
	Symbol    string
	Interval  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// Klines returns bars for a symbol, oldest first.
func (c *Client) Klines(ctx context.Context, req KlineRequest) ([]Bar, error) {
	interval := req.Interval
	if interval == "" {
		interval = INTERVAL_DAILY
	}

	params := map[string]string{
		"symbol":   req.Symbol,
		"interval": interval,
		"limit":    strconv.Itoa(min(MAX_KLINES, max(1, req.Limit))),
	}
	if !req.StartTime.IsZero() {
		params["startTime"] = strconv.FormatInt(req.StartTime.UnixMilli(), 10)
	}
	if !req.EndTime.IsZero() {
		params["endTime"] = strconv.FormatInt(req.EndTime.UnixMilli(), 10)
	}

	body, err := c.makeRequest(ctx, KLINES_ENDPOINT, params)
	if err != nil {
		return nil, fmt.Errorf("error get klines %s: %w", req.Symbol, err)
	}

	bars, err := ParseKlines(body)
	if err != nil {
		return nil, fmt.Errorf("error parse klines %s: %w", req.Symbol, err)
	}
	return bars, nil
}

// GetBars returns the latest limit bars for symbol.
func (c *Client) GetBars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error) {
	return c.Klines(ctx, KlineRequest{Symbol: symbol, Interval: interval, Limit: limit})
}
