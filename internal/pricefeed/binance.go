package pricefeed

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

// Default tuning for the Binance klines source.
const (
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 20
	DefaultKlineRetries      = 3
	DefaultRetryBase         = 100 * time.Millisecond

	// maxKlinesPerRequest is the venue's response cap for one klines call.
	maxKlinesPerRequest = 1500
)

// BinanceSource fetches candlesticks from Binance USD-margined futures.
// Market data endpoints work without credentials; keys are only needed when
// the same client is reused for signed calls.
type BinanceSource struct {
	client     *futures.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

var _ KlineSource = (*BinanceSource)(nil)

// NewBinanceSource creates a rate-limited klines source. Both keys may be
// empty for public market data.
func NewBinanceSource(apiKey, secretKey string) *BinanceSource {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	client := futures.NewClient(apiKey, secretKey)
	client.HTTPClient = httpClient

	return &BinanceSource{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
		maxRetries: DefaultKlineRetries,
		retryBase:  DefaultRetryBase,
	}
}

// Klines fetches candles whose open time falls within [start, end] (unix ms).
// Failures are retried with exponential backoff.
func (s *BinanceSource) Klines(ctx context.Context, symbol, interval string, start, end int64) ([]*futures.Kline, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := s.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err == nil {
			return klines, nil
		}
		lastErr = err

		if attempt == s.maxRetries {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * s.retryBase
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}
