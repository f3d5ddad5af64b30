package pricefeed

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

const (
	klineInterval = "1m"
	minuteMs      = int64(time.Minute / time.Millisecond)

	// DefaultChunkSize bounds one klines request window. A day of minute
	// candles (1440) fits in a single response.
	DefaultChunkSize = 24 * time.Hour

	// DefaultChunkDelay spaces consecutive chunk requests.
	DefaultChunkDelay = 100 * time.Millisecond

	// DefaultQuoteAsset is appended to the asset symbol to form the market
	// symbol (BTC becomes BTCUSDT).
	DefaultQuoteAsset = "USDT"
)

// KlineSource provides candlestick data for one market symbol and window.
// Implemented by BinanceSource.
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, start, end int64) ([]*futures.Kline, error)
}

// Backfiller fills the minute price store from kline closes so backtests can
// mark positions between fills.
type Backfiller struct {
	source     KlineSource
	store      storage.PriceHistoryStore
	quoteAsset string
	chunkSize  time.Duration
	chunkDelay time.Duration
	logger     *log.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Source     KlineSource
	Store      storage.PriceHistoryStore
	QuoteAsset string        // optional; defaults to USDT
	ChunkSize  time.Duration // optional; bounds one request window
	ChunkDelay time.Duration // optional; pause between chunk requests
	Logger     *log.Logger   // optional
}

// NewBackfiller creates a price history backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	quote := opts.QuoteAsset
	if quote == "" {
		quote = DefaultQuoteAsset
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	delay := opts.ChunkDelay
	if delay == 0 {
		delay = DefaultChunkDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[pricefeed] ", log.LstdFlags)
	}

	return &Backfiller{
		source:     opts.Source,
		store:      opts.Store,
		quoteAsset: quote,
		chunkSize:  chunk,
		chunkDelay: delay,
		logger:     logger,
	}
}

// EnsureRange makes minute closes for [start, end] (unix ms, inclusive)
// available in the store, fetching from the kline source when the window is
// not already covered.
func (b *Backfiller) EnsureRange(ctx context.Context, asset string, start, end int64) error {
	_, err := b.ensureAsset(ctx, asset, start, end)
	return err
}

// Backfill ensures coverage for several assets over one window. Per-asset
// failures are logged and skipped. Returns the number of points written.
func (b *Backfiller) Backfill(ctx context.Context, assets []string, start, end int64) (int, error) {
	written := 0
	for _, asset := range assets {
		n, err := b.ensureAsset(ctx, asset, start, end)
		written += n
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			b.logger.Printf("backfill %s: %v", asset, err)
		}
	}
	return written, nil
}

func (b *Backfiller) ensureAsset(ctx context.Context, asset string, start, end int64) (int, error) {
	if asset == "" {
		return 0, fmt.Errorf("%w: empty asset", storage.ErrInvalidInput)
	}
	if end < start {
		return 0, fmt.Errorf("%w: end %d before start %d", storage.ErrInvalidInput, end, start)
	}

	asset = strings.ToUpper(asset)
	if covered, err := b.covered(ctx, asset, start, end); err == nil && covered {
		return 0, nil
	}
	// A failed coverage read is not fatal; refetching is idempotent.

	symbol := asset + b.quoteAsset
	// Closes are stamped on the minute boundary ending each candle, so the
	// candle covering start opens one minute earlier.
	fetchStart := truncateMinute(start) - minuteMs
	written := 0

	for chunkStart := fetchStart; chunkStart <= end; {
		chunkEnd := chunkStart + b.chunkSize.Milliseconds()
		if chunkEnd > end {
			chunkEnd = end
		}

		klines, err := b.source.Klines(ctx, symbol, klineInterval, chunkStart, chunkEnd)
		if err != nil {
			return written, fmt.Errorf("fetch klines %s: %w", symbol, err)
		}

		points := pointsFromKlines(asset, klines)
		if len(points) > 0 {
			if err := b.store.UpsertBulk(ctx, points); err != nil {
				return written, fmt.Errorf("store prices %s: %w", asset, err)
			}
			written += len(points)
		}

		chunkStart = chunkEnd + 1
		if chunkStart > end {
			break
		}

		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-time.After(b.chunkDelay):
		}
	}

	if written > 0 {
		b.logger.Printf("%s: wrote %d minute closes for [%d, %d]", asset, written, start, end)
	}
	return written, nil
}

// covered reports whether the store already holds every minute close in
// [start, end]. Stamps are minute aligned and unique per asset, so a fully
// covered window has one point per boundary.
func (b *Backfiller) covered(ctx context.Context, asset string, start, end int64) (bool, error) {
	expected := minuteBoundaries(start, end)
	if expected == 0 {
		return true, nil
	}
	points, err := b.store.GetRange(ctx, asset, start, end)
	if err != nil {
		return false, err
	}
	return int64(len(points)) >= expected, nil
}

// pointsFromKlines converts candles to minute closes. Each point is stamped
// on the minute boundary ending its candle. Unparseable or non-positive
// closes are dropped.
func pointsFromKlines(asset string, klines []*futures.Kline) []*domain.PricePoint {
	points := make([]*domain.PricePoint, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		price, err := strconv.ParseFloat(k.Close, 64)
		if err != nil || price <= 0 {
			continue
		}
		points = append(points, &domain.PricePoint{
			Asset:    asset,
			Time:     truncateMinute(k.OpenTime) + minuteMs,
			PriceUSD: price,
		})
	}
	return points
}

// minuteBoundaries counts minute-aligned timestamps in [start, end].
func minuteBoundaries(start, end int64) int64 {
	first := truncateMinute(start)
	if first < start {
		first += minuteMs
	}
	if first > end {
		return 0
	}
	return (truncateMinute(end)-first)/minuteMs + 1
}

func truncateMinute(ts int64) int64 {
	return ts - ts%minuteMs
}
