package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"whale-copy-lab/internal/config"
	"whale-copy-lab/internal/observability"
	"whale-copy-lab/internal/pricefeed"
	"whale-copy-lab/internal/storage"
	chstore "whale-copy-lab/internal/storage/clickhouse"
	"whale-copy-lab/internal/storage/memory"
	"whale-copy-lab/internal/storage/migrations"
)

func main() {
	// Parse flags
	assetsCSV := flag.String("assets", "", "Comma-separated assets to backfill (required)")
	fromTime := flag.String("from", "", "Window start (RFC3339, required)")
	toTime := flag.String("to", "", "Window end (RFC3339, default now)")
	quote := flag.String("quote", "", "Quote asset for Binance symbols (default USDT)")
	chunk := flag.Duration("chunk", 0, "Klines request window (default 24h)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (defaults to CLICKHOUSE_DSN)")
	useMemory := flag.Bool("use-memory", false, "Fetch into in-memory storage (connectivity dry run)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backfill] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over environment values.
	if *clickhouseDSN == "" {
		*clickhouseDSN = cfg.ClickHouseDSN
	}

	// Validate flags
	assets := splitAssets(*assetsCSV)
	if len(assets) == 0 {
		logger.Fatal("--assets is required")
	}
	if *fromTime == "" {
		logger.Fatal("--from is required")
	}
	from, err := parseTimeFlag(*fromTime, 0)
	if err != nil {
		logger.Fatalf("parse --from: %v", err)
	}
	to, err := parseTimeFlag(*toTime, time.Now().UnixMilli())
	if err != nil {
		logger.Fatalf("parse --to: %v", err)
	}
	if to <= from {
		logger.Fatal("--to must be after --from")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create store
	var priceStore storage.PriceHistoryStore = memory.NewPriceHistoryStore()

	if !*useMemory {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("prepare clickhouse: %v", err)
		}
		defer conn.Close()

		priceStore = chstore.NewPriceHistoryStore(conn)
	}

	backfiller := pricefeed.NewBackfiller(pricefeed.BackfillOptions{
		Source:     pricefeed.NewBinanceSource(cfg.BinanceAPIKey, cfg.BinanceSecretKey),
		Store:      priceStore,
		QuoteAsset: *quote,
		ChunkSize:  *chunk,
		Logger:     logger,
	})

	if cfg.BinanceAPIKey != "" {
		logger.Printf("Using Binance API key %s", cfg.MaskedBinanceKey())
	}
	logger.Printf("Backfilling %v from %s to %s", assets,
		time.UnixMilli(from).Format(time.RFC3339), time.UnixMilli(to).Format(time.RFC3339))

	started := time.Now()
	written, err := backfiller.Backfill(ctx, assets, from, to)
	observability.RecordPricePointsWritten(written)
	if err != nil {
		logger.Fatalf("backfill failed after %d points: %v", written, err)
	}

	logger.Printf("Backfill complete: %d points written in %v",
		written, time.Since(started).Round(time.Millisecond))
}

// parseTimeFlag parses an RFC3339 flag value into unix milliseconds.
func parseTimeFlag(value string, fallback int64) (int64, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// splitAssets parses a comma-separated allow-list into normalized symbols.
func splitAssets(csv string) []string {
	if csv == "" {
		return nil
	}
	var assets []string
	for _, a := range strings.Split(csv, ",") {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a != "" {
			assets = append(assets, a)
		}
	}
	return assets
}
