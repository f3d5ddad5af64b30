package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"whale-copy-lab/internal/config"
	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/hyperliquid"
	"whale-copy-lab/internal/ingestion"
	"whale-copy-lab/internal/metrics"
	"whale-copy-lab/internal/observability"
	"whale-copy-lab/internal/storage"
	"whale-copy-lab/internal/storage/memory"
	"whale-copy-lab/internal/storage/migrations"
	pgstore "whale-copy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	mode := flag.String("mode", "live", "Ingestion mode: live, once, or add")
	address := flag.String("address", "", "Whale account address to track (add mode)")
	label := flag.String("label", "", "Optional whale label (add mode)")
	pollInterval := flag.Duration("poll-interval", 0, "Fill poll interval (defaults to INGEST_INTERVAL_SECONDS)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	enableWS := flag.Bool("ws", false, "Stream fills over WebSocket between polls (defaults to ENABLE_WS_INGEST)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (defaults to METRICS_ADDR)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over environment values.
	if *postgresDSN == "" {
		*postgresDSN = cfg.DatabaseURL
	}
	if *pollInterval <= 0 {
		*pollInterval = cfg.IngestInterval
	}
	streamFills := *enableWS || cfg.EnableWSIngest
	addr := *metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}

	// Start metrics server if enabled. The add mode is a short-lived
	// bookkeeping command and does not serve metrics.
	if addr != "" && *mode != "add" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Run based on mode
	var runErr error
	switch *mode {
	case "live":
		runErr = runLive(ctx, logger, cfg, *postgresDSN, *pollInterval, streamFills, *useMemory)
	case "once":
		runErr = runOnce(ctx, logger, cfg, *postgresDSN, *useMemory)
	case "add":
		runErr = runAdd(ctx, logger, *postgresDSN, *useMemory, *address, *label)
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	// Signal completion to shutdown handler
	done <- runErr
	cancel()

	if runErr != nil && runErr != context.Canceled {
		logger.Fatalf("Error: %v", runErr)
	}

	logger.Println("Shutdown complete")
}

// openStores wires the daemon's storage interfaces, in-memory or
// PostgreSQL-backed. The returned cleanup is a no-op for memory stores.
func openStores(ctx context.Context, mode, postgresDSN string, useMemory bool) (storage.WhaleStore, storage.TradeStore, storage.CheckpointStore, storage.WalletMetricsStore, func(), error) {
	var (
		whaleStore      storage.WhaleStore         = memory.NewWhaleStore()
		tradeStore      storage.TradeStore         = memory.NewTradeStore()
		checkpointStore storage.CheckpointStore    = memory.NewCheckpointStore()
		metricsStore    storage.WalletMetricsStore = memory.NewWalletMetricsStore()
	)
	cleanup := func() {}

	if useMemory {
		return whaleStore, tradeStore, checkpointStore, metricsStore, cleanup, nil
	}
	if postgresDSN == "" {
		return nil, nil, nil, nil, nil, fmt.Errorf("--postgres-dsn is required for %s mode (use --use-memory for in-memory storage)", mode)
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	whaleStore = pgstore.NewWhaleStore(pool)
	tradeStore = pgstore.NewTradeStore(pool)
	checkpointStore = pgstore.NewCheckpointStore(pool)
	metricsStore = pgstore.NewWalletMetricsStore(pool)
	cleanup = pool.Close

	return whaleStore, tradeStore, checkpointStore, metricsStore, cleanup, nil
}

// runLive runs continuous fill ingestion for all tracked whales.
func runLive(ctx context.Context, logger *log.Logger, cfg *config.Config, postgresDSN string, pollInterval time.Duration, streamFills, useMemory bool) error {
	whaleStore, tradeStore, checkpointStore, metricsStore, cleanup, err := openStores(ctx, "live", postgresDSN, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	info := hyperliquid.NewInfoClient(cfg.HyperliquidAPIURL,
		hyperliquid.WithRateLimit(cfg.HyperliquidMaxRPS))
	aggregator := metrics.NewWalletAggregator(tradeStore, metricsStore, info)

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		WhaleStore:   whaleStore,
		TradeStore:   tradeStore,
		Checkpoints:  checkpointStore,
		Fills:        info,
		History:      info,
		Aggregator:   aggregator,
		PollInterval: pollInterval,
		Logger:       logger,
	})

	// First sync runs before the WebSocket fast path so a freshly added
	// whale gets its deep history walk while the checkpoint is still unset.
	logger.Println("Starting initial sync...")
	if err := runner.ProcessAll(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Printf("Initial sync: %v", err)
	}

	whales, err := whaleStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list whales: %w", err)
	}
	observability.UpdateWhalesTracked(len(whales))
	if len(whales) == 0 {
		logger.Println("No whales tracked yet; add one with -mode add")
	}

	if streamFills && len(whales) > 0 {
		// Whales added after startup are covered by the poller only until
		// the daemon restarts and resubscribes.
		ws, err := hyperliquid.NewWSClient(ctx, cfg.HyperliquidWSURL, nil)
		if err != nil {
			return fmt.Errorf("connect websocket: %w", err)
		}
		defer ws.Close()

		for _, whale := range whales {
			batches, err := ws.SubscribeUserFills(ctx, whale.Address)
			if err != nil {
				return fmt.Errorf("subscribe fills for %s: %w", whale.Address, err)
			}
			w := whale
			go func() {
				for batch := range batches {
					inserted, err := runner.ProcessFills(ctx, w, batch.Fills)
					if err != nil {
						logger.Printf("whale %s: stream batch: %v", w.ID, err)
						continue
					}
					if inserted > 0 {
						observability.RecordFillsStreamed(inserted)
						logger.Printf("whale %s: streamed %d fills", w.ID, inserted)
					}
				}
			}()
		}
		logger.Printf("Streaming fills for %d whales over WebSocket", len(whales))
	}

	// Keep the tracked-whale gauge fresh while the poller owns the loop.
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if whales, err := whaleStore.GetAll(ctx); err == nil {
					observability.UpdateWhalesTracked(len(whales))
				}
			}
		}
	}()

	logger.Printf("Starting live ingestion (poll interval %v)...", pollInterval)
	return runner.Run(ctx)
}

// runOnce runs a single ingestion cycle across all tracked whales and exits.
func runOnce(ctx context.Context, logger *log.Logger, cfg *config.Config, postgresDSN string, useMemory bool) error {
	whaleStore, tradeStore, checkpointStore, metricsStore, cleanup, err := openStores(ctx, "once", postgresDSN, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	info := hyperliquid.NewInfoClient(cfg.HyperliquidAPIURL,
		hyperliquid.WithRateLimit(cfg.HyperliquidMaxRPS))
	aggregator := metrics.NewWalletAggregator(tradeStore, metricsStore, info)

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		WhaleStore:  whaleStore,
		TradeStore:  tradeStore,
		Checkpoints: checkpointStore,
		Fills:       info,
		History:     info,
		Aggregator:  aggregator,
		Logger:      logger,
	})

	if err := runner.ProcessAll(ctx); err != nil {
		return err
	}
	logger.Println("Ingestion cycle complete")
	return nil
}

// runAdd registers a new whale address for tracking and exits. The next
// ingestion cycle picks it up and walks its full fill history.
func runAdd(ctx context.Context, logger *log.Logger, postgresDSN string, useMemory bool, address, label string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("--address is required for add mode")
	}
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return fmt.Errorf("address %q does not look like a 0x account address", address)
	}

	whaleStore, _, _, _, cleanup, err := openStores(ctx, "add", postgresDSN, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	whale := &domain.Whale{
		ID:        uuid.NewString(),
		Address:   address,
		CreatedAt: time.Now().UnixMilli(),
	}
	if label != "" {
		whale.Label = &label
	}

	if err := whaleStore.Insert(ctx, whale); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			if existing, lookupErr := whaleStore.GetByAddress(ctx, address); lookupErr == nil {
				return fmt.Errorf("address %s is already tracked as whale %s", address, existing.ID)
			}
			return fmt.Errorf("address %s is already tracked", address)
		}
		return err
	}

	logger.Printf("Tracking whale %s (%s)", whale.ID, whale.Address)
	return nil
}
