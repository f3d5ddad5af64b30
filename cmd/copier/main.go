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

	"whale-copy-lab/internal/config"
	"whale-copy-lab/internal/copier"
	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
	"whale-copy-lab/internal/hyperliquid"
	"whale-copy-lab/internal/observability"
	"whale-copy-lab/internal/storage"
	"whale-copy-lab/internal/storage/memory"
	pgstore "whale-copy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	whalesCSV := flag.String("whales", "", "Comma-separated whale IDs or addresses to copy (required)")
	runID := flag.String("run", "", "Backtest run ID supplying sizing and leverage (single whale only)")
	deposit := flag.Float64("deposit", 0, "Copy account deposit in USD (required without --run)")
	leverage := flag.Float64("leverage", 1.0, "Leverage for copied orders (ignored with --run)")
	sizePct := flag.Float64("size-pct", -1, "Position size as percent of source notional (negative for auto)")
	assetsCSV := flag.String("assets", "", "Comma-separated asset allow-list, ignored with --run (empty copies everything)")
	execute := flag.Bool("execute", false, "Build and submit orders to the trader instead of observing only")
	autoLeverage := flag.Bool("auto-leverage", false, "Mirror the source account's leverage per asset")
	pollInterval := flag.Duration("poll", 0, "Fill poll interval (defaults to COPIER_POLL_MS)")
	statusInterval := flag.Duration("status-interval", 30*time.Second, "Session status logging interval")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (defaults to METRICS_ADDR)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[copier] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over environment values.
	if *postgresDSN == "" {
		*postgresDSN = cfg.DatabaseURL
	}
	if *pollInterval <= 0 {
		*pollInterval = cfg.CopierPollInterval
	}
	addr := *metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}

	// Validate flags
	whaleRefs := splitCSV(*whalesCSV)
	if len(whaleRefs) == 0 {
		logger.Fatal("--whales is required")
	}
	if *runID != "" && len(whaleRefs) != 1 {
		logger.Fatal("--run applies to a single whale")
	}
	if *runID == "" && *deposit <= 0 {
		logger.Fatal("--deposit is required without --run")
	}

	// Start metrics server if enabled
	if addr != "" {
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

	var sizeOverride *float64
	if *sizePct >= 0 {
		sizeOverride = sizePct
	}

	runErr := runCopier(ctx, logger, cfg, copierParams{
		whaleRefs:      whaleRefs,
		runID:          *runID,
		depositUSD:     *deposit,
		leverage:       *leverage,
		sizePct:        sizeOverride,
		assets:         splitCSV(*assetsCSV),
		execute:        *execute,
		autoLeverage:   *autoLeverage,
		pollInterval:   *pollInterval,
		statusInterval: *statusInterval,
		postgresDSN:    *postgresDSN,
		useMemory:      *useMemory,
	})

	// Signal completion to shutdown handler
	done <- runErr
	cancel()

	if runErr != nil && runErr != context.Canceled {
		logger.Fatalf("Error: %v", runErr)
	}

	logger.Println("Shutdown complete")
}

// copierParams carries the resolved daemon configuration.
type copierParams struct {
	whaleRefs      []string
	runID          string
	depositUSD     float64
	leverage       float64
	sizePct        *float64
	assets         []string
	execute        bool
	autoLeverage   bool
	pollInterval   time.Duration
	statusInterval time.Duration
	postgresDSN    string
	useMemory      bool
}

// runCopier starts one copy session per whale and owns the polling loop
// until the context is cancelled.
func runCopier(ctx context.Context, logger *log.Logger, cfg *config.Config, p copierParams) error {
	// Create stores (use interfaces)
	var whaleStore storage.WhaleStore = memory.NewWhaleStore()
	var runStore storage.BacktestRunStore = memory.NewBacktestRunStore()

	if !p.useMemory {
		if p.postgresDSN == "" {
			return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
		}
		pool, err := pgstore.NewPool(ctx, p.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		whaleStore = pgstore.NewWhaleStore(pool)
		runStore = pgstore.NewBacktestRunStore(pool)
	}

	info := hyperliquid.NewInfoClient(cfg.HyperliquidAPIURL,
		hyperliquid.WithRateLimit(cfg.HyperliquidMaxRPS))
	trader := exchange.NewDryRunTrader(logger)

	manager := copier.NewManager(copier.ManagerOptions{
		Fills:        info,
		Accounts:     info,
		Sizing:       info,
		Trader:       trader,
		PollInterval: p.pollInterval,
		SlippagePct:  cfg.SlippagePct,
		Logger:       logger,
	})

	for _, ref := range p.whaleRefs {
		whale, err := resolveWhale(ctx, whaleStore, ref)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("unknown whale %q (track it first with ingest -mode add)", ref)
			}
			return fmt.Errorf("resolve whale %q: %w", ref, err)
		}

		run, err := loadRun(ctx, runStore, p, whale)
		if err != nil {
			return err
		}

		sess := manager.CreateSession(ctx, whale, run, copier.CreateOptions{
			Execute:         p.execute,
			PositionSizePct: p.sizePct,
			DepositUSD:      p.depositUSD,
			AutoLeverage:    p.autoLeverage,
		})
		logger.Printf("Copying whale %s (%s) as session %s", whale.ID, whale.Address, sess.ID)
	}

	// Surface the creation notes (skipped history, pre-session positions).
	for _, st := range manager.Statuses() {
		for _, note := range st.Notifications {
			logger.Printf("session %s: %s", st.ID, note)
		}
	}

	// Keep the session gauges fresh while the manager owns the loop.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				active, copied, errCount := 0, 0, 0
				for _, st := range manager.Statuses() {
					if st.Active {
						active++
					}
					copied += st.Processed
					errCount += len(st.Errors)
				}
				observability.UpdateCopierSessions(active, copied, errCount)
			}
		}
	}()

	// Periodic status lines for operators tailing the log.
	go func() {
		ticker := time.NewTicker(p.statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, st := range manager.Statuses() {
					logger.Printf("session %s: whale=%s active=%v processed=%d errors=%d",
						st.ID, st.WhaleID, st.Active, st.Processed, len(st.Errors))
				}
			}
		}
	}()

	mode := "observe"
	if p.execute {
		mode = "execute"
	}
	logger.Printf("Starting copier in %s mode (poll interval %v)...", mode, p.pollInterval)
	return manager.Run(ctx)
}

// loadRun fetches the named backtest run or synthesizes one from flags.
func loadRun(ctx context.Context, runStore storage.BacktestRunStore, p copierParams, whale *domain.Whale) (*domain.BacktestRun, error) {
	if p.runID == "" {
		return &domain.BacktestRun{
			ID:                "manual",
			WhaleID:           whale.ID,
			Leverage:          p.leverage,
			PositionSizePct:   p.sizePct,
			Assets:            p.assets,
			InitialDepositUSD: p.depositUSD,
		}, nil
	}

	run, err := runStore.GetByID(ctx, p.runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("unknown run %q", p.runID)
		}
		return nil, fmt.Errorf("load run %q: %w", p.runID, err)
	}
	if run.WhaleID != whale.ID {
		return nil, fmt.Errorf("run %s belongs to whale %s, not %s", run.ID, run.WhaleID, whale.ID)
	}
	return run, nil
}

// resolveWhale loads a whale by id or, failing that, by address.
func resolveWhale(ctx context.Context, store storage.WhaleStore, ref string) (*domain.Whale, error) {
	whale, err := store.GetByID(ctx, ref)
	if err == nil {
		return whale, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return store.GetByAddress(ctx, ref)
}

// splitCSV parses a comma-separated flag into trimmed non-empty items.
func splitCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
