package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whale-copy-lab/internal/config"
	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/hyperliquid"
	"whale-copy-lab/internal/metrics"
	"whale-copy-lab/internal/storage"
	"whale-copy-lab/internal/storage/memory"
	pgstore "whale-copy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	whaleID := flag.String("whale", "", "Whale ID to report on (default all tracked whales)")
	address := flag.String("address", "", "Whale address to report on (alternative to --whale)")
	runLimit := flag.Int("runs", 3, "Recent backtest runs to include per whale (0 to skip)")
	refresh := flag.Bool("refresh", false, "Recompute metrics from stored trades before reporting")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over environment values.
	if *postgresDSN == "" {
		*postgresDSN = cfg.DatabaseURL
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

	// Create stores
	var whaleStore storage.WhaleStore = memory.NewWhaleStore()
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var metricsStore storage.WalletMetricsStore = memory.NewWalletMetricsStore()
	var runStore storage.BacktestRunStore = memory.NewBacktestRunStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		whaleStore = pgstore.NewWhaleStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
		metricsStore = pgstore.NewWalletMetricsStore(pool)
		runStore = pgstore.NewBacktestRunStore(pool)
	}

	// Select whales
	var whales []*domain.Whale
	switch {
	case *whaleID != "":
		whale, err := whaleStore.GetByID(ctx, *whaleID)
		if err != nil {
			logger.Fatalf("resolve whale %q: %v", *whaleID, err)
		}
		whales = append(whales, whale)
	case *address != "":
		whale, err := whaleStore.GetByAddress(ctx, *address)
		if err != nil {
			logger.Fatalf("resolve address %q: %v", *address, err)
		}
		whales = append(whales, whale)
	default:
		whales, err = whaleStore.GetAll(ctx)
		if err != nil {
			logger.Fatalf("list whales: %v", err)
		}
	}
	if len(whales) == 0 {
		logger.Fatal("No whales tracked yet; add one with ingest -mode add")
	}

	var aggregator *metrics.WalletAggregator
	if *refresh {
		info := hyperliquid.NewInfoClient(cfg.HyperliquidAPIURL,
			hyperliquid.WithRateLimit(cfg.HyperliquidMaxRPS))
		aggregator = metrics.NewWalletAggregator(tradeStore, metricsStore, info)
	}

	// Assemble the report
	type whaleReport struct {
		Whale   *domain.Whale
		Metrics *domain.WalletMetrics
		Runs    []*domain.BacktestRun
	}
	reports := make([]whaleReport, 0, len(whales))

	for _, whale := range whales {
		var snapshot *domain.WalletMetrics
		if aggregator != nil {
			snapshot, err = aggregator.Recompute(ctx, whale, time.Now().UnixMilli())
			if err != nil {
				logger.Printf("whale %s: recompute metrics: %v (falling back to stored)", whale.ID, err)
				snapshot = nil
			}
		}
		if snapshot == nil {
			snapshot, err = metricsStore.Get(ctx, whale.ID)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					logger.Fatalf("load metrics for %s: %v", whale.ID, err)
				}
				snapshot = nil
			}
		}

		var runs []*domain.BacktestRun
		if *runLimit > 0 {
			runs, err = runStore.GetByWhale(ctx, whale.ID)
			if err != nil {
				logger.Fatalf("load runs for %s: %v", whale.ID, err)
			}
			if len(runs) > *runLimit {
				runs = runs[:*runLimit]
			}
		}

		reports = append(reports, whaleReport{Whale: whale, Metrics: snapshot, Runs: runs})
	}

	// Output
	if *outputJSON {
		data, _ := json.MarshalIndent(reports, "", "  ")
		fmt.Println(string(data))
		return
	}
	for _, r := range reports {
		printWhale(r.Whale, r.Metrics, r.Runs)
	}
}

// printWhale outputs one whale's report section.
func printWhale(whale *domain.Whale, snapshot *domain.WalletMetrics, runs []*domain.BacktestRun) {
	fmt.Println()
	fmt.Printf("=== Whale %s ===\n", whale.ID)
	fmt.Printf("Address:            %s\n", whale.Address)
	if whale.Label != nil {
		fmt.Printf("Label:              %s\n", *whale.Label)
	}
	fmt.Printf("Tracked Since:      %s\n", time.UnixMilli(whale.CreatedAt).Format(time.RFC3339))
	if whale.LastActiveAt != nil {
		fmt.Printf("Last Active:        %s\n", time.UnixMilli(*whale.LastActiveAt).Format(time.RFC3339))
	}

	fmt.Println()
	if snapshot == nil {
		fmt.Println("No metrics computed yet (run ingest first, or pass --refresh).")
	} else {
		fmt.Printf("Metrics (computed %s):\n", time.UnixMilli(snapshot.ComputedAt).Format(time.RFC3339))
		fmt.Printf("  Account Value:    $%.2f\n", snapshot.AccountValueUSD)
		fmt.Printf("  Realized PnL:     $%.2f\n", snapshot.RealizedPnLUSD)
		fmt.Printf("  Unrealized PnL:   $%.2f\n", snapshot.UnrealizedPnLUSD)
		fmt.Printf("  ROI:              %.2f%%\n", snapshot.ROIPercent)
		fmt.Printf("  30d Volume:       $%.2f\n", snapshot.Volume30dUSD)
		fmt.Printf("  30d Trades:       %d\n", snapshot.Trades30d)
		if snapshot.WinRatePercent != nil {
			fmt.Printf("  Win Rate:         %.2f%%\n", *snapshot.WinRatePercent)
		} else {
			fmt.Println("  Win Rate:         n/a")
		}
	}

	if len(runs) > 0 {
		fmt.Println()
		fmt.Println("Recent Runs:")
		for _, run := range runs {
			fmt.Printf("  %s  %s  net=$%.2f roi=%.2f%% trades=%d\n",
				run.ID, time.UnixMilli(run.CreatedAt).Format(time.RFC3339),
				run.NetPnLUSD, run.ROIPercent, run.TradesCopied)
		}
	}
}
