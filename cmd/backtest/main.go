package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"whale-copy-lab/internal/backtest"
	"whale-copy-lab/internal/config"
	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/observability"
	"whale-copy-lab/internal/pricefeed"
	"whale-copy-lab/internal/pricing"
	"whale-copy-lab/internal/signals"
	"whale-copy-lab/internal/storage"
	chstore "whale-copy-lab/internal/storage/clickhouse"
	"whale-copy-lab/internal/storage/memory"
	pgstore "whale-copy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	whaleID := flag.String("whale", "", "Whale ID to backtest")
	address := flag.String("address", "", "Whale address to backtest (alternative to --whale)")

	// Simulation parameters
	deposit := flag.Float64("deposit", 10000, "Initial deposit in USD")
	leverage := flag.Float64("leverage", 1.0, "Leverage applied to copied notionals")
	sizePct := flag.Float64("size-pct", -1, "Position size as percent of the whale's notional (negative for recommended)")
	feeBps := flag.Float64("fee-bps", 4.5, "Taker fee in basis points")
	slippageBps := flag.Float64("slippage-bps", 5, "Slippage in basis points")
	assetsCSV := flag.String("assets", "", "Comma-separated asset allow-list (empty copies every asset)")
	fromTime := flag.String("from", "", "Window start (RFC3339, default all history)")
	toTime := flag.String("to", "", "Window end (RFC3339, default now)")
	maxTrades := flag.Int("max-trades", 0, "Cap on replayed events, keeping the most recent (0 for no cap)")

	// Cross-whale signal aggregation
	signalsMode := flag.Bool("signals", false, "Correlate entries across all tracked whales instead of replaying one")
	signalWindow := flag.Duration("signal-window", 5*time.Minute, "Correlation window for --signals")
	signalMinAccounts := flag.Int("signal-min-accounts", 2, "Distinct accounts required per signal for --signals")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (defaults to CLICKHOUSE_DSN)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	noBackfill := flag.Bool("no-backfill", false, "Skip Binance price backfill and use stored history only")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persistResult := flag.Bool("persist", false, "Persist the run record to storage")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over environment values.
	if *postgresDSN == "" {
		*postgresDSN = cfg.DatabaseURL
	}
	if *clickhouseDSN == "" {
		*clickhouseDSN = cfg.ClickHouseDSN
	}

	// Validate flags
	if !*signalsMode && *whaleID == "" && *address == "" {
		logger.Fatal("--whale or --address is required")
	}
	if *deposit <= 0 {
		logger.Fatal("--deposit must be positive")
	}
	if *signalsMode && *persistResult {
		logger.Fatal("--persist applies to single-whale runs, not --signals")
	}

	from, err := parseTimeFlag(*fromTime, 0)
	if err != nil {
		logger.Fatalf("parse --from: %v", err)
	}
	to, err := parseTimeFlag(*toTime, time.Now().UnixMilli())
	if err != nil {
		logger.Fatalf("parse --to: %v", err)
	}
	assets := splitAssets(*assetsCSV)

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
	var runStore storage.BacktestRunStore = memory.NewBacktestRunStore()
	var priceStore storage.PriceHistoryStore = memory.NewPriceHistoryStore()

	if !*useMemory {
		// Require DSNs when not using memory
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (whales, trades, runs)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (price history)")
		}

		// PostgreSQL for whales, trades, and run records
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		whaleStore = pgstore.NewWhaleStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
		runStore = pgstore.NewBacktestRunStore(pool)

		// ClickHouse for minute price history
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		priceStore = chstore.NewPriceHistoryStore(conn)
	}

	var backfiller *pricefeed.Backfiller
	if !*noBackfill {
		backfiller = pricefeed.NewBackfiller(pricefeed.BackfillOptions{
			Source: pricefeed.NewBinanceSource(cfg.BinanceAPIKey, cfg.BinanceSecretKey),
			Store:  priceStore,
			Logger: logger,
		})
	}

	var sizeOverride *float64
	if *sizePct >= 0 {
		sizeOverride = sizePct
	}

	if *signalsMode {
		err := runSignals(ctx, logger, signalsParams{
			whaleStore:  whaleStore,
			tradeStore:  tradeStore,
			priceStore:  priceStore,
			backfiller:  backfiller,
			window:      *signalWindow,
			minAccounts: *signalMinAccounts,
			from:        from,
			to:          to,
			deposit:     *deposit,
			leverage:    *leverage,
			sizePct:     sizeOverride,
			feeBps:      *feeBps,
			slippageBps: *slippageBps,
			assets:      assets,
			outputJSON:  *outputJSON,
		})
		if err != nil {
			logger.Fatalf("signals failed: %v", err)
		}
		return
	}

	// Resolve the whale up front for a friendly error on typos.
	whale, err := resolveWhale(ctx, whaleStore, *whaleID, *address)
	if err != nil {
		logger.Fatalf("resolve whale: %v", err)
	}

	runnerOpts := backtest.RunnerOptions{
		WhaleStore: whaleStore,
		TradeStore: tradeStore,
		PriceStore: priceStore,
		Logger:     logger,
	}
	if *persistResult {
		runnerOpts.RunStore = runStore
	}
	if backfiller != nil {
		runnerOpts.Backfiller = backfiller
	}
	runner := backtest.NewRunner(runnerOpts)

	req := backtest.Request{
		WhaleID:           whale.ID,
		InitialDepositUSD: *deposit,
		Leverage:          *leverage,
		PositionSizePct:   sizeOverride,
		FeeBps:            *feeBps,
		SlippageBps:       *slippageBps,
		Assets:            assets,
		StartTime:         from,
		EndTime:           to,
		MaxTrades:         *maxTrades,
	}

	logger.Printf("Running backtest: whale=%s deposit=%.2f leverage=%.1f",
		whale.ID, *deposit, *leverage)

	started := time.Now()
	result, run, err := runner.Run(ctx, req)
	if err != nil {
		observability.RecordBacktestRun("error", time.Since(started).Seconds())
		logger.Fatalf("backtest failed: %v", err)
	}
	observability.RecordBacktestRun("success", time.Since(started).Seconds())
	observability.RecordTradesSimulated(result.Summary.TradesCopied)

	// Output result
	if *outputJSON {
		out := struct {
			Run    *domain.BacktestRun
			Result *backtest.Result
		}{run, result}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else {
		printRun(result, run, *persistResult)
	}
}

// resolveWhale loads the target whale by id or, failing that, by address.
func resolveWhale(ctx context.Context, store storage.WhaleStore, id, address string) (*domain.Whale, error) {
	if id != "" {
		return store.GetByID(ctx, id)
	}
	return store.GetByAddress(ctx, address)
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

// signalsParams carries everything the cross-whale signal mode needs.
type signalsParams struct {
	whaleStore  storage.WhaleStore
	tradeStore  storage.TradeStore
	priceStore  storage.PriceHistoryStore
	backfiller  *pricefeed.Backfiller
	window      time.Duration
	minAccounts int
	from, to    int64
	deposit     float64
	leverage    float64
	sizePct     *float64
	feeBps      float64
	slippageBps float64
	assets      []string
	outputJSON  bool
}

// runSignals correlates entries across all tracked whales and simulates
// copying the resulting signals. Signals synthesize entries only, so the
// simulated PnL stays unrealized; the report shows exposure and cost.
func runSignals(ctx context.Context, logger *log.Logger, p signalsParams) error {
	whales, err := p.whaleStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list whales: %w", err)
	}
	if len(whales) < p.minAccounts {
		return fmt.Errorf("%d whales tracked, need at least %d for correlation", len(whales), p.minAccounts)
	}

	var events []*domain.TradeEvent
	for _, w := range whales {
		evs, err := p.tradeStore.GetByWhaleRange(ctx, w.ID, p.from, p.to)
		if err != nil {
			return fmt.Errorf("load trades for %s: %w", w.ID, err)
		}
		events = append(events, evs...)
	}

	agg := signals.NewAggregator(p.window.Milliseconds(), p.minAccounts)
	sigs := agg.Aggregate(events)
	logger.Printf("Aggregated %d events from %d whales into %d signals",
		len(events), len(whales), len(sigs))

	synthetic := signals.TradeEvents(sigs)
	resolver, err := loadSignalPrices(ctx, logger, p, synthetic)
	if err != nil {
		return err
	}

	// Recommended sizing anchors on the signal notionals themselves.
	entrySizes := make([]float64, 0, len(sigs))
	for _, s := range sigs {
		entrySizes = append(entrySizes, s.NotionalUSD)
	}

	result := backtest.NewSimulator(resolver).Run(synthetic, backtest.Config{
		InitialDepositUSD: p.deposit,
		Leverage:          p.leverage,
		PositionSizePct:   p.sizePct,
		FeeBps:            p.feeBps,
		SlippageBps:       p.slippageBps,
		Assets:            p.assets,
		EntrySizesUSD:     entrySizes,
	})
	observability.RecordTradesSimulated(result.Summary.TradesCopied)

	if p.outputJSON {
		out := struct {
			Signals []*signals.Signal
			Result  *backtest.Result
		}{sigs, result}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printSignals(sigs)
	fmt.Println()
	fmt.Println("=== Synthetic Copy (entries only) ===")
	printSummary(result.Summary)
	return nil
}

// loadSignalPrices builds a resolver over stored price history covering the
// span of the synthetic events, backfilling gaps when enabled.
func loadSignalPrices(ctx context.Context, logger *log.Logger, p signalsParams, events []*domain.TradeEvent) (*pricing.Resolver, error) {
	resolver := pricing.NewResolver()
	if len(events) == 0 {
		return resolver, nil
	}

	type span struct{ first, last int64 }
	spans := make(map[string]*span)
	for _, ev := range events {
		if ev.Asset == "" {
			continue
		}
		sp, ok := spans[ev.Asset]
		if !ok {
			spans[ev.Asset] = &span{first: ev.Time, last: ev.Time}
			continue
		}
		if ev.Time < sp.first {
			sp.first = ev.Time
		}
		if ev.Time > sp.last {
			sp.last = ev.Time
		}
	}

	const minuteMs = int64(60_000)
	for asset, sp := range spans {
		start := sp.first - sp.first%minuteMs - minuteMs
		if p.backfiller != nil {
			if err := p.backfiller.EnsureRange(ctx, asset, start, sp.last); err != nil {
				logger.Printf("backfill %s: %v (continuing with stored history)", asset, err)
			}
		}
		points, err := p.priceStore.GetRange(ctx, asset, start, sp.last)
		if err != nil {
			return nil, fmt.Errorf("load price history for %s: %w", asset, err)
		}
		if len(points) > 0 {
			resolver.Load(asset, points)
		}
	}
	return resolver, nil
}

// printSignals outputs the correlated signal list.
func printSignals(sigs []*signals.Signal) {
	fmt.Println()
	fmt.Println("=== Correlated Signals ===")
	if len(sigs) == 0 {
		fmt.Println("No correlated entries in the window.")
		return
	}
	for _, s := range sigs {
		fmt.Printf("%s  %-8s %-6s $%.2f  (%d accounts)\n",
			time.UnixMilli(s.Time).Format(time.RFC3339),
			s.Asset, string(s.Direction), s.NotionalUSD, len(s.Accounts))
	}
}

// printRun outputs a human-readable single-whale backtest result.
func printRun(result *backtest.Result, run *domain.BacktestRun, persisted bool) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", run.ID)
	fmt.Printf("Whale ID:           %s\n", run.WhaleID)
	if persisted {
		fmt.Println("Persisted:          yes")
	}
	printSummary(result.Summary)
	if len(result.Trades) > 0 {
		fmt.Println()
		fmt.Printf("%d trade results and %d equity points recorded (use --json for detail)\n",
			len(result.Trades), len(result.Equity))
	}
}

// printSummary outputs the shared summary sections.
func printSummary(s backtest.Summary) {
	fmt.Println()
	fmt.Println("Sizing:")
	fmt.Printf("  Initial Deposit:  $%.2f\n", s.InitialDepositUSD)
	fmt.Printf("  Recommended Size: %.2f%%\n", s.RecommendedPositionPct)
	fmt.Printf("  Used Size:        %.2f%%\n", s.UsedPositionPct)
	fmt.Printf("  Leverage:         %.1fx\n", s.Leverage)
	fmt.Println()

	fmt.Println("Costs:")
	fmt.Printf("  Total Fees:       $%.2f\n", s.TotalFeesUSD)
	fmt.Printf("  Total Slippage:   $%.2f\n", s.TotalSlippageUSD)
	fmt.Println()

	fmt.Println("Result:")
	fmt.Printf("  Trades Copied:    %d\n", s.TradesCopied)
	fmt.Printf("  Gross PnL:        $%.2f\n", s.GrossPnLUSD)
	fmt.Printf("  Net PnL:          $%.2f\n", s.NetPnLUSD)
	fmt.Printf("  ROI:              %.2f%%\n", s.ROIPercent)
	if s.WinRatePercent != nil {
		fmt.Printf("  Win Rate:         %.2f%%\n", *s.WinRatePercent)
	} else {
		fmt.Println("  Win Rate:         n/a (no closed positions)")
	}
	fmt.Printf("  Max Drawdown:     %.2f%% ($%.2f)\n", s.MaxDrawdownPercent, s.MaxDrawdownUSD)
	if s.StartTime > 0 {
		fmt.Printf("  Window:           %s to %s\n",
			time.UnixMilli(s.StartTime).Format(time.RFC3339),
			time.UnixMilli(s.EndTime).Format(time.RFC3339))
	}
}
