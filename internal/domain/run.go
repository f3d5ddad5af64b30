package domain

// BacktestRun is a persisted backtest parameterization with its headline
// results. A live copy session is created from one of these.
// Corresponds to the backtest_runs table in PostgreSQL.
type BacktestRun struct {
	ID              string   // UUID
	WhaleID         string   // source whale
	CreatedAt       int64    // run creation timestamp (ms)
	Leverage        float64  // used leverage, clamped
	PositionSizePct *float64 // used sizing percent, nil = auto at session time
	Assets          []string // asset allow-list, empty = all

	InitialDepositUSD  float64
	NetPnLUSD          float64
	ROIPercent         float64
	WinRatePercent     *float64 // nil when the run closed no positions
	TradesCopied       int
	MaxDrawdownPercent float64
	MaxDrawdownUSD     float64
	StartTime          int64 // first event processed (ms)
	EndTime            int64 // last event processed (ms)
}
