package domain

// WalletMetrics is the current performance snapshot for one whale, recomputed
// after each ingestion cycle. Corresponds to the wallet_metrics table in
// PostgreSQL (one row per whale, overwritten in place).
type WalletMetrics struct {
	WhaleID          string
	AccountValueUSD  float64  // venue-reported account value
	RealizedPnLUSD   float64  // sum of venue-reported closed PnL
	UnrealizedPnLUSD float64  // sum over open positions
	ROIPercent       float64
	Volume30dUSD     float64  // notional traded in the trailing 30 days
	Trades30d        int      // trade count in the trailing 30 days
	WinRatePercent   *float64 // nil when no PnL-bearing trades exist
	ComputedAt       int64    // unix ms
}
