package backtest

import "whale-copy-lab/internal/domain"

// TradeResult is one executed simulated trade.
type TradeResult struct {
	TradeID       int64            // source trade event id
	Time          int64            // event timestamp (unix ms)
	Direction     domain.Direction
	Asset         string
	NotionalUSD   float64 // executed notional after scaling, caps, affordability
	PnLUSD        float64 // realized PnL; zero for entries
	FeeUSD        float64
	SlippageUSD   float64
	NetUSD        float64 // PnL minus fee and slippage
	CumulativeUSD float64 // equity minus initial deposit after this trade
	EquityUSD     float64
	UnrealizedUSD float64
	PositionQty   float64 // signed base quantity after this trade
}

// EquityPoint is one step of the simulated equity curve.
type EquityPoint struct {
	Time          int64
	EquityUSD     float64
	UnrealizedUSD float64
}

// Summary holds the headline statistics of one simulation.
type Summary struct {
	InitialDepositUSD      float64
	RecommendedPositionPct float64 // percent
	UsedPositionPct        float64 // percent
	Leverage               float64
	TotalFeesUSD           float64
	TotalSlippageUSD       float64
	GrossPnLUSD            float64
	NetPnLUSD              float64
	ROIPercent             float64
	TradesCopied           int
	WinRatePercent         *float64 // nil when no positions were closed
	MaxDrawdownPercent     float64
	MaxDrawdownUSD         float64
	StartTime              int64 // first processed event (ms); 0 when empty
	EndTime                int64 // last processed event (ms); 0 when empty
}

// Result bundles the summary with per-trade results and the equity curve.
type Result struct {
	Summary Summary
	Trades  []TradeResult
	Equity  []EquityPoint
}

// Run converts the result into a persistable run record. The caller assigns
// the id and creation time.
func (r *Result) Run(id, whaleID string, createdAt int64, positionSizePct *float64, assets []string) *domain.BacktestRun {
	return &domain.BacktestRun{
		ID:                 id,
		WhaleID:            whaleID,
		CreatedAt:          createdAt,
		Leverage:           r.Summary.Leverage,
		PositionSizePct:    positionSizePct,
		Assets:             assets,
		InitialDepositUSD:  r.Summary.InitialDepositUSD,
		NetPnLUSD:          r.Summary.NetPnLUSD,
		ROIPercent:         r.Summary.ROIPercent,
		WinRatePercent:     r.Summary.WinRatePercent,
		TradesCopied:       r.Summary.TradesCopied,
		MaxDrawdownPercent: r.Summary.MaxDrawdownPercent,
		MaxDrawdownUSD:     r.Summary.MaxDrawdownUSD,
		StartTime:          r.Summary.StartTime,
		EndTime:            r.Summary.EndTime,
	}
}
