package domain

// TradeEvent is one normalized trade observed on a tracked account.
// Corresponds to the trades table in PostgreSQL. Immutable once ingested;
// the simulator and aggregator only ever read these.
type TradeEvent struct {
	ID        int64  // autoincrement, preserves ingestion order within a timestamp
	WhaleID   string // owning whale
	Time      int64  // fill timestamp (unix ms)
	Asset     string // base asset symbol, upper case (e.g. "BTC")
	Direction Direction
	BaseQty   float64  // absolute base quantity
	ValueUSD  float64  // absolute notional in USD
	PnLUSD    *float64 // realized PnL reported by the venue (nullable)
	TxHash    string   // provider fill id, dedupe key per whale
}

// ImpliedPrice derives a per-unit price from notional and quantity.
// Returns 0 when the quantity is zero.
func (t *TradeEvent) ImpliedPrice() float64 {
	if t.BaseQty == 0 {
		return 0
	}
	if t.ValueUSD < 0 {
		return -t.ValueUSD / t.BaseQty
	}
	return t.ValueUSD / t.BaseQty
}
