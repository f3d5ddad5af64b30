package exchange

import "strconv"

// Fill is one executed trade reported by the venue for a tracked address.
// Numeric fields are already parsed; Side and Dir keep the venue's raw hints
// for direction classification downstream.
type Fill struct {
	Time      int64    // execution time, unix ms
	Asset     string   // venue symbol, e.g. "BTC"
	Side      string   // venue side code: "B" buy, "A" sell
	Dir       string   // venue direction hint, e.g. "Open Long", "Close Short"
	Price     float64  // execution price, USD
	Size      float64  // base units, absolute
	ClosedPnL *float64 // realized PnL for closes, nil otherwise
	Hash      string   // transaction hash; may be empty
	TradeID   int64
	OrderID   int64
	Fee       float64
	Crossed   bool
}

// ID returns a stable provider identifier for deduplication: the transaction
// hash when present, otherwise the trade id, otherwise the order id.
func (f *Fill) ID() string {
	if f.Hash != "" {
		return f.Hash
	}
	if f.TradeID != 0 {
		return strconv.FormatInt(f.TradeID, 10)
	}
	if f.OrderID != 0 {
		return strconv.FormatInt(f.OrderID, 10)
	}
	return ""
}

// Notional returns the USD value of the fill.
func (f *Fill) Notional() float64 {
	return f.Price * f.Size
}

// AccountPosition is one open perpetual position from the venue clearinghouse.
type AccountPosition struct {
	Asset         string
	SignedSize    float64 // base units; negative = short
	EntryPrice    float64
	MarkPrice     float64 // derived from position value when the venue omits it
	UnrealizedPnL float64
}

// AccountState is a snapshot of a venue account: equity plus open positions.
type AccountState struct {
	AccountValueUSD    float64
	TotalMarginUsedUSD float64
	Positions          []AccountPosition
}

// AssetSizing describes the venue's rounding rules for one asset.
type AssetSizing struct {
	Asset      string
	SzDecimals int // size granularity
	PxDecimals int // price granularity: (6 perp | 8 spot) minus SzDecimals
}

// Order is a sized, priced instruction ready for submission.
type Order struct {
	Asset      string
	IsBuy      bool
	LimitPrice float64
	Size       float64
	ReduceOnly bool
}

// LeverageUpdate is a recorded leverage change request.
type LeverageUpdate struct {
	Asset    string
	Leverage int
	IsCross  bool
}
