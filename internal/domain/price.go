package domain

// PricePoint is one minute-close price for an asset.
// Corresponds to the price_history table in ClickHouse.
type PricePoint struct {
	Asset    string  // asset symbol, upper case
	Time     int64   // candle close timestamp (unix ms, minute aligned)
	PriceUSD float64 // close price
}
