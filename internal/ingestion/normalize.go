package ingestion

import (
	"strings"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
)

// ClassifyDirection maps the venue's free-form direction hint and side code
// onto the closed Direction set. The hint wins when it names a perp
// direction; otherwise the side code decides between spot buy and sell.
func ClassifyDirection(dirHint, sideHint string) domain.Direction {
	dir := strings.ToLower(dirHint)
	switch {
	case strings.Contains(dir, "close") && strings.Contains(dir, "short"):
		return domain.DirectionCloseShort
	case strings.Contains(dir, "close") && strings.Contains(dir, "long"):
		return domain.DirectionCloseLong
	case strings.Contains(dir, "short"):
		return domain.DirectionShort
	case strings.Contains(dir, "long"):
		return domain.DirectionLong
	}

	side := strings.ToLower(sideHint)
	if side == "a" || side == "sell" {
		return domain.DirectionSell
	}
	return domain.DirectionBuy
}

// FillToTradeEvent normalizes one venue fill into a trade event owned by
// whaleID. Quantities and notionals are stored as absolute values; the
// direction carries the sign semantics.
func FillToTradeEvent(whaleID string, fill *exchange.Fill) *domain.TradeEvent {
	qty := fill.Size
	if qty < 0 {
		qty = -qty
	}
	value := fill.Notional()
	if value < 0 {
		value = -value
	}

	event := &domain.TradeEvent{
		WhaleID:   whaleID,
		Time:      fill.Time,
		Asset:     strings.ToUpper(fill.Asset),
		Direction: ClassifyDirection(fill.Dir, fill.Side),
		BaseQty:   qty,
		ValueUSD:  value,
		TxHash:    fill.ID(),
	}
	if fill.ClosedPnL != nil {
		pnl := *fill.ClosedPnL
		event.PnLUSD = &pnl
	}
	return event
}
