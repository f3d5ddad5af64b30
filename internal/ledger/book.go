package ledger

import "math"

// MarkSource resolves a mark price for an asset at a timestamp, falling back
// to the provided price when the series cannot answer.
type MarkSource interface {
	Resolve(asset string, ts int64, fallback float64) float64
}

// Book tracks positions per asset for one simulated or copied account.
// Not safe for concurrent use; each simulation or session owns its own Book.
type Book struct {
	positions map[string]*Position
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{positions: make(map[string]*Position)}
}

// Get returns the position for an asset, creating a flat one on first use.
func (b *Book) Get(asset string) *Position {
	pos, ok := b.positions[asset]
	if !ok {
		pos = &Position{}
		b.positions[asset] = pos
	}
	return pos
}

// UnrealizedAndMargin sums unrealized PnL and held margin across all
// positions, marking each at the latest price at or before ts. A position
// whose mark cannot be resolved is valued at its average price, contributing
// zero unrealized PnL but its full margin.
func (b *Book) UnrealizedAndMargin(ts int64, marks MarkSource) (unrealized, margin float64) {
	for asset, pos := range b.positions {
		margin += pos.Margin
		if pos.Qty == 0 {
			continue
		}
		mark := pos.AvgPrice
		if marks != nil {
			mark = marks.Resolve(asset, ts, pos.AvgPrice)
		}
		if pos.Qty > 0 {
			unrealized += (mark - pos.AvgPrice) * pos.Qty
		} else {
			unrealized += (pos.AvgPrice - mark) * math.Abs(pos.Qty)
		}
	}
	return unrealized, margin
}
