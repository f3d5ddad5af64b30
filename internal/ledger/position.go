package ledger

import "math"

// Position is one working position held during simulation or live copying.
// Qty is signed: positive long, negative short. A flat position is all
// zeros; the mutators below maintain that invariant.
type Position struct {
	Qty      float64 // base units, signed
	AvgPrice float64 // weighted-average entry price, USD
	Margin   float64 // collateral attributed to the position, USD
}

// IsFlat reports whether the position holds no quantity.
func (p *Position) IsFlat() bool {
	return p.Qty == 0
}

// ApplyEntry adds quantity at price, accumulating weighted-average cost and
// margin. An entry that nets the position to exactly zero resets it to the
// flat state.
func (p *Position) ApplyEntry(isLong bool, qty, price, margin float64) {
	signed := qty
	if !isLong {
		signed = -qty
	}
	if signed == 0 {
		return
	}

	newQty := p.Qty + signed
	if newQty == 0 {
		*p = Position{}
		return
	}

	existingCost := p.AvgPrice * p.Qty
	addedCost := price * signed
	p.Qty = newQty
	p.AvgPrice = (existingCost + addedCost) / newQty
	p.Margin += margin
}

// ApplyClose reduces the position by up to qty at price. The executed
// quantity is clipped to what is open; closing a flat position is a no-op
// with closedQty 0. Margin is released in proportion to the quantity closed,
// and a position that goes flat is reset.
func (p *Position) ApplyClose(qty, price float64) (pnl, marginReleased, closedQty float64) {
	if p.Qty == 0 || qty <= 0 {
		return 0, 0, 0
	}

	openQty := math.Abs(p.Qty)
	closedQty = math.Min(math.Abs(qty), openQty)

	if p.Qty > 0 {
		pnl = (price - p.AvgPrice) * closedQty
		p.Qty -= closedQty
	} else {
		pnl = (p.AvgPrice - price) * closedQty
		p.Qty += closedQty
	}

	if p.Margin != 0 {
		marginReleased = p.Margin * (closedQty / openQty)
	}

	if p.Qty == 0 {
		p.AvgPrice = 0
		p.Margin = 0
	} else {
		p.Margin -= marginReleased
	}
	return pnl, marginReleased, closedQty
}
