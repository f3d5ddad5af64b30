package exchange

import (
	"context"
	"log"
	"os"
	"sync"
)

// DryRunTrader records orders and leverage updates instead of transmitting
// them. It is the only Trader in this repo; live submission plugs in behind
// the same interface.
type DryRunTrader struct {
	logger *log.Logger

	mu              sync.Mutex
	orders          []Order
	leverageUpdates []LeverageUpdate
}

var _ Trader = (*DryRunTrader)(nil)

// NewDryRunTrader creates a DryRunTrader. A nil logger gets a default.
func NewDryRunTrader(logger *log.Logger) *DryRunTrader {
	if logger == nil {
		logger = log.New(os.Stderr, "[dry-run] ", log.LstdFlags)
	}
	return &DryRunTrader{logger: logger}
}

// SubmitOrder records the order and logs it.
func (t *DryRunTrader) SubmitOrder(_ context.Context, order *Order) error {
	t.mu.Lock()
	t.orders = append(t.orders, *order)
	t.mu.Unlock()

	side := "sell"
	if order.IsBuy {
		side = "buy"
	}
	t.logger.Printf("order %s %s size=%v px=%v reduceOnly=%v",
		side, order.Asset, order.Size, order.LimitPrice, order.ReduceOnly)
	return nil
}

// UpdateLeverage records the leverage change and logs it.
func (t *DryRunTrader) UpdateLeverage(_ context.Context, asset string, leverage int, isCross bool) error {
	t.mu.Lock()
	t.leverageUpdates = append(t.leverageUpdates, LeverageUpdate{Asset: asset, Leverage: leverage, IsCross: isCross})
	t.mu.Unlock()

	t.logger.Printf("leverage %s -> %dx cross=%v", asset, leverage, isCross)
	return nil
}

// Orders returns a copy of the recorded orders.
func (t *DryRunTrader) Orders() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// LeverageUpdates returns a copy of the recorded leverage changes.
func (t *DryRunTrader) LeverageUpdates() []LeverageUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]LeverageUpdate, len(t.leverageUpdates))
	copy(out, t.leverageUpdates)
	return out
}
