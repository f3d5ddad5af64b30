package exchange

import "context"

// FillSource reports executed fills for an address. Implementations may
// return a fill more than once across calls; consumers dedupe by Fill.ID.
type FillSource interface {
	// UserFills returns fills with time >= since, oldest first.
	UserFills(ctx context.Context, address string, since int64) ([]Fill, error)
}

// AccountStateSource reports venue account snapshots.
type AccountStateSource interface {
	AccountState(ctx context.Context, address string) (*AccountState, error)
}

// SizingSource reports venue rounding rules per asset.
type SizingSource interface {
	AssetSizing(ctx context.Context, asset string) (*AssetSizing, error)
}

// Trader submits orders and adjusts leverage. Implementations are
// side-effecting; transient failures are expected and callers retry on the
// next fill rather than blocking.
type Trader interface {
	SubmitOrder(ctx context.Context, order *Order) error
	UpdateLeverage(ctx context.Context, asset string, leverage int, isCross bool) error
}
