package pricing

import (
	"errors"
	"sort"

	"whale-copy-lab/internal/domain"
)

// ErrNoPriceData is returned when an asset has no usable price at or before
// the requested timestamp.
var ErrNoPriceData = errors.New("no price data available")

// Resolver answers "what was this asset worth at time t" from cached minute
// series. Each simulation or session owns its own Resolver; series are loaded
// up front and treated as read-only afterwards.
type Resolver struct {
	series map[string][]*domain.PricePoint
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{series: make(map[string][]*domain.PricePoint)}
}

// Load replaces the series for an asset. Points must be ordered by time ASC.
func (r *Resolver) Load(asset string, points []*domain.PricePoint) {
	r.series[asset] = points
}

// HasSeries reports whether the asset has any cached points.
func (r *Resolver) HasSeries(asset string) bool {
	return len(r.series[asset]) > 0
}

// PriceAt returns the latest price at or before target.
// Returns ErrNoPriceData when the asset has no series or no point at or
// before target.
func (r *Resolver) PriceAt(asset string, target int64) (float64, error) {
	points := r.series[asset]
	if len(points) == 0 {
		return 0, ErrNoPriceData
	}

	// First index with time > target; the point before it is the answer.
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Time > target
	})
	if idx == 0 {
		return 0, ErrNoPriceData
	}
	return points[idx-1].PriceUSD, nil
}

// Resolve returns the latest price at or before target, or fallback when the
// series cannot answer. A zero or negative fallback passes through unchanged;
// the caller decides whether that is usable.
func (r *Resolver) Resolve(asset string, target int64, fallback float64) float64 {
	price, err := r.PriceAt(asset, target)
	if err != nil {
		return fallback
	}
	return price
}
