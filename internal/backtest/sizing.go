package backtest

import (
	"sort"

	"whale-copy-lab/internal/metrics"
)

const (
	minuteMs = int64(60_000)
	dayMs    = 24 * 60 * minuteMs

	// perTradeCapRatio bounds a single entry to a fraction of levered equity
	// so one oversized source trade cannot consume the whole deposit.
	perTradeCapRatio = 0.05
)

// RecommendedPositionPct suggests what fraction of the source's notional to
// copy, anchoring on the 75th percentile of the source's historical entry
// sizes. Returns a fraction in [0, 1]; defaults to 1 when no usable history
// exists.
func RecommendedPositionPct(depositUSD float64, entrySizesUSD []float64) float64 {
	vals := make([]float64, 0, len(entrySizesUSD))
	for _, v := range entrySizesUSD {
		if v > 0 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 1.0
	}
	sort.Float64s(vals)

	anchor := metrics.Percentile(vals, 75)
	if anchor <= 0 {
		return 1.0
	}
	return clamp(depositUSD/anchor, 0, 1)
}

// clampLeverage normalizes requested leverage: unset (zero) means 1x, and
// the result always lands in [0.1, 100].
func clampLeverage(leverage float64) float64 {
	if leverage == 0 {
		leverage = 1
	}
	return clamp(leverage, 0.1, 100)
}

// stepFor picks the replay clock granularity for a span: minute steps
// normally, widening for multi-month and multi-year spans to bound the
// iteration count.
func stepFor(spanMs int64) int64 {
	switch {
	case spanMs > 365*dayMs:
		return 15 * minuteMs
	case spanMs > 30*dayMs:
		return 5 * minuteMs
	default:
		return minuteMs
	}
}

// truncateMinute floors a timestamp to its minute boundary.
func truncateMinute(ts int64) int64 {
	return ts - ts%minuteMs
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
