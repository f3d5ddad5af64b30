package metrics

import (
	"math"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
)

const thirtyDaysMs = int64(30) * 24 * 3600 * 1000

// Percentile returns the p-th percentile (0-100) of sorted values using
// linear interpolation between order statistics. sorted must be pre-sorted ASC.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p / 100 * float64(n-1)
	lower := int(math.Floor(idx))
	if lower < 0 {
		return sorted[0]
	}
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MaxDrawdown walks an equity curve in order and returns the deepest decline
// from a running peak, as a percentage of that peak and in USD. The USD gap
// reported is the one observed at the percentage maximum.
func MaxDrawdown(equity []float64) (maxPct, maxUSD float64) {
	if len(equity) == 0 {
		return 0, 0
	}

	peak := equity[0]
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak <= 0 {
			continue
		}
		gap := peak - eq
		pct := gap / peak * 100
		if pct > maxPct {
			maxPct = pct
			maxUSD = gap
		}
	}
	return maxPct, maxUSD
}

// WinRatePercent returns wins/total*100, or nil when there is nothing to
// rate.
func WinRatePercent(wins, total int) *float64 {
	if total == 0 {
		return nil
	}
	rate := float64(wins) / float64(total) * 100
	return &rate
}

// ComputeWalletMetrics builds a point-in-time metrics snapshot for one whale
// from its stored trades and an optional venue account snapshot. A nil state
// leaves the account-derived fields at zero; trade-derived fields are always
// populated.
func ComputeWalletMetrics(whaleID string, trades []*domain.TradeEvent, state *exchange.AccountState, now int64) *domain.WalletMetrics {
	windowStart := now - thirtyDaysMs

	volume30 := 0.0
	trades30 := 0
	realized := 0.0
	pnlBearing := 0
	wins := 0

	for _, tr := range trades {
		if tr.Time >= windowStart {
			volume30 += math.Abs(tr.ValueUSD)
			trades30++
		}
		if tr.PnLUSD != nil {
			realized += *tr.PnLUSD
			pnlBearing++
			if *tr.PnLUSD > 0 {
				wins++
			}
		}
	}

	m := &domain.WalletMetrics{
		WhaleID:        whaleID,
		RealizedPnLUSD: realized,
		Volume30dUSD:   volume30,
		Trades30d:      trades30,
		WinRatePercent: WinRatePercent(wins, pnlBearing),
		ComputedAt:     now,
	}

	if state != nil {
		m.AccountValueUSD = state.AccountValueUSD
		unrealized := 0.0
		for _, p := range state.Positions {
			unrealized += p.UnrealizedPnL
		}
		m.UnrealizedPnLUSD = unrealized
		if state.TotalMarginUsedUSD > 0 {
			m.ROIPercent = (state.AccountValueUSD - state.TotalMarginUsedUSD) / state.TotalMarginUsedUSD * 100
		}
	}

	return m
}
