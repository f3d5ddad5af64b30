package backtest

import (
	"math"
	"sort"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/ledger"
	"whale-copy-lab/internal/metrics"
	"whale-copy-lab/internal/pricing"
)

// Config parameterizes one simulation.
type Config struct {
	InitialDepositUSD float64
	Leverage          float64  // 0 means 1x; clamped to [0.1, 100]
	PositionSizePct   *float64 // percent of source notional to copy; nil = recommended sizing
	FeeBps            float64
	SlippageBps       float64
	Assets            []string  // allow-list; empty allows all assets
	EntrySizesUSD     []float64 // full-history entry notionals, for recommended sizing
}

// Simulator replays a whale's trade events against a simulated deposit.
// The price resolver must be preloaded and is treated as read-only during a
// run; concurrent Run calls are safe because each call owns its own state.
type Simulator struct {
	resolver *pricing.Resolver
}

// NewSimulator creates a Simulator over a preloaded price resolver.
// A nil resolver prices everything from trade-implied fallbacks.
func NewSimulator(resolver *pricing.Resolver) *Simulator {
	if resolver == nil {
		resolver = pricing.NewResolver()
	}
	return &Simulator{resolver: resolver}
}

// Run replays events on a synthetic clock from the first to the last event
// timestamp, stepping one minute at a time (coarser for long spans). Events
// are processed in timestamp order within the step containing them; one
// equity point is recorded per step whether or not trades occurred.
//
// An empty filtered input yields a complete zero-valued result, not an
// error.
func (s *Simulator) Run(events []*domain.TradeEvent, cfg Config) *Result {
	recommended := RecommendedPositionPct(cfg.InitialDepositUSD, cfg.EntrySizesUSD)
	usedPct := recommended
	if cfg.PositionSizePct != nil {
		usedPct = *cfg.PositionSizePct / 100
	}
	usedPct = clamp(usedPct, 0, 2)

	st := &runState{
		resolver: s.resolver,
		usedPct:  usedPct,
		leverage: clampLeverage(cfg.Leverage),
		feeRate:  cfg.FeeBps / 10_000,
		slipRate: cfg.SlippageBps / 10_000,
		deposit:  cfg.InitialDepositUSD,
		cash:     cfg.InitialDepositUSD,
		book:     ledger.NewBook(),
		trades:   []TradeResult{},
		equity:   []EquityPoint{},
	}

	filtered := filterEvents(events, cfg.Assets)
	if len(filtered) == 0 {
		return st.result(recommended, 0, 0)
	}

	start := truncateMinute(filtered[0].Time)
	end := truncateMinute(filtered[len(filtered)-1].Time)
	step := stepFor(end - start)

	idx := 0
	for ts := start; ts <= end; ts += step {
		stepEnd := ts + step - 1
		for idx < len(filtered) && filtered[idx].Time <= stepEnd {
			st.processEvent(filtered[idx])
			idx++
		}
		st.recordEquity(ts)
	}

	return st.result(recommended, filtered[0].Time, filtered[len(filtered)-1].Time)
}

// filterEvents drops deposits, unknown directions and events without an
// asset, applies the allow-list, and returns the remainder ordered by time
// then id.
func filterEvents(events []*domain.TradeEvent, assets []string) []*domain.TradeEvent {
	var allowed map[string]struct{}
	if len(assets) > 0 {
		allowed = make(map[string]struct{}, len(assets))
		for _, a := range assets {
			allowed[a] = struct{}{}
		}
	}

	filtered := make([]*domain.TradeEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.Asset == "" {
			continue
		}
		if !ev.Direction.IsEntry() && !ev.Direction.IsClose() {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[ev.Asset]; !ok {
				continue
			}
		}
		filtered = append(filtered, ev)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Time != filtered[j].Time {
			return filtered[i].Time < filtered[j].Time
		}
		return filtered[i].ID < filtered[j].ID
	})
	return filtered
}

// runState is the mutable state of one simulation run.
type runState struct {
	resolver *pricing.Resolver
	usedPct  float64 // fraction of source notional copied
	leverage float64
	feeRate  float64
	slipRate float64
	deposit  float64

	book *ledger.Book
	cash float64

	totalFees     float64
	totalSlippage float64
	grossPnL      float64
	wins          int
	closingTrades int

	trades []TradeResult
	equity []EquityPoint
}

func (st *runState) processEvent(ev *domain.TradeEvent) {
	desired := math.Abs(ev.ValueUSD) * st.usedPct
	if desired <= 0 {
		return
	}

	price := st.resolver.Resolve(ev.Asset, ev.Time, ev.ImpliedPrice())
	if price <= 0 {
		return
	}

	if ev.Direction.IsEntry() {
		st.applyEntry(ev, desired, price)
	} else {
		st.applyClose(ev, desired, price)
	}
}

// applyEntry opens or extends a position. Each entry is capped at a fraction
// of levered equity, then scaled down to what cash can still fund.
func (st *runState) applyEntry(ev *domain.TradeEvent, desired, price float64) {
	unrealized, margin := st.book.UnrealizedAndMargin(ev.Time, st.resolver)
	equityNow := st.cash + margin + unrealized
	maxOverall := equityNow * st.leverage
	if maxOverall <= 0 {
		return
	}

	notional := math.Min(desired, maxOverall*perTradeCapRatio)
	if notional <= 0 {
		return
	}

	fee := notional * st.feeRate
	slip := notional * st.slipRate
	marginRequired := notional / st.leverage
	totalCost := marginRequired + fee + slip
	if totalCost > st.cash {
		if totalCost <= 0 {
			return
		}
		scale := st.cash / totalCost
		notional *= scale
		if notional <= 0 {
			return
		}
		fee = notional * st.feeRate
		slip = notional * st.slipRate
		marginRequired = notional / st.leverage
	}

	st.totalFees += fee
	st.totalSlippage += slip

	pos := st.book.Get(ev.Asset)
	pos.ApplyEntry(ev.Direction.IsLongSide(), notional/price, price, marginRequired)
	st.cash -= marginRequired + fee + slip
	if st.cash < 0 {
		st.cash = 0 // float residue from the affordability scaling
	}

	st.record(ev, pos, notional, 0, fee, slip, -(fee + slip))
}

// applyClose unwinds up to the open quantity. Closes are never equity-capped
// and fees apply to the executed notional only.
func (st *runState) applyClose(ev *domain.TradeEvent, desired, price float64) {
	pos := st.book.Get(ev.Asset)
	if pos.IsFlat() {
		return
	}

	pnl, released, closedQty := pos.ApplyClose(desired/price, price)
	if closedQty == 0 {
		return
	}

	executed := closedQty * price
	fee := executed * st.feeRate
	slip := executed * st.slipRate
	st.totalFees += fee
	st.totalSlippage += slip

	net := pnl - fee - slip
	st.grossPnL += pnl
	st.cash += released + net
	st.closingTrades++
	if net > 0 {
		st.wins++
	}

	st.record(ev, pos, executed, pnl, fee, slip, net)
}

func (st *runState) record(ev *domain.TradeEvent, pos *ledger.Position, notional, pnl, fee, slip, net float64) {
	unrealized, margin := st.book.UnrealizedAndMargin(ev.Time, st.resolver)
	equity := st.cash + margin + unrealized
	st.trades = append(st.trades, TradeResult{
		TradeID:       ev.ID,
		Time:          ev.Time,
		Direction:     ev.Direction,
		Asset:         ev.Asset,
		NotionalUSD:   notional,
		PnLUSD:        pnl,
		FeeUSD:        fee,
		SlippageUSD:   slip,
		NetUSD:        net,
		CumulativeUSD: equity - st.deposit,
		EquityUSD:     equity,
		UnrealizedUSD: unrealized,
		PositionQty:   pos.Qty,
	})
}

func (st *runState) recordEquity(ts int64) {
	unrealized, margin := st.book.UnrealizedAndMargin(ts, st.resolver)
	st.equity = append(st.equity, EquityPoint{
		Time:          ts,
		EquityUSD:     st.cash + margin + unrealized,
		UnrealizedUSD: unrealized,
	})
}

// result assembles the summary from the final state. Net PnL is measured
// from the last recorded equity point, marking open positions to market.
func (st *runState) result(recommendedPct float64, startTime, endTime int64) *Result {
	net := 0.0
	if len(st.equity) > 0 {
		net = st.equity[len(st.equity)-1].EquityUSD - st.deposit
	}
	roi := 0.0
	if st.deposit > 0 {
		roi = net / st.deposit * 100
	}

	values := make([]float64, len(st.equity))
	for i, p := range st.equity {
		values[i] = p.EquityUSD
	}
	ddPct, ddUSD := metrics.MaxDrawdown(values)

	return &Result{
		Summary: Summary{
			InitialDepositUSD:      st.deposit,
			RecommendedPositionPct: recommendedPct * 100,
			UsedPositionPct:        st.usedPct * 100,
			Leverage:               st.leverage,
			TotalFeesUSD:           st.totalFees,
			TotalSlippageUSD:       st.totalSlippage,
			GrossPnLUSD:            st.grossPnL,
			NetPnLUSD:              net,
			ROIPercent:             roi,
			TradesCopied:           len(st.trades),
			WinRatePercent:         metrics.WinRatePercent(st.wins, st.closingTrades),
			MaxDrawdownPercent:     ddPct,
			MaxDrawdownUSD:         ddUSD,
			StartTime:              startTime,
			EndTime:                endTime,
		},
		Trades: st.trades,
		Equity: st.equity,
	}
}
