package signals

import (
	"testing"

	"whale-copy-lab/internal/domain"
)

func entry(id int64, whaleID string, ts int64, dir domain.Direction, asset string, valueUSD float64) *domain.TradeEvent {
	return &domain.TradeEvent{
		ID:        id,
		WhaleID:   whaleID,
		Time:      ts,
		Asset:     asset,
		Direction: dir,
		ValueUSD:  valueUSD,
		TxHash:    "0x",
	}
}

func TestAggregator_ThreeOfThreeFiresOnce(t *testing.T) {
	agg := NewAggregator(300_000, 3)

	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 2_000, domain.DirectionLong, "BTC", 200),
		entry(3, "w3", 3_000, domain.DirectionLong, "BTC", 300),
	}
	signals := agg.Aggregate(events)

	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Time != 1_000 {
		t.Errorf("expected signal at the first entry's time, got %d", sig.Time)
	}
	if sig.Asset != "BTC" || sig.Direction != domain.DirectionLong {
		t.Errorf("unexpected signal identity: %+v", sig)
	}
	if sig.NotionalUSD != 200 {
		t.Errorf("expected mean notional 200, got %f", sig.NotionalUSD)
	}
	if len(sig.Accounts) != 3 {
		t.Errorf("expected 3 contributors, got %v", sig.Accounts)
	}
}

func TestAggregator_TwoOfThreeDoesNotFire(t *testing.T) {
	agg := NewAggregator(300_000, 3)

	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 2_000, domain.DirectionLong, "BTC", 200),
	}
	if signals := agg.Aggregate(events); len(signals) != 0 {
		t.Errorf("expected no signals below the threshold, got %v", signals)
	}
}

func TestAggregator_SameAccountCountsOnce(t *testing.T) {
	agg := NewAggregator(300_000, 3)

	// w1 enters twice; still only two distinct accounts.
	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionLong, "BTC", 100),
		entry(2, "w1", 2_000, domain.DirectionLong, "BTC", 300),
		entry(3, "w2", 3_000, domain.DirectionLong, "BTC", 200),
	}
	if signals := agg.Aggregate(events); len(signals) != 0 {
		t.Fatalf("expected no signals with 2 distinct accounts, got %v", signals)
	}

	// At threshold 2 the duplicate's first entry contributes to the mean.
	signals := NewAggregator(300_000, 2).Aggregate(events)
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].NotionalUSD != 150 {
		t.Errorf("expected mean of first entries (100+200)/2=150, got %f", signals[0].NotionalUSD)
	}
}

func TestAggregator_OppositeFamiliesDoNotAgree(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 2_000, domain.DirectionShort, "BTC", 200),
	}
	if signals := agg.Aggregate(events); len(signals) != 0 {
		t.Errorf("expected no consensus across opposite sides, got %v", signals)
	}
}

func TestAggregator_BuyJoinsLongFamily(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionBuy, "BTC", 100),
		entry(2, "w2", 2_000, domain.DirectionLong, "BTC", 200),
	}
	signals := agg.Aggregate(events)
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].Direction != domain.DirectionLong {
		t.Errorf("expected normalized long direction, got %s", signals[0].Direction)
	}
}

func TestAggregator_SuppressesRefireWithinWindow(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(1, "w1", 0, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 1_000, domain.DirectionLong, "BTC", 200),
		// Fresh agreement inside the suppression window: must not re-fire.
		entry(3, "w1", 10_000, domain.DirectionLong, "BTC", 400),
		entry(4, "w3", 11_000, domain.DirectionLong, "BTC", 600),
		// Window elapsed: fires again.
		entry(5, "w1", 300_000, domain.DirectionLong, "BTC", 500),
		entry(6, "w2", 301_000, domain.DirectionLong, "BTC", 700),
	}
	signals := agg.Aggregate(events)

	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].Time != 0 || signals[1].Time != 300_000 {
		t.Errorf("unexpected signal times: %d, %d", signals[0].Time, signals[1].Time)
	}
}

func TestAggregator_AssetsAndFamiliesIndependent(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 2_000, domain.DirectionLong, "BTC", 200),
		entry(3, "w1", 3_000, domain.DirectionShort, "ETH", 300),
		entry(4, "w3", 4_000, domain.DirectionShort, "ETH", 500),
	}
	signals := agg.Aggregate(events)

	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].Asset != "BTC" || signals[1].Asset != "ETH" {
		t.Errorf("unexpected assets: %s, %s", signals[0].Asset, signals[1].Asset)
	}
	if signals[1].Direction != domain.DirectionShort {
		t.Errorf("expected short consensus on ETH, got %s", signals[1].Direction)
	}
}

func TestAggregator_WindowExcludesLateEntries(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(1, "w1", 0, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 300_001, domain.DirectionLong, "BTC", 200),
	}
	if signals := agg.Aggregate(events); len(signals) != 0 {
		t.Errorf("expected no signal across the window boundary, got %v", signals)
	}
}

func TestAggregator_IgnoresCloses(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(1, "w1", 1_000, domain.DirectionCloseLong, "BTC", 100),
		entry(2, "w2", 2_000, domain.DirectionCloseLong, "BTC", 200),
		entry(3, "w3", 3_000, domain.DirectionSell, "BTC", 300),
	}
	if signals := agg.Aggregate(events); len(signals) != 0 {
		t.Errorf("expected closes ignored, got %v", signals)
	}
}

func TestAggregator_UnorderedInputSortedFirst(t *testing.T) {
	agg := NewAggregator(300_000, 2)

	events := []*domain.TradeEvent{
		entry(2, "w2", 2_000, domain.DirectionLong, "BTC", 200),
		entry(1, "w1", 1_000, domain.DirectionLong, "BTC", 100),
	}
	signals := agg.Aggregate(events)
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].Time != 1_000 {
		t.Errorf("expected the earliest entry to seed the signal, got %d", signals[0].Time)
	}
	if len(signals[0].Accounts) != 2 || signals[0].Accounts[0] != "w1" {
		t.Errorf("expected contributors ordered by time, got %v", signals[0].Accounts)
	}
}

func TestTradeEvents_SynthesizesEntriesOnly(t *testing.T) {
	signals := []*Signal{
		{Time: 1_000, Asset: "BTC", Direction: domain.DirectionLong, NotionalUSD: 200, Accounts: []string{"w1", "w2"}},
		{Time: 5_000, Asset: "ETH", Direction: domain.DirectionShort, NotionalUSD: 400, Accounts: []string{"w1", "w3"}},
	}
	events := TradeEvents(signals)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for i, ev := range events {
		if !ev.Direction.IsEntry() {
			t.Errorf("event %d: expected an entry direction, got %s", i, ev.Direction)
		}
		if ev.BaseQty != 0 {
			t.Errorf("event %d: synthetic events carry no base quantity, got %f", i, ev.BaseQty)
		}
		if ev.ID != int64(i+1) {
			t.Errorf("event %d: expected sequential id, got %d", i, ev.ID)
		}
	}
	if events[0].ValueUSD != 200 || events[1].ValueUSD != 400 {
		t.Errorf("expected mean notionals carried over, got %f / %f", events[0].ValueUSD, events[1].ValueUSD)
	}
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator(0, 0)

	// Two accounts just inside the default 5m window.
	events := []*domain.TradeEvent{
		entry(1, "w1", 0, domain.DirectionLong, "BTC", 100),
		entry(2, "w2", 299_999, domain.DirectionLong, "BTC", 300),
	}
	signals := agg.Aggregate(events)
	if len(signals) != 1 {
		t.Fatalf("expected default window and threshold to fire, got %d signals", len(signals))
	}
	if signals[0].NotionalUSD != 200 {
		t.Errorf("expected mean 200, got %f", signals[0].NotionalUSD)
	}
}
