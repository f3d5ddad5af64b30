package signals

import (
	"math"
	"sort"

	"whale-copy-lab/internal/domain"
)

// Defaults for consensus detection.
const (
	DefaultWindowMs    int64 = 300_000 // 5 minutes
	DefaultMinAccounts       = 2
)

// Signal is one consensus observation: at least minAccounts distinct
// accounts entered the same asset on the same side within the alignment
// window. Signals are ephemeral; they are converted straight into synthetic
// trade events for simulation and never persisted.
type Signal struct {
	Time        int64  // timestamp of the earliest contributing entry (ms)
	Asset       string
	Direction   domain.Direction // normalized family: long or short
	NotionalUSD float64          // mean notional across contributors
	Accounts    []string         // contributing whale ids, earliest first
}

// Aggregator correlates entry trades across accounts.
type Aggregator struct {
	windowMs    int64
	minAccounts int
}

// NewAggregator creates an aggregator with the given alignment window (ms)
// and minimum count of agreeing accounts. Non-positive arguments fall back
// to the package defaults.
func NewAggregator(windowMs int64, minAccounts int) *Aggregator {
	if windowMs <= 0 {
		windowMs = DefaultWindowMs
	}
	if minAccounts <= 0 {
		minAccounts = DefaultMinAccounts
	}
	return &Aggregator{windowMs: windowMs, minAccounts: minAccounts}
}

type pairKey struct {
	asset  string
	family domain.Direction
}

// Aggregate scans entry events from multiple accounts, ordered by time, and
// emits one Signal per consensus: a seed entry plus entries from other
// accounts on the same asset and direction family within the window. Each
// account counts once per signal (its earliest entry contributes), consumed
// entries never contribute again, and a fired (asset, family) pair is
// suppressed until the window elapses from the signal.
//
// Close-direction events are ignored entirely; consensus only tracks
// entries.
func (a *Aggregator) Aggregate(events []*domain.TradeEvent) []*Signal {
	entries := make([]*domain.TradeEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.Asset == "" || ev.WhaleID == "" {
			continue
		}
		if _, ok := ev.Direction.EntryFamily(); !ok {
			continue
		}
		entries = append(entries, ev)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Time != entries[j].Time {
			return entries[i].Time < entries[j].Time
		}
		return entries[i].ID < entries[j].ID
	})

	suppressedUntil := make(map[pairKey]int64)
	consumed := make([]bool, len(entries))
	signals := []*Signal{}

	for i, seed := range entries {
		if consumed[i] {
			continue
		}
		family, _ := seed.Direction.EntryFamily()
		k := pairKey{asset: seed.Asset, family: family}
		if until, ok := suppressedUntil[k]; ok && seed.Time < until {
			continue
		}

		windowEnd := seed.Time + a.windowMs
		contributors := []int{i}
		seen := map[string]struct{}{seed.WhaleID: {}}
		for j := i + 1; j < len(entries) && entries[j].Time <= windowEnd; j++ {
			if consumed[j] {
				continue
			}
			other := entries[j]
			if other.Asset != seed.Asset {
				continue
			}
			if otherFamily, _ := other.Direction.EntryFamily(); otherFamily != family {
				continue
			}
			if _, dup := seen[other.WhaleID]; dup {
				continue
			}
			seen[other.WhaleID] = struct{}{}
			contributors = append(contributors, j)
		}

		if len(contributors) < a.minAccounts {
			continue
		}

		total := 0.0
		accounts := make([]string, 0, len(contributors))
		for _, idx := range contributors {
			consumed[idx] = true
			total += math.Abs(entries[idx].ValueUSD)
			accounts = append(accounts, entries[idx].WhaleID)
		}
		signals = append(signals, &Signal{
			Time:        seed.Time,
			Asset:       seed.Asset,
			Direction:   family,
			NotionalUSD: total / float64(len(contributors)),
			Accounts:    accounts,
		})
		suppressedUntil[k] = windowEnd
	}

	return signals
}

// TradeEvents converts signals into synthetic entry events for the
// simulator. The events carry no base quantity, so pricing relies entirely
// on the resolver's stored series; closes are never synthesized.
func TradeEvents(signals []*Signal) []*domain.TradeEvent {
	events := make([]*domain.TradeEvent, 0, len(signals))
	for i, sig := range signals {
		events = append(events, &domain.TradeEvent{
			ID:        int64(i + 1),
			Time:      sig.Time,
			Asset:     sig.Asset,
			Direction: sig.Direction,
			ValueUSD:  sig.NotionalUSD,
		})
	}
	return events
}
