package pricing

import (
	"testing"

	"whale-copy-lab/internal/domain"
)

func seriesBTC() []*domain.PricePoint {
	return []*domain.PricePoint{
		{Asset: "BTC", Time: 60_000, PriceUSD: 100.0},
		{Asset: "BTC", Time: 120_000, PriceUSD: 110.0},
		{Asset: "BTC", Time: 180_000, PriceUSD: 105.0},
	}
}

func TestPriceAt_NoSeries(t *testing.T) {
	r := NewResolver()

	_, err := r.PriceAt("BTC", 60_000)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}

	r.Load("BTC", []*domain.PricePoint{})
	_, err = r.PriceAt("BTC", 60_000)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestPriceAt_ExactMatch(t *testing.T) {
	r := NewResolver()
	r.Load("BTC", seriesBTC())

	price, err := r.PriceAt("BTC", 120_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 110.0 {
		t.Errorf("expected 110.0, got %f", price)
	}
}

func TestPriceAt_BetweenPoints(t *testing.T) {
	r := NewResolver()
	r.Load("BTC", seriesBTC())

	// Target 150_000 should return the price at 120_000.
	price, err := r.PriceAt("BTC", 150_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 110.0 {
		t.Errorf("expected 110.0, got %f", price)
	}
}

func TestPriceAt_BeforeFirst(t *testing.T) {
	r := NewResolver()
	r.Load("BTC", seriesBTC())

	// No point at or before 30_000.
	_, err := r.PriceAt("BTC", 30_000)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestPriceAt_AfterLast(t *testing.T) {
	r := NewResolver()
	r.Load("BTC", seriesBTC())

	price, err := r.PriceAt("BTC", 999_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 105.0 {
		t.Errorf("expected 105.0, got %f", price)
	}
}

func TestResolve_Fallback(t *testing.T) {
	r := NewResolver()
	r.Load("BTC", seriesBTC())

	// Unknown asset falls back.
	if got := r.Resolve("ETH", 120_000, 42.0); got != 42.0 {
		t.Errorf("expected fallback 42.0, got %f", got)
	}

	// Before the first point falls back.
	if got := r.Resolve("BTC", 30_000, 42.0); got != 42.0 {
		t.Errorf("expected fallback 42.0, got %f", got)
	}

	// Resolvable target ignores the fallback.
	if got := r.Resolve("BTC", 180_000, 42.0); got != 105.0 {
		t.Errorf("expected 105.0, got %f", got)
	}

	// Zero fallback passes through.
	if got := r.Resolve("ETH", 120_000, 0); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}

func TestHasSeries(t *testing.T) {
	r := NewResolver()
	if r.HasSeries("BTC") {
		t.Error("expected no series for BTC")
	}

	r.Load("BTC", seriesBTC())
	if !r.HasSeries("BTC") {
		t.Error("expected series for BTC")
	}
	if r.HasSeries("ETH") {
		t.Error("expected no series for ETH")
	}
}
