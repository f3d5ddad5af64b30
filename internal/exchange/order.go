package exchange

import (
	"errors"
	"math"
)

// ErrOrderTooSmall is returned when an order size rounds to zero at the
// venue's size granularity.
var ErrOrderTooSmall = errors.New("order size rounds to zero")

// BuildIOCOrder prices and sizes an immediate-or-cancel limit order.
//
// The limit price is nudged against the taker by slippagePct so the order
// crosses the book (up for buys, down for sells), rounded to 5 significant
// figures and then to the venue's price granularity. Size is rounded to the
// venue's size granularity.
func BuildIOCOrder(sizing *AssetSizing, isBuy bool, size, price, slippagePct float64, reduceOnly bool) (*Order, error) {
	if price <= 0 {
		return nil, errors.New("order price must be positive")
	}

	nudged := price * (1 - slippagePct/100)
	if isBuy {
		nudged = price * (1 + slippagePct/100)
	}
	nudged = roundSigFigs(nudged, 5)
	nudged = roundDecimals(nudged, sizing.PxDecimals)

	rounded := roundDecimals(size, sizing.SzDecimals)
	if rounded <= 0 {
		return nil, ErrOrderTooSmall
	}

	return &Order{
		Asset:      sizing.Asset,
		IsBuy:      isBuy,
		LimitPrice: nudged,
		Size:       rounded,
		ReduceOnly: reduceOnly,
	}, nil
}

// roundSigFigs rounds to the given number of significant figures.
func roundSigFigs(v float64, sig int) float64 {
	if v == 0 {
		return 0
	}
	exp := math.Floor(math.Log10(math.Abs(v)))
	scale := math.Pow(10, float64(sig-1)-exp)
	return math.Round(v*scale) / scale
}

// roundDecimals rounds to a fixed number of decimal places.
func roundDecimals(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
