package hyperliquid

import (
	"strconv"

	"whale-copy-lab/internal/exchange"
)

// perpPriceDecimals is the venue's price precision base for perpetuals; an
// asset's price granularity is this minus its size decimals.
const perpPriceDecimals = 6

// infoRequest is the POST /info payload. The venue multiplexes every read
// query through one endpoint, discriminated by Type.
type infoRequest struct {
	Type      string `json:"type"`
	User      string `json:"user,omitempty"`
	StartTime *int64 `json:"startTime,omitempty"`
}

// wireFill is one element of a userFills response. Numeric fields arrive as
// decimal strings.
type wireFill struct {
	Time      int64   `json:"time"`
	Coin      string  `json:"coin"`
	Px        string  `json:"px"`
	Sz        string  `json:"sz"`
	Side      string  `json:"side"`
	Dir       string  `json:"dir"`
	ClosedPnL *string `json:"closedPnl"`
	Hash      string  `json:"hash"`
	TradeID   int64   `json:"tid"`
	OrderID   int64   `json:"oid"`
	Fee       string  `json:"fee"`
	Crossed   bool    `json:"crossed"`
}

// wireClearinghouseState is the clearinghouseState response.
type wireClearinghouseState struct {
	MarginSummary  wireMarginSummary   `json:"marginSummary"`
	AssetPositions []wireAssetPosition `json:"assetPositions"`
}

type wireMarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

type wireAssetPosition struct {
	Type     string       `json:"type"`
	Position wirePosition `json:"position"`
}

type wirePosition struct {
	Coin          string  `json:"coin"`
	Szi           string  `json:"szi"`
	EntryPx       *string `json:"entryPx"`
	MarkPx        *string `json:"markPx"`
	PositionValue *string `json:"positionValue"`
	UnrealizedPnL *string `json:"unrealizedPnl"`
}

// wireMeta is the meta response: the perp universe with sizing rules.
type wireMeta struct {
	Universe []wireUniverseAsset `json:"universe"`
}

type wireUniverseAsset struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

// fillFromWire parses a wire fill into exchange units. Unparseable numbers
// become zero and are filtered by consumers' usability checks.
func fillFromWire(w wireFill) exchange.Fill {
	f := exchange.Fill{
		Time:    w.Time,
		Asset:   w.Coin,
		Side:    w.Side,
		Dir:     w.Dir,
		Hash:    w.Hash,
		TradeID: w.TradeID,
		OrderID: w.OrderID,
		Crossed: w.Crossed,
	}
	f.Price, _ = strconv.ParseFloat(w.Px, 64)
	f.Size, _ = strconv.ParseFloat(w.Sz, 64)
	f.Fee, _ = strconv.ParseFloat(w.Fee, 64)
	if w.ClosedPnL != nil {
		if pnl, err := strconv.ParseFloat(*w.ClosedPnL, 64); err == nil {
			f.ClosedPnL = &pnl
		}
	}
	return f
}

// positionFromWire parses one clearinghouse position. The mark price falls
// back to positionValue/|szi|, then to the entry price, when the venue omits
// it. ok is false for positions that cannot be interpreted.
func positionFromWire(w wirePosition) (exchange.AccountPosition, bool) {
	if w.Coin == "" {
		return exchange.AccountPosition{}, false
	}
	szi, err := strconv.ParseFloat(w.Szi, 64)
	if err != nil {
		return exchange.AccountPosition{}, false
	}

	pos := exchange.AccountPosition{Asset: w.Coin, SignedSize: szi}
	if w.EntryPx != nil {
		pos.EntryPrice, _ = strconv.ParseFloat(*w.EntryPx, 64)
	}
	if w.UnrealizedPnL != nil {
		pos.UnrealizedPnL, _ = strconv.ParseFloat(*w.UnrealizedPnL, 64)
	}

	switch {
	case w.MarkPx != nil:
		pos.MarkPrice, _ = strconv.ParseFloat(*w.MarkPx, 64)
	case w.PositionValue != nil && szi != 0:
		if value, err := strconv.ParseFloat(*w.PositionValue, 64); err == nil {
			if szi < 0 {
				szi = -szi
			}
			pos.MarkPrice = value / szi
		}
	}
	if pos.MarkPrice == 0 {
		pos.MarkPrice = pos.EntryPrice
	}
	return pos, true
}
