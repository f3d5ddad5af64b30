package domain

// Direction classifies a trade event. Values match the strings stored in the
// trades table.
type Direction string

const (
	DirectionBuy        Direction = "buy"
	DirectionSell       Direction = "sell"
	DirectionDeposit    Direction = "deposit"
	DirectionWithdraw   Direction = "withdraw"
	DirectionLong       Direction = "long"
	DirectionShort      Direction = "short"
	DirectionCloseLong  Direction = "close_long"
	DirectionCloseShort Direction = "close_short"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a known value.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBuy, DirectionSell, DirectionDeposit, DirectionWithdraw,
		DirectionLong, DirectionShort, DirectionCloseLong, DirectionCloseShort:
		return true
	}
	return false
}

// IsEntry reports whether the direction opens or adds to exposure.
func (d Direction) IsEntry() bool {
	switch d {
	case DirectionBuy, DirectionLong, DirectionShort:
		return true
	}
	return false
}

// IsClose reports whether the direction reduces or unwinds exposure.
func (d Direction) IsClose() bool {
	switch d {
	case DirectionSell, DirectionWithdraw, DirectionCloseLong, DirectionCloseShort:
		return true
	}
	return false
}

// IsLongSide reports whether an entry adds long exposure (positive quantity).
// Only meaningful for entry directions.
func (d Direction) IsLongSide() bool {
	return d == DirectionBuy || d == DirectionLong
}

// EntryFamily maps an entry direction onto its consensus family (long or
// short). The second return is false for non-entry directions.
func (d Direction) EntryFamily() (Direction, bool) {
	switch d {
	case DirectionBuy, DirectionLong:
		return DirectionLong, true
	case DirectionShort:
		return DirectionShort, true
	}
	return "", false
}
