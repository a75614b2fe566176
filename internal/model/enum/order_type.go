package enum

import "strings"

type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	default:
		return "unknown"
	}
}

func ParseOrderType(s string) (OrderType, bool) {
	switch strings.ToLower(s) {
	case "market":
		return OrderTypeMarket, true
	case "limit":
		return OrderTypeLimit, true
	default:
		return _order_type_beg, false
	}
}
