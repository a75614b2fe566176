package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// OrderRequest is the venue-agnostic order specification a pipeline hands
// to an adapter.
type OrderRequest struct {
	Symbol     string
	Currency   string
	Side       enum.Action
	Type       enum.OrderType
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
}

func (r OrderRequest) Instrument() string {
	return r.Symbol + "/" + r.Currency
}

// OrderStatus is a venue's view of a submitted order, as reported by
// FetchOrderStatus.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusOpen
	OrderStatusClosed
)

// PlacedOrder is the venue's acknowledgment of a submission.
type PlacedOrder struct {
	VenueOrderID string
	Instrument   string
}

// Ticker is a best bid/ask snapshot for one instrument.
type Ticker struct {
	Ask  decimal.Decimal
	Bid  decimal.Decimal
	Last decimal.Decimal
}

// Fee is a venue's estimated fee rate for an order.
type Fee struct {
	Rate decimal.Decimal
}

// Balances maps asset symbol to the held amount.
type Balances map[string]decimal.Decimal

// BrokerSession is an opaque authenticated handle owned by exactly one
// pipeline; it must never be shared across concurrent signals.
type BrokerSession interface {
	VenueName() string
}
