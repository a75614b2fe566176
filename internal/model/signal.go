package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// TradeSignal is one accepted webhook payload. It is immutable once built;
// dedup identity is (Symbol, Currency) and ordering key is Timestamp.
type TradeSignal struct {
	Action      enum.Action
	Symbol      string
	Currency    string
	Venue       enum.Venue
	OrderType   enum.OrderType
	AmountRatio decimal.Decimal
	Price       decimal.Decimal
	VolumeHint  decimal.Decimal
	Timestamp   time.Time
	Mode        enum.Mode
}

// Instrument renders the signal's trading pair, e.g. "BTC/USD".
func (s TradeSignal) Instrument() string {
	return s.Symbol + "/" + s.Currency
}
