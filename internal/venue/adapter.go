package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// Adapter is the closed interface every venue family implements. The core
// never inspects venue names; it resolves an Adapter through the Registry
// and speaks this contract only.
type Adapter interface {
	Authenticate(ctx context.Context) (model.BrokerSession, error)
	FetchBalances(ctx context.Context, session model.BrokerSession) (model.Balances, error)
	FetchTicker(ctx context.Context, session model.BrokerSession, instrument string) (model.Ticker, error)
	SubmitOrder(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error)
	FetchOrderStatus(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) (model.OrderStatus, error)
	CancelOrder(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) error
	EstimateFee(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.Fee, error)
	Close(ctx context.Context, session model.BrokerSession) error
}

// SettlementSwapper is implemented by venues that must keep a reserve of
// a native settlement asset (gas) topped up before trading.
type SettlementSwapper interface {
	// SettlementReserve reports the reserve target and the current
	// reserve balance in currency terms for the session's wallet.
	SettlementReserve(ctx context.Context, session model.BrokerSession) (target, current decimal.Decimal, err error)
	// SwapToSettlementAsset converts amount of the quote currency into
	// the venue's settlement asset.
	SwapToSettlementAsset(ctx context.Context, session model.BrokerSession, amount decimal.Decimal) error
}

// Registry maps venue identifiers to adapters.
type Registry struct {
	adapters map[enum.Venue]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[enum.Venue]Adapter)}
}

func (r *Registry) Register(v enum.Venue, adapter Adapter) {
	r.adapters[v] = adapter
}

func (r *Registry) Lookup(v enum.Venue) (Adapter, error) {
	adapter, ok := r.adapters[v]
	if !ok {
		return nil, exception.ErrUnsupportedVenue
	}
	return adapter, nil
}
