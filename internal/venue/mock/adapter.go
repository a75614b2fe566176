package mock

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

// Session is the mock's broker session.
type Session struct {
	ID     int64
	Closed atomic.Bool
}

func (s *Session) VenueName() string { return "mock" }

// Adapter is a scriptable in-memory venue for tests and dry runs. Every
// operation has a default and an overridable function field; call
// counters let tests assert interaction counts.
type Adapter struct {
	AuthenticateFn     func(ctx context.Context) (model.BrokerSession, error)
	FetchBalancesFn    func(ctx context.Context, s model.BrokerSession) (model.Balances, error)
	FetchTickerFn      func(ctx context.Context, s model.BrokerSession, instrument string) (model.Ticker, error)
	SubmitOrderFn      func(ctx context.Context, s model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error)
	FetchOrderStatusFn func(ctx context.Context, s model.BrokerSession, order model.PlacedOrder) (model.OrderStatus, error)
	CancelOrderFn      func(ctx context.Context, s model.BrokerSession, order model.PlacedOrder) error
	EstimateFeeFn      func(ctx context.Context, s model.BrokerSession, req model.OrderRequest) (model.Fee, error)

	AuthCalls    atomic.Int64
	BalanceCalls atomic.Int64
	TickerCalls  atomic.Int64
	SubmitCalls  atomic.Int64
	StatusCalls  atomic.Int64
	CancelCalls  atomic.Int64
	CloseCalls   atomic.Int64

	nextSession atomic.Int64
}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Authenticate(ctx context.Context) (model.BrokerSession, error) {
	a.AuthCalls.Add(1)
	if a.AuthenticateFn != nil {
		return a.AuthenticateFn(ctx)
	}
	return &Session{ID: a.nextSession.Add(1)}, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, s model.BrokerSession) (model.Balances, error) {
	a.BalanceCalls.Add(1)
	if a.FetchBalancesFn != nil {
		return a.FetchBalancesFn(ctx, s)
	}
	return model.Balances{
		"BTC": decimal.NewFromInt(1),
		"USD": decimal.NewFromInt(10000),
	}, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, s model.BrokerSession, instrument string) (model.Ticker, error) {
	a.TickerCalls.Add(1)
	if a.FetchTickerFn != nil {
		return a.FetchTickerFn(ctx, s, instrument)
	}
	price := decimal.NewFromInt(100)
	return model.Ticker{Ask: price, Bid: price, Last: price}, nil
}

func (a *Adapter) SubmitOrder(ctx context.Context, s model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error) {
	a.SubmitCalls.Add(1)
	if a.SubmitOrderFn != nil {
		return a.SubmitOrderFn(ctx, s, req)
	}
	return model.PlacedOrder{VenueOrderID: "mock-1", Instrument: req.Instrument()}, nil
}

func (a *Adapter) FetchOrderStatus(ctx context.Context, s model.BrokerSession, order model.PlacedOrder) (model.OrderStatus, error) {
	a.StatusCalls.Add(1)
	if a.FetchOrderStatusFn != nil {
		return a.FetchOrderStatusFn(ctx, s, order)
	}
	return model.OrderStatusClosed, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, s model.BrokerSession, order model.PlacedOrder) error {
	a.CancelCalls.Add(1)
	if a.CancelOrderFn != nil {
		return a.CancelOrderFn(ctx, s, order)
	}
	return nil
}

func (a *Adapter) EstimateFee(ctx context.Context, s model.BrokerSession, req model.OrderRequest) (model.Fee, error) {
	if a.EstimateFeeFn != nil {
		return a.EstimateFeeFn(ctx, s, req)
	}
	return model.Fee{Rate: decimal.NewFromFloat(0.001)}, nil
}

func (a *Adapter) Close(ctx context.Context, s model.BrokerSession) error {
	a.CloseCalls.Add(1)
	if ms, ok := s.(*Session); ok {
		ms.Closed.Store(true)
	}
	return nil
}
