package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/retry"
	"main/internal/venue/mock"
	"main/pkg/exception"
)

func fastPolicies(requestAttempts, settlementAttempts int) Option {
	request := retry.RequestPolicy()
	request.MaxAttempts = requestAttempts
	request.BaseDelay = 0
	settlement := retry.SettlementPolicy()
	settlement.MaxAttempts = settlementAttempts
	settlement.BaseDelay = 0
	return Option{
		RequestPolicy:        &request,
		SettlementPolicy:     &settlement,
		AssumeNotFoundFilled: true,
	}
}

func buyOrder() model.OrderRequest {
	return model.OrderRequest{
		Symbol:   "BTC",
		Currency: "USD",
		Side:     enum.ActionBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1),
	}
}

func TestExecuteFillsOnClosedStatus(t *testing.T) {
	adapter := mock.New()
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.NoError(t, err)
	assert.Equal(t, StateFilled, exec.State)
	assert.False(t, exec.AssumedFilled)
	assert.Equal(t, int64(1), adapter.SubmitCalls.Load())
	assert.Equal(t, int64(1), adapter.StatusCalls.Load())
	assert.Equal(t, int64(0), adapter.CancelCalls.Load())
	assert.False(t, exec.ResolvedAt.IsZero())
}

func TestExecuteMissingOrderAssumedFilled(t *testing.T) {
	adapter := mock.New()
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		return model.OrderStatusUnknown, exception.NotFound("order gone")
	}
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.NoError(t, err)
	assert.Equal(t, StateFilled, exec.State)
	assert.True(t, exec.AssumedFilled)
	// The missing order resolved on the very first poll without a cancel.
	assert.Equal(t, int64(1), adapter.StatusCalls.Load())
	assert.Equal(t, int64(0), adapter.CancelCalls.Load())
}

func TestExecuteMissingOrderWithoutAssumptionFails(t *testing.T) {
	adapter := mock.New()
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		return model.OrderStatusUnknown, exception.NotFound("order gone")
	}
	opt := fastPolicies(5, 10)
	opt.AssumeNotFoundFilled = false
	x := NewExecutor(opt)

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOrderNotFound))
	assert.Equal(t, StateFailed, exec.State)
	// A vanished order leaves nothing at the venue to cancel.
	assert.Equal(t, int64(0), adapter.CancelCalls.Load())
}

func TestExecuteConfirmFatalCancelsBeforeFailing(t *testing.T) {
	adapter := mock.New()
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		return model.OrderStatusUnknown, exception.Fatal(400, "bad order id")
	}
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.Error(t, err)
	assert.Equal(t, 400, exception.CodeOf(err))
	assert.Equal(t, StateCancelled, exec.State)
	// The fatal code is final on the first poll; the live order still
	// gets its cancel attempt before the error surfaces.
	assert.Equal(t, int64(1), adapter.StatusCalls.Load())
	assert.Equal(t, int64(1), adapter.CancelCalls.Load())
}

func TestExecuteConfirmTransientExhaustionCancels(t *testing.T) {
	adapter := mock.New()
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		return model.OrderStatusUnknown, exception.Transient(503, "venue unreachable")
	}
	x := NewExecutor(fastPolicies(5, 2))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.Error(t, err)
	assert.Equal(t, 503, exception.CodeOf(err))
	assert.Equal(t, StateCancelled, exec.State)
	// Two retried polls plus the final one, then exactly one cancel.
	assert.Equal(t, int64(3), adapter.StatusCalls.Load())
	assert.Equal(t, int64(1), adapter.CancelCalls.Load())
}

func TestExecuteRejectsNonPositiveQuantity(t *testing.T) {
	adapter := mock.New()
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	order := buyOrder()
	order.Quantity = decimal.Zero
	exec, err := x.Execute(context.Background(), adapter, session, order)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOrderInvalidRequest))
	assert.Equal(t, StateFailed, exec.State)
	assert.Equal(t, int64(0), adapter.SubmitCalls.Load())
}

func TestExecuteExhaustionCancelsExactlyOnce(t *testing.T) {
	adapter := mock.New()
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		return model.OrderStatusOpen, nil
	}
	x := NewExecutor(fastPolicies(5, 2))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrRetriesExhausted))
	assert.Equal(t, StateCancelled, exec.State)
	// Two retried polls plus the final one that gave up.
	assert.Equal(t, int64(3), adapter.StatusCalls.Load())
	assert.Equal(t, int64(1), adapter.CancelCalls.Load())
}

func TestExecuteRevertedOrderCancelsOnce(t *testing.T) {
	adapter := mock.New()
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		return model.OrderStatusUnknown, exception.Reverted("tx reverted")
	}
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOrderReverted))
	assert.Equal(t, StateCancelled, exec.State)
	// A revert is final on the first poll; no confirmation retries.
	assert.Equal(t, int64(1), adapter.StatusCalls.Load())
	assert.Equal(t, int64(1), adapter.CancelCalls.Load())
}

func TestExecutePollRecoversBeforeHorizon(t *testing.T) {
	adapter := mock.New()
	polls := 0
	adapter.FetchOrderStatusFn = func(context.Context, model.BrokerSession, model.PlacedOrder) (model.OrderStatus, error) {
		polls++
		if polls < 3 {
			return model.OrderStatusOpen, nil
		}
		return model.OrderStatusClosed, nil
	}
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.NoError(t, err)
	assert.Equal(t, StateFilled, exec.State)
	assert.Equal(t, int64(3), adapter.StatusCalls.Load())
	assert.Equal(t, int64(0), adapter.CancelCalls.Load())
}

func TestExecuteSubmitFatalIsNotRetried(t *testing.T) {
	adapter := mock.New()
	adapter.SubmitOrderFn = func(context.Context, model.BrokerSession, model.OrderRequest) (model.PlacedOrder, error) {
		return model.PlacedOrder{}, exception.Fatal(400, "bad order")
	}
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.Error(t, err)
	assert.Equal(t, StateFailed, exec.State)
	assert.Equal(t, int64(1), adapter.SubmitCalls.Load())
	assert.Equal(t, int64(0), adapter.StatusCalls.Load())
}

func TestExecuteSubmitRecoversFromTransientErrors(t *testing.T) {
	adapter := mock.New()
	submits := 0
	adapter.SubmitOrderFn = func(_ context.Context, _ model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error) {
		submits++
		if submits < 3 {
			return model.PlacedOrder{}, exception.Transient(503, "venue hiccup")
		}
		return model.PlacedOrder{VenueOrderID: "ok-3", Instrument: req.Instrument()}, nil
	}
	x := NewExecutor(fastPolicies(5, 10))

	session, err := adapter.Authenticate(context.Background())
	require.NoError(t, err)

	exec, err := x.Execute(context.Background(), adapter, session, buyOrder())
	require.NoError(t, err)
	assert.Equal(t, StateFilled, exec.State)
	assert.Equal(t, "ok-3", exec.Placed.VenueOrderID)
	assert.Equal(t, int64(3), adapter.SubmitCalls.Load())
}

func TestStateTransitions(t *testing.T) {
	exec := newExecution(buyOrder())
	require.NoError(t, exec.transition(StateSubmitted))
	require.NoError(t, exec.transition(StateOpen))
	require.NoError(t, exec.transition(StateOpen))
	require.NoError(t, exec.transition(StateFilled))
	assert.True(t, exec.State.IsTerminal())

	err := exec.transition(StateCancelled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOrderInvalidTransition))
}

func TestExecutorDefaultsHoldProductionPolicies(t *testing.T) {
	x := NewExecutor(Option{})
	assert.Equal(t, 5, x.request.MaxAttempts)
	assert.Equal(t, 30*time.Second, x.request.BaseDelay)
	assert.Equal(t, 10, x.settlement.MaxAttempts)
	assert.Equal(t, 270*time.Second, x.settlement.BaseDelay)
}
