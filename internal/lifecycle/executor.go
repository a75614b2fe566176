package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/notify"
	"main/internal/retry"
	"main/internal/venue"
	"main/pkg/exception"
)

// Option configures an Executor. Zero values fall back to the default
// request and settlement policies with a discarding notifier.
type Option struct {
	RequestPolicy    *retry.Policy
	SettlementPolicy *retry.Policy
	Notifier         notify.Notifier
	Observer         retry.Observer

	// AssumeNotFoundFilled treats a missing order during confirmation as
	// settled. Venues that evict filled orders from their active list
	// report exactly this way.
	AssumeNotFoundFilled bool
}

// Executor drives one order from submission to a terminal state: submit
// under the request policy, then poll status under the settlement policy
// until the venue reports it closed or the horizon runs out.
type Executor struct {
	engine     *retry.Engine
	request    retry.Policy
	settlement retry.Policy
	notifier   notify.Notifier
	assume     bool
	now        func() time.Time
}

func NewExecutor(opt Option) *Executor {
	request := retry.RequestPolicy()
	if opt.RequestPolicy != nil {
		request = *opt.RequestPolicy
	}
	settlement := retry.SettlementPolicy()
	if opt.SettlementPolicy != nil {
		settlement = *opt.SettlementPolicy
	}
	notifier := opt.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Executor{
		engine:     retry.New(opt.Observer),
		request:    request,
		settlement: settlement,
		notifier:   notifier,
		assume:     opt.AssumeNotFoundFilled,
		now:        time.Now,
	}
}

// Execute submits req through adapter and confirms settlement. The
// returned Execution always carries a terminal state; err is nil only
// for StateFilled.
func (x *Executor) Execute(ctx context.Context, adapter venue.Adapter, session model.BrokerSession, req model.OrderRequest) (*Execution, error) {
	exec := newExecution(req)

	if !req.Quantity.IsPositive() {
		x.fail(exec, exception.ErrOrderInvalidRequest)
		return exec, errors.Wrapf(exception.ErrOrderInvalidRequest, "quantity %s", req.Quantity)
	}
	if err := x.submit(ctx, adapter, session, exec); err != nil {
		return exec, err
	}
	return exec, x.confirm(ctx, adapter, session, exec)
}

func (x *Executor) submit(ctx context.Context, adapter venue.Adapter, session model.BrokerSession, exec *Execution) error {
	placed, err := retry.DoValue(ctx, x.engine, x.request, func(ctx context.Context) (model.PlacedOrder, error) {
		return adapter.SubmitOrder(ctx, session, exec.Request)
	})
	if err != nil {
		x.fail(exec, err)
		return errors.Wrap(err, "submit order")
	}

	exec.Placed = placed
	exec.SubmittedAt = x.now()
	if terr := exec.transition(StateSubmitted); terr != nil {
		return terr
	}
	x.event(notify.SeverityInfo, "order",
		fmt.Sprintf("submitted %s %s %s, venue order %s",
			exec.Request.Side, exec.Request.Quantity, exec.Request.Instrument(), placed.VenueOrderID))
	return nil
}

func (x *Executor) confirm(ctx context.Context, adapter venue.Adapter, session model.BrokerSession, exec *Execution) error {
	err := x.engine.Do(ctx, x.settlement, func(ctx context.Context) error {
		status, err := adapter.FetchOrderStatus(ctx, session, exec.Placed)
		if err != nil {
			return err
		}
		if status != model.OrderStatusClosed {
			if terr := exec.transition(StateOpen); terr != nil {
				return terr
			}
			return exception.ErrOrderStillOpen
		}
		return nil
	})

	switch {
	case err == nil:
		return x.fill(exec, false)

	case stderrors.Is(err, exception.ErrOrderNotFound):
		if x.assume {
			// The venue no longer lists the order. Settled orders
			// disappear from active listings, so a vanished order counts
			// as filled.
			x.event(notify.SeverityWarn, "order",
				fmt.Sprintf("order %s missing at venue, assuming filled", exec.Placed.VenueOrderID))
			return x.fill(exec, true)
		}
		// There is nothing at the venue to cancel.
		x.fail(exec, err)
		return errors.Wrap(err, "confirm order")

	default:
		// Every other confirmation failure may leave a live order behind:
		// the horizon spent while still open, a revert, a fatal code, an
		// exhausted transient. All of them get the cancel attempt.
		return x.abandon(ctx, adapter, session, exec, err)
	}
}

// abandon runs when confirmation cannot complete: one best-effort cancel,
// then the original cause surfaces. Cancellation is cleanup, never error
// suppression.
func (x *Executor) abandon(ctx context.Context, adapter venue.Adapter, session model.BrokerSession, exec *Execution, cause error) error {
	cancelErr := x.engine.Do(ctx, x.request, func(ctx context.Context) error {
		return adapter.CancelOrder(ctx, session, exec.Placed)
	})
	if cancelErr != nil {
		logs.Errorf("cancel abandoned order %s: %v", exec.Placed.VenueOrderID, cancelErr)
	}

	exec.ResolvedAt = x.now()
	if terr := exec.transition(StateCancelled); terr != nil {
		return terr
	}
	x.event(notify.SeverityError, "order",
		fmt.Sprintf("order %s confirmation failed, cancel issued", exec.Placed.VenueOrderID))
	if stderrors.Is(cause, exception.ErrOrderStillOpen) {
		return errors.Wrapf(exception.ErrRetriesExhausted, "order %s: %v", exec.Placed.VenueOrderID, cause)
	}
	return errors.Wrapf(cause, "order %s cancelled after confirmation failure", exec.Placed.VenueOrderID)
}

func (x *Executor) fill(exec *Execution, assumed bool) error {
	exec.AssumedFilled = assumed
	exec.ResolvedAt = x.now()
	if terr := exec.transition(StateFilled); terr != nil {
		return terr
	}
	x.event(notify.SeverityInfo, "order",
		fmt.Sprintf("filled %s %s %s", exec.Request.Side, exec.Request.Quantity, exec.Request.Instrument()))
	return nil
}

func (x *Executor) fail(exec *Execution, cause error) {
	exec.ResolvedAt = x.now()
	exec.State = StateFailed
	x.event(notify.SeverityError, "order",
		fmt.Sprintf("order failed for %s: %v", exec.Request.Instrument(), cause))
}

func (x *Executor) event(severity notify.Severity, category, message string) {
	x.notifier.Notify(notify.Event{
		Severity: severity,
		Category: category,
		Message:  message,
		At:       x.now(),
	})
}
