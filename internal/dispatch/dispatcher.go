package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/admission"
	"main/internal/flight"
	"main/internal/lifecycle"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/retry"
	"main/internal/sizing"
	"main/internal/venue"
	"main/pkg/exception"
)

const (
	defaultWorkers       = 4
	defaultQueueCapacity = 64

	defaultBalanceWindow = 2 * time.Minute
	defaultGasSwapWindow = 5 * time.Minute
)

// Option wires a Dispatcher. Registry and Admission are required; the
// rest defaults to production values.
type Option struct {
	Registry  *venue.Registry
	Admission *admission.Queue
	Notifier  notify.Notifier
	Metrics   *obs.Metrics

	Workers       int
	QueueCapacity int

	RequestPolicy        *retry.Policy
	SettlementPolicy     *retry.Policy
	AssumeNotFoundFilled bool

	BalanceWindow time.Duration
	GasSwapWindow time.Duration

	// FeeRate overrides venue fee estimation when non-zero.
	FeeRate         decimal.Decimal
	ExcludedSymbols []string
}

// fingerprint identifies a signal for the consecutive-duplicate filter.
type fingerprint struct {
	ts     int64
	symbol string
	action enum.Action
}

// Dispatcher runs one pipeline per admitted signal: authenticate, fetch
// balances through the single-flight cache, size, then simulate or trade
// through the order lifecycle. Admission is synchronous; pipelines run
// on a fixed worker pool.
type Dispatcher struct {
	registry *venue.Registry
	queue    *admission.Queue
	executor *lifecycle.Executor
	engine   *retry.Engine
	request  retry.Policy
	notifier notify.Notifier
	metrics  *obs.Metrics
	feeRate  decimal.Decimal
	excluded []string

	balances *flight.Cache[enum.Venue, model.Balances]
	gasSwaps *flight.Cache[enum.Venue, decimal.Decimal]

	mu      sync.Mutex
	last    fingerprint
	hasLast bool

	running  atomic.Bool
	workers  int
	pipeline chan model.TradeSignal
	// slots reserves pipeline capacity before the ledger is touched. A
	// token is held from enqueue until a worker dequeues, so a signal is
	// appended to the ledger only when its execution is guaranteed.
	slots chan struct{}
	now   func() time.Time
}

func NewDispatcher(opt Option) *Dispatcher {
	workers := opt.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	capacity := opt.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	balanceWindow := opt.BalanceWindow
	if balanceWindow <= 0 {
		balanceWindow = defaultBalanceWindow
	}
	gasWindow := opt.GasSwapWindow
	if gasWindow <= 0 {
		gasWindow = defaultGasSwapWindow
	}
	notifier := opt.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	request := retry.RequestPolicy()
	if opt.RequestPolicy != nil {
		request = *opt.RequestPolicy
	}

	metrics := opt.Metrics
	observer := func(a retry.Attempt) {
		metrics.ObserveRetry("venue")
		logs.Warnf("attempt %d: retrying in %s: %v", a.Number, a.Delay, a.Err)
	}
	executor := lifecycle.NewExecutor(lifecycle.Option{
		RequestPolicy:        opt.RequestPolicy,
		SettlementPolicy:     opt.SettlementPolicy,
		Notifier:             notifier,
		Observer:             observer,
		AssumeNotFoundFilled: opt.AssumeNotFoundFilled,
	})

	return &Dispatcher{
		registry: opt.Registry,
		queue:    opt.Admission,
		executor: executor,
		engine:   retry.New(observer),
		request:  request,
		notifier: notifier,
		metrics:  metrics,
		feeRate:  opt.FeeRate,
		excluded: opt.ExcludedSymbols,
		balances: flight.New[enum.Venue, model.Balances]("balances", balanceWindow, notifier).
			Observe(func(kind string) { metrics.ObserveFlight("balances", kind) }),
		gasSwaps: flight.New[enum.Venue, decimal.Decimal]("gas-swap", gasWindow, notifier).
			Observe(func(kind string) { metrics.ObserveFlight("gas-swap", kind) }),
		workers:  workers,
		pipeline: make(chan model.TradeSignal, capacity),
		slots:    make(chan struct{}, capacity),
		now:      time.Now,
	}
}

// SubmitSignal is the synchronous admission decision. An accepted signal
// is queued for asynchronous execution; every other decision returns
// without side effects. A refusal for capacity or a stopped pool happens
// before the ledger is touched, so the producer's redelivery of the same
// alert is admitted cleanly.
func (d *Dispatcher) SubmitSignal(signal model.TradeSignal) (admission.Decision, error) {
	if !signal.Action.IsAvailable() || !signal.Venue.IsAvailable() ||
		signal.Symbol == "" || signal.Currency == "" || signal.Timestamp.IsZero() {
		return admission.DecisionUnknown, exception.ErrSignalInvalid
	}

	if d.isConsecutiveDuplicate(signal) {
		d.metrics.ObserveAdmission(admission.DecisionDuplicate.String())
		return admission.DecisionDuplicate, nil
	}

	if !d.running.Load() {
		return admission.DecisionUnknown, exception.ErrDispatcherStopped
	}
	select {
	case d.slots <- struct{}{}:
	default:
		return admission.DecisionUnknown, exception.ErrPipelineQueueFull
	}

	decision, err := d.queue.Admit(signal)
	if err != nil || decision != admission.DecisionAccepted {
		<-d.slots
		if err != nil {
			return decision, err
		}
		d.metrics.ObserveAdmission(decision.String())
		return decision, nil
	}
	d.metrics.ObserveAdmission(decision.String())
	d.rememberFingerprint(signal)

	// The held slot guarantees room; this send never blocks.
	d.pipeline <- signal
	d.metrics.SetQueueDepth(len(d.pipeline))
	return decision, nil
}

// isConsecutiveDuplicate reports whether signal matches the fingerprint
// of the previously accepted one on the (timestamp, symbol, action)
// triple. Webhook providers double-fire on reconnects; this catches the
// burst before it reaches the ledger.
func (d *Dispatcher) isConsecutiveDuplicate(signal model.TradeSignal) bool {
	fp := fingerprintOf(signal)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasLast && d.last == fp
}

// rememberFingerprint records an accepted signal for the duplicate
// filter. Rejected signals leave it untouched so their redelivery gets
// the same answer.
func (d *Dispatcher) rememberFingerprint(signal model.TradeSignal) {
	fp := fingerprintOf(signal)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last, d.hasLast = fp, true
}

func fingerprintOf(signal model.TradeSignal) fingerprint {
	return fingerprint{
		ts:     signal.Timestamp.UnixNano(),
		symbol: signal.Symbol,
		action: signal.Action,
	}
}

// Run starts the worker pool. It is idempotent; workers stop when ctx
// is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}
	for range d.workers {
		go d.work(ctx)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case signal := <-d.pipeline:
			<-d.slots
			d.metrics.SetQueueDepth(len(d.pipeline))
			if err := d.execute(ctx, signal); err != nil {
				logs.Errorf("pipeline for %s %s: %v", signal.Action, signal.Instrument(), err)
			}
		case <-ctx.Done():
			d.running.Store(false)
			return
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, signal model.TradeSignal) error {
	start := d.now()
	outcome := "failed"
	defer func() {
		d.metrics.ObservePipeline(signal.Venue.String(), outcome, d.now().Sub(start))
	}()

	adapter, err := d.registry.Lookup(signal.Venue)
	if err != nil {
		return err
	}

	session, err := retry.DoValue(ctx, d.engine, d.request, adapter.Authenticate)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := adapter.Close(ctx, session); cerr != nil {
			logs.Warnf("release %s session: %v", signal.Venue, cerr)
		}
	}()

	if swapper, ok := adapter.(venue.SettlementSwapper); ok {
		if err := d.ensureGasReserve(ctx, signal.Venue, swapper, session); err != nil {
			return err
		}
	}

	balances, err := d.balances.Get(ctx, signal.Venue, func(ctx context.Context) (model.Balances, error) {
		return retry.DoValue(ctx, d.engine, d.request, func(ctx context.Context) (model.Balances, error) {
			return adapter.FetchBalances(ctx, session)
		})
	})
	if err != nil {
		return err
	}

	ticker, err := retry.DoValue(ctx, d.engine, d.request, func(ctx context.Context) (model.Ticker, error) {
		return adapter.FetchTicker(ctx, session, signal.Instrument())
	})
	if err != nil {
		return err
	}

	feeRate := d.feeRate
	if feeRate.IsZero() {
		fee, err := adapter.EstimateFee(ctx, session, orderRequest(signal, decimal.Zero))
		if err != nil {
			return err
		}
		feeRate = fee.Rate
	}

	plan := sizing.BuildPlan(sizing.Input{
		Signal:          signal,
		Balances:        balances,
		Ticker:          ticker,
		FeeRate:         feeRate,
		ExcludedSymbols: d.excluded,
	})
	if plan.Skip {
		outcome = "skipped"
		d.event(notify.SeverityInfo, "dispatcher",
			fmt.Sprintf("%s %s skipped: %s (held %s %s of %s total)",
				signal.Action, signal.Instrument(), plan.SkipReason,
				plan.AlreadyHeld, signal.Currency, plan.PortfolioTotal))
		return nil
	}

	if signal.Mode == enum.ModeSimulate {
		outcome = "simulated"
		d.event(notify.SeverityInfo, "simulator", simulationMessage(signal, plan))
		return nil
	}

	if _, err := d.executor.Execute(ctx, adapter, session, orderRequest(signal, plan.Quantity)); err != nil {
		return err
	}

	outcome = "filled"
	d.balances.Invalidate(signal.Venue)
	return nil
}

// ensureGasReserve tops up the venue's settlement asset when the wallet
// sits under target. The single-flight window keeps a burst of signals
// from stacking top-up swaps.
func (d *Dispatcher) ensureGasReserve(ctx context.Context, v enum.Venue, swapper venue.SettlementSwapper, session model.BrokerSession) error {
	target, current, err := swapper.SettlementReserve(ctx, session)
	if err != nil {
		return err
	}
	if current.GreaterThanOrEqual(target) {
		return nil
	}

	shortfall := target.Sub(current)
	swapped, err := d.gasSwaps.Get(ctx, v, func(ctx context.Context) (decimal.Decimal, error) {
		if err := swapper.SwapToSettlementAsset(ctx, session, shortfall); err != nil {
			return decimal.Zero, err
		}
		return shortfall, nil
	})
	if err != nil {
		return err
	}
	d.event(notify.SeverityWarn, "dispatcher",
		fmt.Sprintf("settlement reserve on %s below target, swapped %s", v, swapped))
	return nil
}

func (d *Dispatcher) event(severity notify.Severity, category, message string) {
	d.notifier.Notify(notify.Event{
		Severity: severity,
		Category: category,
		Message:  message,
		At:       d.now(),
	})
}

func orderRequest(signal model.TradeSignal, quantity decimal.Decimal) model.OrderRequest {
	req := model.OrderRequest{
		Symbol:   signal.Symbol,
		Currency: signal.Currency,
		Side:     signal.Action,
		Type:     signal.OrderType,
		Quantity: quantity,
	}
	if signal.OrderType == enum.OrderTypeLimit {
		req.LimitPrice = signal.Price
	}
	return req
}

func simulationMessage(signal model.TradeSignal, plan sizing.Plan) string {
	if signal.Action == enum.ActionSell {
		return fmt.Sprintf("sell %s %s that was bought for %s %s",
			plan.Quantity, signal.Symbol, plan.AlreadyHeld, signal.Currency)
	}
	return fmt.Sprintf("buy %s %s for %s %s",
		plan.Quantity, signal.Symbol, plan.SpendInCurrency, signal.Currency)
}
