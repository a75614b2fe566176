package sizing

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

var (
	// haircut keeps a 1% buffer so valuations rounded against a moving
	// book never oversubscribe the account.
	haircut = decimal.RequireFromString("0.99")

	// feeBackup doubles the estimated fee rate; venues under-report
	// effective taker cost on thin books.
	feeBackup = decimal.NewFromInt(2)

	one = decimal.NewFromInt(1)
)

// Input is everything a sizing decision reads. Valuations price each
// held asset in the signal's quote currency; the currency itself and
// unpriced assets are handled internally.
type Input struct {
	Signal     model.TradeSignal
	Balances   model.Balances
	Ticker     model.Ticker
	FeeRate    decimal.Decimal
	Valuations map[string]decimal.Decimal

	// ExcludedSymbols are held assets ignored by the portfolio total,
	// e.g. staking positions the dispatcher must not count as tradable.
	ExcludedSymbols []string
}

// Plan is a fully sized trade, or a skip with its reason.
type Plan struct {
	Quantity        decimal.Decimal
	SpendInCurrency decimal.Decimal
	PortfolioTotal  decimal.Decimal
	AlreadyHeld     decimal.Decimal

	Skip       bool
	SkipReason string
}

// BuildPlan sizes the signal against the account snapshot. Buys target
// AmountRatio of the haircut portfolio total, clamped to the available
// quote balance and shaved by the fee backup. Sells liquidate the full
// symbol holding.
func BuildPlan(in Input) Plan {
	total := portfolioTotal(in)
	already := valueOf(in, in.Signal.Symbol, in.Balances[in.Signal.Symbol])

	if in.Signal.Action == enum.ActionSell {
		return sellPlan(in, total, already)
	}
	return buyPlan(in, total, already)
}

func sellPlan(in Input, total, already decimal.Decimal) Plan {
	if already.LessThanOrEqual(one) {
		return Plan{
			PortfolioTotal: total,
			AlreadyHeld:    already,
			Skip:           true,
			SkipReason:     "no position worth selling",
		}
	}
	return Plan{
		Quantity:        in.Balances[in.Signal.Symbol],
		SpendInCurrency: already,
		PortfolioTotal:  total,
		AlreadyHeld:     already,
	}
}

func buyPlan(in Input, total, already decimal.Decimal) Plan {
	if total.IsZero() {
		return Plan{Skip: true, SkipReason: "empty portfolio"}
	}
	if already.GreaterThanOrEqual(one) ||
		already.Div(total).Round(1).Equal(in.Signal.AmountRatio.Round(1)) {
		return Plan{
			PortfolioTotal: total,
			AlreadyHeld:    already,
			Skip:           true,
			SkipReason:     "already in position",
		}
	}

	target := total.Mul(in.Signal.AmountRatio).Floor()
	available := haircut.Mul(in.Balances[in.Signal.Currency])
	spend := decimal.Min(target, available)
	if spend.LessThanOrEqual(decimal.Zero) || in.Ticker.Ask.IsZero() {
		return Plan{
			PortfolioTotal: total,
			AlreadyHeld:    already,
			Skip:           true,
			SkipReason:     "nothing to spend",
		}
	}

	quantity := spend.Div(in.Ticker.Ask)
	quantity = quantity.Sub(quantity.Mul(feeBackup.Mul(in.FeeRate)))
	return Plan{
		Quantity:        quantity,
		SpendInCurrency: spend,
		PortfolioTotal:  total,
		AlreadyHeld:     already,
	}
}

// portfolioTotal values every non-excluded holding in quote currency and
// applies the haircut. The quote currency always counts, even when the
// exclusion list names it.
func portfolioTotal(in Input) decimal.Decimal {
	sum := decimal.Zero
	for asset, amount := range in.Balances {
		if !strings.EqualFold(asset, in.Signal.Currency) &&
			slices.Contains(in.ExcludedSymbols, asset) {
			continue
		}
		sum = sum.Add(valueOf(in, asset, amount))
	}
	return haircut.Mul(sum)
}

func valueOf(in Input, asset string, amount decimal.Decimal) decimal.Decimal {
	if strings.EqualFold(asset, in.Signal.Currency) {
		return amount
	}
	if strings.EqualFold(asset, in.Signal.Symbol) && !in.Ticker.Last.IsZero() {
		return amount.Mul(in.Ticker.Last)
	}
	if price, ok := in.Valuations[asset]; ok {
		return amount.Mul(price)
	}
	return decimal.Zero
}
