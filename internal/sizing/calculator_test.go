package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"main/internal/model"
	"main/internal/model/enum"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buySignal(ratio string) model.TradeSignal {
	return model.TradeSignal{
		Action:      enum.ActionBuy,
		Symbol:      "BTC",
		Currency:    "USD",
		AmountRatio: dec(ratio),
	}
}

func TestBuyPlanTargetsRatioOfPortfolio(t *testing.T) {
	plan := BuildPlan(Input{
		Signal:   buySignal("0.5"),
		Balances: model.Balances{"USD": dec("10000")},
		Ticker:   model.Ticker{Ask: dec("100"), Last: dec("100")},
		FeeRate:  dec("0.001"),
	})

	assert.False(t, plan.Skip, plan.SkipReason)
	// Portfolio total 9900 after haircut, half of it floored is 4950.
	assert.True(t, plan.PortfolioTotal.Equal(dec("9900")), plan.PortfolioTotal.String())
	assert.True(t, plan.SpendInCurrency.Equal(dec("4950")), plan.SpendInCurrency.String())
	// 49.5 units shaved by the doubled fee rate.
	expected := dec("49.5").Sub(dec("49.5").Mul(dec("0.002")))
	assert.True(t, plan.Quantity.Equal(expected), plan.Quantity.String())
}

func TestBuyPlanClampsToAvailableCurrency(t *testing.T) {
	plan := BuildPlan(Input{
		Signal: buySignal("0.9"),
		Balances: model.Balances{
			"USD": dec("100"),
			"ETH": dec("10"),
		},
		Ticker:     model.Ticker{Ask: dec("50"), Last: dec("50")},
		Valuations: map[string]decimal.Decimal{"ETH": dec("2000")},
	})

	assert.False(t, plan.Skip, plan.SkipReason)
	// The ratio target far exceeds the quote balance; spending caps at
	// the haircut available amount.
	assert.True(t, plan.SpendInCurrency.Equal(dec("99")), plan.SpendInCurrency.String())
}

func TestBuyPlanSkipsWhenAlreadyInPosition(t *testing.T) {
	plan := BuildPlan(Input{
		Signal: buySignal("0.5"),
		Balances: model.Balances{
			"USD": dec("5000"),
			"BTC": dec("50"),
		},
		Ticker: model.Ticker{Ask: dec("100"), Last: dec("100")},
	})

	assert.True(t, plan.Skip)
	assert.Equal(t, "already in position", plan.SkipReason)
}

func TestBuyPlanSkipsEmptyPortfolio(t *testing.T) {
	plan := BuildPlan(Input{
		Signal:   buySignal("0.5"),
		Balances: model.Balances{},
		Ticker:   model.Ticker{Ask: dec("100")},
	})
	assert.True(t, plan.Skip)
}

func TestSellPlanLiquidatesHolding(t *testing.T) {
	plan := BuildPlan(Input{
		Signal: model.TradeSignal{
			Action:   enum.ActionSell,
			Symbol:   "BTC",
			Currency: "USD",
		},
		Balances: model.Balances{
			"USD": dec("100"),
			"BTC": dec("2"),
		},
		Ticker: model.Ticker{Ask: dec("100"), Last: dec("100")},
	})

	assert.False(t, plan.Skip, plan.SkipReason)
	assert.True(t, plan.Quantity.Equal(dec("2")), plan.Quantity.String())
	assert.True(t, plan.AlreadyHeld.Equal(dec("200")), plan.AlreadyHeld.String())
}

func TestSellPlanSkipsDustPosition(t *testing.T) {
	plan := BuildPlan(Input{
		Signal: model.TradeSignal{
			Action:   enum.ActionSell,
			Symbol:   "BTC",
			Currency: "USD",
		},
		Balances: model.Balances{
			"USD": dec("100"),
			"BTC": dec("0.000001"),
		},
		Ticker: model.Ticker{Ask: dec("100"), Last: dec("100")},
	})

	assert.True(t, plan.Skip)
	assert.Equal(t, "no position worth selling", plan.SkipReason)
}

func TestPortfolioTotalSkipsExcludedSymbols(t *testing.T) {
	plan := BuildPlan(Input{
		Signal: buySignal("0.1"),
		Balances: model.Balances{
			"USD":   dec("1000"),
			"STAKE": dec("500"),
		},
		Ticker:          model.Ticker{Ask: dec("10"), Last: dec("10")},
		Valuations:      map[string]decimal.Decimal{"STAKE": dec("1")},
		ExcludedSymbols: []string{"STAKE"},
	})

	assert.False(t, plan.Skip, plan.SkipReason)
	assert.True(t, plan.PortfolioTotal.Equal(dec("990")), plan.PortfolioTotal.String())
}
