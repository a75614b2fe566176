package brokerage

import "github.com/shopspring/decimal"

type loginResponse struct {
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id"`
}

type accountResponse struct {
	BuyingPower decimal.Decimal `json:"buying_power"`
	Positions   []struct {
		Symbol   string          `json:"symbol"`
		Quantity decimal.Decimal `json:"quantity"`
	} `json:"positions"`
}

type quoteResponse struct {
	AskPrice       decimal.Decimal `json:"ask_price"`
	BidPrice       decimal.Decimal `json:"bid_price"`
	LastTradePrice decimal.Decimal `json:"last_trade_price"`
}

type orderResponse struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Symbol string `json:"symbol"`
}

type activeOrdersResponse struct {
	Orders []orderResponse `json:"results"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
