package spot

import "github.com/shopspring/decimal"

type authResponse struct {
	Code int `json:"code"`
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type balancesResponse struct {
	Code int               `json:"code"`
	Data map[string]string `json:"data"`
}

type tickerResponse struct {
	Code int `json:"code"`
	Data struct {
		Ask  decimal.Decimal `json:"ask"`
		Bid  decimal.Decimal `json:"bid"`
		Last decimal.Decimal `json:"last"`
	} `json:"data"`
}

type orderResponse struct {
	Code int `json:"code"`
	Data struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	} `json:"data"`
}

type feeResponse struct {
	Code int `json:"code"`
	Data struct {
		TakerRate decimal.Decimal `json:"taker_rate"`
		MakerRate decimal.Decimal `json:"maker_rate"`
	} `json:"data"`
}
