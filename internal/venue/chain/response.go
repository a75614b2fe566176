package chain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type balancesResponse struct {
	Balances []struct {
		Symbol string          `json:"symbol"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"balances"`
}

type quoteResponse struct {
	Price   decimal.Decimal `json:"price"`
	FeeRate decimal.Decimal `json:"fee_rate"`
}

type swapResponse struct {
	TxHash string `json:"tx_hash"`
}

type allowanceResponse struct {
	Allowance decimal.Decimal `json:"allowance"`
}

type approveResponse struct {
	TxHash string `json:"tx_hash"`
}

type txReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
