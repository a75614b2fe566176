package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	_requestTimeout = 15 * time.Second

	// Long-horizon recheck schedule for gas-price breaches: half a day of
	// five-minute probes.
	_gasRetryAttempts = 144
	_gasRetryDelay    = 5 * time.Minute
)

// Option configures one on-chain swap adapter instance.
type Option struct {
	RPCURL        string
	RouterURL     string
	WalletAddress string
	// SettlementAsset is the chain's native asset symbol used for gas.
	SettlementAsset string
	// ReserveTarget is the gas reserve to maintain, in quote currency.
	ReserveTarget decimal.Decimal
	// MaxGasPriceWei rejects swaps when the network price spikes above it.
	MaxGasPriceWei decimal.Decimal
}

// Adapter routes swaps through an aggregator API and confirms them by
// polling transaction receipts over JSON-RPC.
type Adapter struct {
	client *http.Client
	opt    Option
}

func NewAdapter(client *http.Client, opt Option) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	if opt.SettlementAsset == "" {
		opt.SettlementAsset = "ETH"
	}
	return &Adapter{client: client, opt: opt}
}

// Session scopes operations to one wallet. Wallets need no login; the
// session exists so the pipeline contract stays uniform across venues.
type Session struct {
	wallet string
}

func (s *Session) VenueName() string { return "chain" }

func (a *Adapter) Authenticate(ctx context.Context) (model.BrokerSession, error) {
	if a.opt.WalletAddress == "" {
		return nil, exception.Fatal(http.StatusUnauthorized, "chain: no wallet address configured")
	}
	return &Session{wallet: a.opt.WalletAddress}, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, session model.BrokerSession) (model.Balances, error) {
	s, err := a.session(session)
	if err != nil {
		return nil, err
	}

	var resp balancesResponse
	path := fmt.Sprintf("/v1/balances?wallet=%s", s.wallet)
	if err := a.router(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	balances := make(model.Balances, len(resp.Balances))
	for _, b := range resp.Balances {
		if b.Amount.IsPositive() {
			balances[strings.ToUpper(b.Symbol)] = b.Amount
		}
	}
	return balances, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, session model.BrokerSession, instrument string) (model.Ticker, error) {
	if _, err := a.session(session); err != nil {
		return model.Ticker{}, err
	}

	quote, err := a.quote(ctx, instrument)
	if err != nil {
		return model.Ticker{}, err
	}
	// An AMM has no book; the route price serves as all three quotes.
	return model.Ticker{Ask: quote.Price, Bid: quote.Price, Last: quote.Price}, nil
}

func (a *Adapter) SubmitOrder(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error) {
	s, err := a.session(session)
	if err != nil {
		return model.PlacedOrder{}, err
	}

	if err := a.checkGasPrice(ctx); err != nil {
		return model.PlacedOrder{}, err
	}

	sell, buy := req.Currency, req.Symbol
	if req.Side == enum.ActionSell {
		sell, buy = req.Symbol, req.Currency
	}
	if err := a.ensureAllowance(ctx, s, sell, req.Quantity); err != nil {
		return model.PlacedOrder{}, err
	}
	var resp swapResponse
	body := map[string]string{
		"wallet":     s.wallet,
		"sell_token": sell,
		"buy_token":  buy,
		"amount":     req.Quantity.String(),
	}
	if err := a.router(ctx, http.MethodPost, "/v1/swap", body, &resp); err != nil {
		return model.PlacedOrder{}, err
	}
	if resp.TxHash == "" {
		return model.PlacedOrder{}, exception.Transient(0, "chain: router returned no tx hash")
	}
	return model.PlacedOrder{VenueOrderID: resp.TxHash, Instrument: req.Instrument()}, nil
}

func (a *Adapter) FetchOrderStatus(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) (model.OrderStatus, error) {
	if _, err := a.session(session); err != nil {
		return model.OrderStatusUnknown, err
	}

	var receipt *txReceipt
	if err := a.rpc(ctx, "eth_getTransactionReceipt", []any{order.VenueOrderID}, &receipt); err != nil {
		return model.OrderStatusUnknown, err
	}
	if receipt == nil {
		// Not yet mined. A dropped transaction also looks like this; the
		// confirmation horizon bounds how long we keep asking.
		return model.OrderStatusOpen, nil
	}
	if receipt.Status == "0x0" {
		return model.OrderStatusUnknown, exception.Reverted("chain: tx " + order.VenueOrderID)
	}
	return model.OrderStatusClosed, nil
}

// CancelOrder is a no-op: a broadcast swap cannot be recalled, and
// replacing it by nonce would race the pool. Reverted or dropped
// transactions resolve through the receipt poll instead.
func (a *Adapter) CancelOrder(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) error {
	if _, err := a.session(session); err != nil {
		return err
	}
	logs.Warnf("chain: cancel requested for tx %s, nothing to do", order.VenueOrderID)
	return nil
}

func (a *Adapter) EstimateFee(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.Fee, error) {
	if _, err := a.session(session); err != nil {
		return model.Fee{}, err
	}
	quote, err := a.quote(ctx, req.Instrument())
	if err != nil {
		return model.Fee{}, err
	}
	return model.Fee{Rate: quote.FeeRate}, nil
}

func (a *Adapter) Close(ctx context.Context, session model.BrokerSession) error {
	return nil
}

// SettlementReserve reports the configured gas target and the wallet's
// current native-asset holding valued in quote currency.
func (a *Adapter) SettlementReserve(ctx context.Context, session model.BrokerSession) (decimal.Decimal, decimal.Decimal, error) {
	balances, err := a.FetchBalances(ctx, session)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	native := balances[a.opt.SettlementAsset]

	quote, err := a.quote(ctx, a.opt.SettlementAsset+"/USD")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return a.opt.ReserveTarget, native.Mul(quote.Price), nil
}

// SwapToSettlementAsset tops up the gas reserve by swapping amount of
// quote currency into the native asset.
func (a *Adapter) SwapToSettlementAsset(ctx context.Context, session model.BrokerSession, amount decimal.Decimal) error {
	s, err := a.session(session)
	if err != nil {
		return err
	}
	var resp swapResponse
	body := map[string]string{
		"wallet":     s.wallet,
		"sell_token": "USD",
		"buy_token":  a.opt.SettlementAsset,
		"amount":     amount.String(),
	}
	if err := a.router(ctx, http.MethodPost, "/v1/swap", body, &resp); err != nil {
		return err
	}
	logs.Infof("chain: gas top-up tx %s for %s %s", resp.TxHash, amount, a.opt.SettlementAsset)
	return nil
}

// ensureAllowance grants the router spend approval for the sell token
// when the current allowance cannot cover the swap.
func (a *Adapter) ensureAllowance(ctx context.Context, s *Session, token string, amount decimal.Decimal) error {
	var resp allowanceResponse
	path := fmt.Sprintf("/v1/allowance?wallet=%s&token=%s", s.wallet, token)
	if err := a.router(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	if resp.Allowance.GreaterThanOrEqual(amount) {
		return nil
	}

	var approve approveResponse
	body := map[string]string{
		"wallet": s.wallet,
		"token":  token,
		"amount": amount.String(),
	}
	if err := a.router(ctx, http.MethodPost, "/v1/approve", body, &approve); err != nil {
		return err
	}
	logs.Infof("chain: approved %s %s for the router, tx %s", amount, token, approve.TxHash)
	return nil
}

func (a *Adapter) checkGasPrice(ctx context.Context) error {
	if a.opt.MaxGasPriceWei.IsZero() {
		return nil
	}
	var hexPrice string
	if err := a.rpc(ctx, "eth_gasPrice", nil, &hexPrice); err != nil {
		return err
	}
	price, err := parseHexWei(hexPrice)
	if err != nil {
		return exception.Transient(0, fmt.Sprintf("chain: bad gas price %q: %v", hexPrice, err))
	}
	if price.GreaterThan(a.opt.MaxGasPriceWei) {
		return exception.InsufficientResource(
			fmt.Sprintf("chain: gas price %s wei above threshold %s", price, a.opt.MaxGasPriceWei),
			_gasRetryAttempts, _gasRetryDelay,
		)
	}
	return nil
}

func (a *Adapter) quote(ctx context.Context, instrument string) (quoteResponse, error) {
	base, quote, _ := strings.Cut(instrument, "/")
	var resp quoteResponse
	path := fmt.Sprintf("/v1/quote?sell_token=%s&buy_token=%s", quote, base)
	if err := a.router(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return quoteResponse{}, err
	}
	return resp, nil
}

func (a *Adapter) session(session model.BrokerSession) (*Session, error) {
	s, ok := session.(*Session)
	if !ok {
		return nil, exception.ErrSessionClosed
	}
	return s, nil
}

func (a *Adapter) router(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := sonic.ConfigFastest.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, method, a.opt.RouterURL+path, reader)
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(r)
	if err != nil {
		return exception.Transient(0, fmt.Sprintf("chain: %s %s: %v", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &exception.VenueError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("chain: %s %s returned %d", method, path, resp.StatusCode),
		}
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return exception.Transient(0, fmt.Sprintf("chain: decode %s response: %v", path, err))
	}
	return nil
}

func (a *Adapter) rpc(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := sonic.ConfigFastest.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opt.RPCURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(r)
	if err != nil {
		return exception.Transient(0, fmt.Sprintf("chain: rpc %s: %v", method, err))
	}
	defer resp.Body.Close()

	var envelope rpcResponse
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return exception.Transient(0, fmt.Sprintf("chain: decode rpc %s response: %v", method, err))
	}
	if envelope.Error != nil {
		return exception.Transient(envelope.Error.Code, fmt.Sprintf("chain: rpc %s: %s", method, envelope.Error.Message))
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := sonic.ConfigFastest.Unmarshal(envelope.Result, out); err != nil {
		return exception.Transient(0, fmt.Sprintf("chain: decode rpc %s result: %v", method, err))
	}
	return nil
}

func parseHexWei(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	wei, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid hex value %q", s)
	}
	return decimal.NewFromBigInt(wei, 0), nil
}
