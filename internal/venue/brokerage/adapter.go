package brokerage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const _requestTimeout = 15 * time.Second

// The brokerage keeps settled orders out of its active list, so a status
// probe that finds no entry reports the order as closed rather than lost.

// Option configures one brokerage adapter instance.
type Option struct {
	BaseURL  string
	Username string
	Password string
	DeviceID string
}

// Adapter drives a retail brokerage REST API. Order placement is a
// two-step flow: create a draft, then commit it by id.
type Adapter struct {
	client *http.Client
	opt    Option
}

func NewAdapter(client *http.Client, opt Option) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{client: client, opt: opt}
}

// Session holds the bearer token and account scope for one pipeline.
type Session struct {
	bearer    string
	accountID string
	closed    bool
}

func (s *Session) VenueName() string { return "brokerage" }

func (a *Adapter) Authenticate(ctx context.Context) (model.BrokerSession, error) {
	var resp loginResponse
	err := a.do(ctx, http.MethodPost, "/sessions", "", map[string]string{
		"username":  a.opt.Username,
		"password":  a.opt.Password,
		"device_id": a.opt.DeviceID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, exception.Fatal(http.StatusUnauthorized, "brokerage: login returned no token")
	}
	return &Session{bearer: resp.AccessToken, accountID: resp.AccountID}, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, session model.BrokerSession) (model.Balances, error) {
	s, err := a.session(session)
	if err != nil {
		return nil, err
	}

	var resp accountResponse
	path := fmt.Sprintf("/accounts/%s", s.accountID)
	if err := a.do(ctx, http.MethodGet, path, s.bearer, nil, &resp); err != nil {
		return nil, err
	}

	balances := model.Balances{"USD": resp.BuyingPower}
	for _, pos := range resp.Positions {
		if pos.Quantity.IsPositive() {
			balances[strings.ToUpper(pos.Symbol)] = pos.Quantity
		}
	}
	return balances, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, session model.BrokerSession, instrument string) (model.Ticker, error) {
	s, err := a.session(session)
	if err != nil {
		return model.Ticker{}, err
	}

	var resp quoteResponse
	path := fmt.Sprintf("/quotes/%s", symbolOf(instrument))
	if err := a.do(ctx, http.MethodGet, path, s.bearer, nil, &resp); err != nil {
		return model.Ticker{}, err
	}
	return model.Ticker{Ask: resp.AskPrice, Bid: resp.BidPrice, Last: resp.LastTradePrice}, nil
}

func (a *Adapter) SubmitOrder(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error) {
	s, err := a.session(session)
	if err != nil {
		return model.PlacedOrder{}, err
	}

	draft := map[string]any{
		"account_id": s.accountID,
		"symbol":     symbolOf(req.Instrument()),
		"side":       strings.ToLower(req.Side.String()),
		"type":       strings.ToLower(req.Type.String()),
		"quantity":   req.Quantity.String(),
	}
	if req.Type == enum.OrderTypeLimit {
		draft["limit_price"] = req.LimitPrice.String()
	}

	var created orderResponse
	if err := a.do(ctx, http.MethodPost, "/orders", s.bearer, draft, &created); err != nil {
		return model.PlacedOrder{}, err
	}
	if created.ID == "" {
		return model.PlacedOrder{}, exception.Transient(0, "brokerage: create returned no order id")
	}

	var committed orderResponse
	commitPath := fmt.Sprintf("/orders/%s/execute", created.ID)
	if err := a.do(ctx, http.MethodPost, commitPath, s.bearer, nil, &committed); err != nil {
		return model.PlacedOrder{}, err
	}
	return model.PlacedOrder{VenueOrderID: created.ID, Instrument: req.Instrument()}, nil
}

func (a *Adapter) FetchOrderStatus(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) (model.OrderStatus, error) {
	s, err := a.session(session)
	if err != nil {
		return model.OrderStatusUnknown, err
	}

	var resp activeOrdersResponse
	if err := a.do(ctx, http.MethodGet, "/orders?status=active", s.bearer, nil, &resp); err != nil {
		return model.OrderStatusUnknown, err
	}
	for _, active := range resp.Orders {
		if active.ID == order.VenueOrderID {
			return model.OrderStatusOpen, nil
		}
	}
	return model.OrderStatusClosed, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) error {
	s, err := a.session(session)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/orders/%s/cancel", order.VenueOrderID)
	return a.do(ctx, http.MethodPost, path, s.bearer, nil, nil)
}

func (a *Adapter) EstimateFee(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.Fee, error) {
	// Commission-free venue; regulatory pass-through fees are negligible
	// against the sizing fee backup.
	return model.Fee{Rate: decimal.Zero}, nil
}

func (a *Adapter) Close(ctx context.Context, session model.BrokerSession) error {
	s, err := a.session(session)
	if err != nil {
		return err
	}
	err = a.do(ctx, http.MethodDelete, "/sessions", s.bearer, nil, nil)
	s.closed = true
	return err
}

func (a *Adapter) session(session model.BrokerSession) (*Session, error) {
	s, ok := session.(*Session)
	if !ok || s.closed {
		return nil, exception.ErrSessionClosed
	}
	return s, nil
}

func (a *Adapter) do(ctx context.Context, method, path, bearer string, body any, out any) error {
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
	r, err := http.NewRequestWithContext(ctx, method, a.opt.BaseURL+path, reader)
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.client.Do(r)
	if err != nil {
		return exception.Transient(0, fmt.Sprintf("brokerage: %s %s: %v", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.classify(resp.StatusCode, method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return exception.Transient(0, fmt.Sprintf("brokerage: decode %s response: %v", path, err))
	}
	return nil
}

// classify folds the venue's error body into the retry taxonomy; the
// detail string distinguishes buying-power rejections from plain 4xx.
func (a *Adapter) classify(status int, method, path string, resp *http.Response) error {
	var body errorResponse
	_ = sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&body)

	if strings.Contains(strings.ToLower(body.Detail), "buying power") {
		return exception.InsufficientResource(
			fmt.Sprintf("brokerage: %s", body.Detail),
			144, 5*time.Minute,
		)
	}
	return &exception.VenueError{
		Code:    status,
		Message: fmt.Sprintf("brokerage: %s %s returned %d: %s", method, path, status, body.Detail),
	}
}

func symbolOf(instrument string) string {
	symbol, _, _ := strings.Cut(instrument, "/")
	return symbol
}
