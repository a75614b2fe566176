package spot

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const _requestTimeout = 15 * time.Second

// Option configures one spot exchange adapter instance.
type Option struct {
	BaseURL   string
	AccessID  string
	SecretKey string
}

// Adapter talks to a ccxt-style spot exchange REST API with MD5-signed
// request bodies.
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

// Session carries the authenticated token for one pipeline.
type Session struct {
	token  string
	closed bool
}

func (s *Session) VenueName() string { return "spot" }

func (a *Adapter) Authenticate(ctx context.Context) (model.BrokerSession, error) {
	var resp authResponse
	body := map[string]string{
		"access_id": a.opt.AccessID,
		"tm":        strconv.FormatInt(time.Now().Unix(), 10),
	}
	if err := a.post(ctx, "/api/v1/auth", body, &resp); err != nil {
		return nil, err
	}
	return &Session{token: resp.Data.Token}, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, session model.BrokerSession) (model.Balances, error) {
	s, err := a.session(session)
	if err != nil {
		return nil, err
	}

	var resp balancesResponse
	if err := a.post(ctx, "/api/v1/account/balances", a.signedBody(s, nil), &resp); err != nil {
		return nil, err
	}

	balances := make(model.Balances, len(resp.Data))
	for asset, amount := range resp.Data {
		value, err := decimal.NewFromString(amount)
		if err != nil {
			continue
		}
		if value.IsPositive() {
			balances[strings.ToUpper(asset)] = value
		}
	}
	return balances, nil
}

func (a *Adapter) FetchTicker(ctx context.Context, session model.BrokerSession, instrument string) (model.Ticker, error) {
	s, err := a.session(session)
	if err != nil {
		return model.Ticker{}, err
	}

	var resp tickerResponse
	body := a.signedBody(s, map[string]string{"market": marketOf(instrument)})
	if err := a.post(ctx, "/api/v1/ticker", body, &resp); err != nil {
		return model.Ticker{}, err
	}
	return model.Ticker{Ask: resp.Data.Ask, Bid: resp.Data.Bid, Last: resp.Data.Last}, nil
}

func (a *Adapter) SubmitOrder(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.PlacedOrder, error) {
	s, err := a.session(session)
	if err != nil {
		return model.PlacedOrder{}, err
	}

	params := map[string]string{
		"market": marketOf(req.Instrument()),
		"side":   sideOf(req.Side),
		"amount": req.Quantity.String(),
	}
	path := "/api/v1/order/market"
	if req.Type == enum.OrderTypeLimit {
		path = "/api/v1/order/limit"
		params["price"] = req.LimitPrice.String()
	}

	var resp orderResponse
	if err := a.post(ctx, path, a.signedBody(s, params), &resp); err != nil {
		return model.PlacedOrder{}, err
	}
	if resp.Data.OrderID == "" {
		return model.PlacedOrder{}, exception.Transient(0, "spot: empty order id in response")
	}
	return model.PlacedOrder{VenueOrderID: resp.Data.OrderID, Instrument: req.Instrument()}, nil
}

func (a *Adapter) FetchOrderStatus(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) (model.OrderStatus, error) {
	s, err := a.session(session)
	if err != nil {
		return model.OrderStatusUnknown, err
	}

	var resp orderResponse
	body := a.signedBody(s, map[string]string{
		"order_id": order.VenueOrderID,
		"market":   marketOf(order.Instrument),
	})
	if err := a.post(ctx, "/api/v1/order/status", body, &resp); err != nil {
		return model.OrderStatusUnknown, err
	}

	switch strings.ToLower(resp.Data.Status) {
	case "closed", "filled":
		return model.OrderStatusClosed, nil
	case "open", "partial":
		return model.OrderStatusOpen, nil
	case "not_found", "":
		return model.OrderStatusUnknown, exception.NotFound("spot: order " + order.VenueOrderID)
	default:
		return model.OrderStatusOpen, nil
	}
}

func (a *Adapter) CancelOrder(ctx context.Context, session model.BrokerSession, order model.PlacedOrder) error {
	s, err := a.session(session)
	if err != nil {
		return err
	}
	body := a.signedBody(s, map[string]string{
		"order_id": order.VenueOrderID,
		"market":   marketOf(order.Instrument),
	})
	return a.post(ctx, "/api/v1/order/cancel", body, nil)
}

func (a *Adapter) EstimateFee(ctx context.Context, session model.BrokerSession, req model.OrderRequest) (model.Fee, error) {
	s, err := a.session(session)
	if err != nil {
		return model.Fee{}, err
	}

	var resp feeResponse
	body := a.signedBody(s, map[string]string{
		"market": marketOf(req.Instrument()),
		"side":   sideOf(req.Side),
	})
	if err := a.post(ctx, "/api/v1/fee", body, &resp); err != nil {
		return model.Fee{}, err
	}
	return model.Fee{Rate: resp.Data.TakerRate}, nil
}

func (a *Adapter) Close(ctx context.Context, session model.BrokerSession) error {
	s, err := a.session(session)
	if err != nil {
		return err
	}
	err = a.post(ctx, "/api/v1/logout", a.signedBody(s, nil), nil)
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

func (a *Adapter) signedBody(s *Session, params map[string]string) map[string]string {
	body := map[string]string{
		"access_id": a.opt.AccessID,
		"token":     s.token,
		"tm":        strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range params {
		body[k] = v
	}
	return body
}

// post sends a signed JSON body and decodes the venue envelope, mapping
// HTTP and envelope failures onto the retry-aware error taxonomy.
func (a *Adapter) post(ctx context.Context, path string, body map[string]string, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opt.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("authorization", a.sign(body))

	resp, err := a.client.Do(r)
	if err != nil {
		return exception.Transient(0, fmt.Sprintf("spot: %s: %v", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &exception.VenueError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("spot: %s returned %d", path, resp.StatusCode),
		}
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return exception.Transient(0, fmt.Sprintf("spot: decode %s response: %v", path, err))
	}
	return nil
}

func (a *Adapter) sign(body map[string]string) string {
	pairs := make([]string, 0, len(body)+1)
	for k, v := range body {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	pairs = append(pairs, fmt.Sprintf("secret_key=%s", a.opt.SecretKey))
	sort.Strings(pairs)
	hash := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(hash[:])
}

func marketOf(instrument string) string {
	return strings.ReplaceAll(instrument, "/", "")
}

func sideOf(side enum.Action) string {
	if side == enum.ActionSell {
		return "2"
	}
	return "1"
}
