package webhook

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/admission"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// payload is the wire shape of one alert. Every field arrives as a
// string; the alerting platform's templating cannot emit typed JSON.
type payload struct {
	Action   string `json:"action"`
	Price    string `json:"price"`
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Venue    string `json:"venue"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Timenow  string `json:"timenow"`
	Volume   string `json:"volume"`
	Mode     string `json:"mode"`
	Token    string `json:"token"`
}

type response struct {
	Decision string `json:"decision"`
	Error    string `json:"error,omitempty"`
}

// Submitter is the dispatcher surface the handler needs.
type Submitter interface {
	SubmitSignal(model.TradeSignal) (admission.Decision, error)
}

// Handler converts webhook POSTs into trade signals. Authentication and
// the excluded-symbol gate both answer 400 with one shared message, so a
// probing caller cannot tell which check failed.
type Handler struct {
	submitter       Submitter
	credentials     map[enum.Venue]Credentials
	excludedSymbols []string
}

func NewHandler(submitter Submitter, credentials map[enum.Venue]Credentials, excludedSymbols []string) *Handler {
	return &Handler{
		submitter:       submitter,
		credentials:     credentials,
		excludedSymbols: excludedSymbols,
	}
}

const rejectionMessage = "the provided symbol is set as excluded symbol, or the token is wrong"

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, response{Error: "method not allowed"})
		return
	}

	var body payload
	if err := sonic.ConfigFastest.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: "malformed body"})
		return
	}

	signal, err := h.parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}

	creds, ok := h.credentials[signal.Venue]
	switch {
	case !ok || !ValidToken(body.Token, creds):
		// The outward answer stays identical to the exclusion case; the
		// log keeps the real cause.
		logs.Warnf("reject %s %s: %v", signal.Action, signal.Instrument(), exception.ErrSignalToken)
		writeJSON(w, http.StatusBadRequest, response{Error: rejectionMessage})
		return
	case slices.Contains(h.excludedSymbols, signal.Symbol):
		logs.Warnf("reject %s %s: excluded symbol", signal.Action, signal.Instrument())
		writeJSON(w, http.StatusBadRequest, response{Error: rejectionMessage})
		return
	}

	decision, err := h.submitter.SubmitSignal(signal)
	switch {
	case err == nil:
		resp := response{Decision: decision.String()}
		if decision == admission.DecisionRejectedStale {
			resp.Error = exception.ErrStaleRequest.Error()
		}
		writeJSON(w, statusOf(decision), resp)
	case errors.Is(err, exception.ErrPipelineQueueFull), errors.Is(err, exception.ErrDispatcherStopped):
		writeJSON(w, http.StatusServiceUnavailable, response{Decision: decision.String(), Error: err.Error()})
	default:
		logs.Errorf("submit %s %s: %v", signal.Action, signal.Instrument(), err)
		writeJSON(w, http.StatusInternalServerError, response{Error: "internal error"})
	}
}

func (h *Handler) parse(body payload) (model.TradeSignal, error) {
	action, ok := enum.ParseAction(body.Action)
	if !ok {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	v, ok := enum.ParseVenue(body.Venue)
	if !ok {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	orderType, ok := enum.ParseOrderType(body.Type)
	if !ok {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	mode, ok := enum.ParseMode(body.Mode)
	if !ok {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	if body.Symbol == "" || body.Currency == "" {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}

	ts, err := parseTimestamp(body.Timenow)
	if err != nil {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	price, err := parseOptionalDecimal(body.Price)
	if err != nil {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}
	volume, err := parseOptionalDecimal(body.Volume)
	if err != nil {
		return model.TradeSignal{}, exception.ErrSignalInvalid
	}

	return model.TradeSignal{
		Action:      action,
		Symbol:      body.Symbol,
		Currency:    body.Currency,
		Venue:       v,
		OrderType:   orderType,
		AmountRatio: amount,
		Price:       price,
		VolumeHint:  volume,
		Timestamp:   ts,
		Mode:        mode,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	// Some templates emit epoch milliseconds instead of ISO time.
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func statusOf(decision admission.Decision) int {
	switch decision {
	case admission.DecisionAccepted, admission.DecisionDuplicate:
		return http.StatusOK
	case admission.DecisionRejectedStale:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return
	}
	_, _ = w.Write(payload)
}
