package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/admission"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

var testCreds = Credentials{Secret: "hunter2", Key: "spot-route"}

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubSubmitter struct {
	decision admission.Decision
	err      error
	signals  []model.TradeSignal
}

func (s *stubSubmitter) SubmitSignal(signal model.TradeSignal) (admission.Decision, error) {
	s.signals = append(s.signals, signal)
	return s.decision, s.err
}

func validBody(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"action":   "buy",
		"price":    "42000.5",
		"symbol":   "BTC",
		"currency": "USD",
		"venue":    "spot",
		"type":     "market",
		"amount":   "0.5",
		"timenow":  "2024-01-01T00:00:00Z",
		"volume":   "123.4",
		"mode":     "trade",
		"token":    Token(testCreds),
	}
}

func post(t *testing.T, h *Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := sonic.ConfigFastest.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(payload)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newHandler(submitter Submitter) *Handler {
	return NewHandler(submitter,
		map[enum.Venue]Credentials{enum.VenueSpot: testCreds},
		[]string{"DOGE"})
}

func TestHandlerAcceptsValidSignal(t *testing.T) {
	submitter := &stubSubmitter{decision: admission.DecisionAccepted}
	rec := post(t, newHandler(submitter), validBody(t))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, submitter.signals, 1)
	signal := submitter.signals[0]
	assert.Equal(t, enum.ActionBuy, signal.Action)
	assert.Equal(t, "BTC/USD", signal.Instrument())
	assert.Equal(t, enum.VenueSpot, signal.Venue)
	assert.Equal(t, enum.ModeTrade, signal.Mode)
	assert.True(t, signal.AmountRatio.Equal(mustDec("0.5")))
	assert.Equal(t, "2024-01-01T00:00:00Z", signal.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
}

func TestHandlerRejectsBadToken(t *testing.T) {
	submitter := &stubSubmitter{decision: admission.DecisionAccepted}
	body := validBody(t)
	body["token"] = "forged"
	rec := post(t, newHandler(submitter), body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, submitter.signals)
	assert.Contains(t, rec.Body.String(), "token is wrong")
}

func TestHandlerRejectsExcludedSymbol(t *testing.T) {
	submitter := &stubSubmitter{decision: admission.DecisionAccepted}
	body := validBody(t)
	body["symbol"] = "DOGE"
	rec := post(t, newHandler(submitter), body)

	// Same answer as a bad token, so callers cannot probe the exclusion
	// list.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, submitter.signals)
}

func TestHandlerRejectsUnknownFields(t *testing.T) {
	for field, value := range map[string]string{
		"action":  "hold",
		"venue":   "futures",
		"type":    "iceberg",
		"mode":    "paper",
		"amount":  "lots",
		"timenow": "yesterday",
	} {
		submitter := &stubSubmitter{decision: admission.DecisionAccepted}
		body := validBody(t)
		body[field] = value
		rec := post(t, newHandler(submitter), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "field %s", field)
		assert.Empty(t, submitter.signals, "field %s", field)
	}
}

func TestHandlerMapsDecisionsToStatus(t *testing.T) {
	for decision, status := range map[admission.Decision]int{
		admission.DecisionAccepted:      http.StatusOK,
		admission.DecisionDuplicate:     http.StatusOK,
		admission.DecisionRejectedStale: http.StatusConflict,
	} {
		submitter := &stubSubmitter{decision: decision}
		rec := post(t, newHandler(submitter), validBody(t))
		assert.Equal(t, status, rec.Code, decision.String())
		if decision == admission.DecisionRejectedStale {
			assert.Contains(t, rec.Body.String(), exception.ErrStaleRequest.Error())
		}
	}
}

func TestHandlerReportsQueuePressure(t *testing.T) {
	submitter := &stubSubmitter{
		decision: admission.DecisionAccepted,
		err:      exception.ErrPipelineQueueFull,
	}
	rec := post(t, newHandler(submitter), validBody(t))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerAcceptsEpochMillisTimestamp(t *testing.T) {
	submitter := &stubSubmitter{decision: admission.DecisionAccepted}
	body := validBody(t)
	body["timenow"] = "1704067200000"
	rec := post(t, newHandler(submitter), body)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, submitter.signals, 1)
	assert.Equal(t, int64(1704067200), submitter.signals[0].Timestamp.Unix())
}

func TestHandlerRejectsNonPost(t *testing.T) {
	h := newHandler(&stubSubmitter{})
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTokenRoundTrip(t *testing.T) {
	assert.True(t, ValidToken(Token(testCreds), testCreds))
	assert.False(t, ValidToken(Token(testCreds), Credentials{Secret: "other", Key: "spot-route"}))
	assert.False(t, ValidToken("", testCreds))
}
