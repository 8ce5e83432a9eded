package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantline/papertrader/internal/indicators"
	"github.com/quantline/papertrader/internal/llm"
	"github.com/quantline/papertrader/internal/signal"
)

func longInput() Input {
	return Input{
		Symbol:       "BTC/USD",
		Row:          indicators.FeatureRow{Close: 100.5, ATR14: 1.0, ADX14: 25, EMA50: 101, EMA200: 100},
		Regime:       signal.RegimeTrend,
		NAV:          10000,
		SignalSide:   signal.SideLong,
		ProposedQty:  1.99,
		ProposedStop: 98.5,
	}
}

func TestDeterministicModeWrapsSignal(t *testing.T) {
	a := New(nil)

	p, err := a.Propose(context.Background(), longInput())
	require.NoError(t, err)
	assert.Equal(t, ActionEnterLong, p.Action)
	assert.Equal(t, 1.99, p.Qty)
	assert.Equal(t, 98.5, p.Stop)
	assert.Equal(t, "deterministic", p.Model)

	in := longInput()
	in.SignalSide = ""
	p, err = a.Propose(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, p.Action)
}

func llmServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := llm.ChatResponse{
			Choices: []llm.Choice{{Message: llm.ChatMessage{Content: reply}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func advisorAgainst(t *testing.T, srv *httptest.Server) *Advisor {
	t.Helper()
	c := llm.NewClient(llm.ClientConfig{Endpoint: srv.URL, Model: "m"})
	return New(llm.NewFallbackClient(c, nil))
}

func TestProposeParsesAndNormalizes(t *testing.T) {
	srv := llmServer(t, "```json\n"+
		`{"action":"enter_long","qty":1.5,"entry":100.5,"stop":98.5,"take_profit":{"rr":2.0},"confidence":85,"reasons":["breakout","volume"],"rationale":"breakout"}`+
		"\n```")
	defer srv.Close()

	p, err := advisorAgainst(t, srv).Propose(context.Background(), longInput())
	require.NoError(t, err)
	assert.Equal(t, ActionEnterLong, p.Action)
	assert.Equal(t, "BTC/USD", p.Symbol)
	assert.InDelta(t, 0.85, p.Confidence, 1e-9, "percent confidence normalized to [0,1]")
	assert.Equal(t, []string{"breakout", "volume"}, p.Reasons)
	require.NotNil(t, p.TakeProfit)
	assert.Equal(t, 2.0, p.TakeProfit.RR)
	assert.Equal(t, "m", p.Model)
}

func TestProposeRejectsBadSchema(t *testing.T) {
	// No fallback model configured: a bad reply has nowhere to retry
	cases := []string{
		`{"action":"moon","qty":1,"entry":100,"stop":98,"confidence":0.5}`,
		`{"action":"enter_long","qty":0,"entry":100,"stop":98,"confidence":0.5}`,
		`{"action":"enter_long","qty":1,"entry":100,"stop":101,"confidence":0.5}`,
		`{"action":"enter_long","qty":1,"entry":100,"stop":98,"take_profit":{"rr":-2},"confidence":0.5}`,
		`not json`,
	}
	for _, reply := range cases {
		srv := llmServer(t, reply)
		_, err := advisorAgainst(t, srv).Propose(context.Background(), longInput())
		assert.Error(t, err, reply)
		srv.Close()
	}
}

func TestProposeRetriesSchemaFailureOnFallback(t *testing.T) {
	primary := llmServer(t, "the market looks constructive, I would buy")
	defer primary.Close()
	fallback := llmServer(t,
		`{"action":"enter_long","qty":1.5,"entry":100.5,"stop":98.5,"confidence":0.7,"rationale":"breakout"}`)
	defer fallback.Close()

	a := New(llm.NewFallbackClient(
		llm.NewClient(llm.ClientConfig{Endpoint: primary.URL, Model: "p"}),
		llm.NewClient(llm.ClientConfig{Endpoint: fallback.URL, Model: "fb"}),
	))

	p, err := a.Propose(context.Background(), longInput())
	require.NoError(t, err, "a schema-invalid primary reply retries on the fallback model")
	assert.Equal(t, ActionEnterLong, p.Action)
	assert.Equal(t, "fb", p.Model)
}

func TestProposeRetriesTransportFailureOnFallback(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	fallback := llmServer(t,
		`{"action":"hold","confidence":0.4,"rationale":"chop"}`)
	defer fallback.Close()

	a := New(llm.NewFallbackClient(
		llm.NewClient(llm.ClientConfig{Endpoint: primary.URL, Model: "p"}),
		llm.NewClient(llm.ClientConfig{Endpoint: fallback.URL, Model: "fb"}),
	))

	p, err := a.Propose(context.Background(), longInput())
	require.NoError(t, err)
	assert.Equal(t, ActionHold, p.Action)
	assert.Equal(t, "fb", p.Model)
}

func TestProposeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := advisorAgainst(t, srv).Propose(context.Background(), longInput())
	assert.Error(t, err)
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 0.85, NormalizeConfidence(85))
	assert.Equal(t, 0.85, NormalizeConfidence(0.85))
	assert.Equal(t, 0.0, NormalizeConfidence(-1))
	assert.Equal(t, 1.0, NormalizeConfidence(250))
}

func TestValidateShortStop(t *testing.T) {
	in := longInput()
	p := &Proposal{Action: ActionEnterShort, Qty: 1, Entry: 100, Stop: 102}
	assert.NoError(t, Validate(p, in))

	p.Stop = 99
	assert.Error(t, Validate(p, in))
}
