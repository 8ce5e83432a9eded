// Package advisor turns the deterministic signal plus market context
// into a typed trade proposal, optionally consulting an LLM.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/indicators"
	"github.com/quantline/papertrader/internal/llm"
	"github.com/quantline/papertrader/internal/signal"
)

// Proposal actions
const (
	ActionEnterLong  = "enter_long"
	ActionEnterShort = "enter_short"
	ActionHold       = "hold"
	ActionExit       = "exit"
)

// TakeProfit is an advisory target expressed as a reward multiple of the
// initial risk. Exits are driven by stops, not targets, so it is recorded
// but never executed.
type TakeProfit struct {
	RR float64 `json:"rr"`
}

// Proposal is the strictly-typed advisor output
type Proposal struct {
	Action     string      `json:"action"`
	Symbol     string      `json:"symbol"`
	Qty        float64     `json:"qty"`
	Entry      float64     `json:"entry"`
	Stop       float64     `json:"stop"`
	TakeProfit *TakeProfit `json:"take_profit,omitempty"`
	Confidence float64     `json:"confidence"` // [0, 1]
	Reasons    []string    `json:"reasons,omitempty"`
	Rationale  string      `json:"rationale"`
	Model      string      `json:"model,omitempty"` // which model produced it; "deterministic" in degraded mode
}

// Input is the context handed to the advisor for one symbol
type Input struct {
	Symbol    string
	Row       indicators.FeatureRow
	Regime    signal.Regime
	Sentiment *db.SentimentRecord
	Position  *db.Position
	NAV       float64

	// The deterministic signal, pre-sized by the rules engine.
	// SignalSide is empty when no entry fired.
	SignalSide   string
	ProposedQty  float64
	ProposedStop float64
}

// Advisor builds proposals. With a nil client it runs in degraded
// deterministic mode and simply wraps the rules-engine signal.
type Advisor struct {
	client *llm.FallbackClient
	log    zerolog.Logger
}

// New creates an advisor. client may be nil (no API key configured).
func New(client *llm.FallbackClient) *Advisor {
	return &Advisor{
		client: client,
		log:    config.NewLogger("advisor"),
	}
}

// Propose returns the advisor's proposal for the cycle. The models are
// tried in order: a transport failure or a schema-invalid reply from the
// primary swaps once to the fallback. An error means every model failed;
// the caller skips the symbol for this cycle.
func (a *Advisor) Propose(ctx context.Context, in Input) (*Proposal, error) {
	if a.client == nil {
		return a.deterministic(in), nil
	}

	prompt := buildUserPrompt(in)
	var lastErr error
	for i, client := range a.client.Clients() {
		if i > 0 {
			a.log.Warn().
				Err(lastErr).
				Str("symbol", in.Symbol).
				Str("fallback", client.Model()).
				Msg("primary advisor attempt failed, swapping to fallback")
		}
		p, err := a.proposeWith(ctx, client, in, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return p, nil
	}
	return nil, lastErr
}

// proposeWith runs one model and vets its reply against the schema
func (a *Advisor) proposeWith(ctx context.Context, client *llm.Client, in Input, prompt string) (*Proposal, error) {
	content, err := client.CompleteWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("advisor llm call failed: %w", err)
	}

	var p Proposal
	if err := llm.ParseJSONResponse(content, &p); err != nil {
		return nil, fmt.Errorf("advisor reply is not valid json: %w", err)
	}
	p.Symbol = in.Symbol
	p.Model = client.Model()
	p.Confidence = NormalizeConfidence(p.Confidence)

	if err := Validate(&p, in); err != nil {
		return nil, fmt.Errorf("advisor proposal invalid: %w", err)
	}

	a.log.Debug().
		Str("symbol", in.Symbol).
		Str("action", p.Action).
		Str("model", p.Model).
		Float64("confidence", p.Confidence).
		Msg("advisor proposal")

	return &p, nil
}

// deterministic synthesizes a proposal straight from the rules engine
func (a *Advisor) deterministic(in Input) *Proposal {
	p := &Proposal{
		Symbol:     in.Symbol,
		Action:     ActionHold,
		Confidence: 0.5,
		Rationale:  "deterministic mode: no llm configured",
		Model:      "deterministic",
	}
	switch in.SignalSide {
	case signal.SideLong:
		p.Action = ActionEnterLong
	case signal.SideShort:
		p.Action = ActionEnterShort
	default:
		return p
	}
	p.Qty = in.ProposedQty
	p.Entry = in.Row.Close
	p.Stop = in.ProposedStop
	p.Reasons = []string{"donchian breakout", "positive money flow", "elevated volume"}
	return p
}

// NormalizeConfidence maps percent-style confidences into [0, 1] and
// clamps the result
func NormalizeConfidence(c float64) float64 {
	if c > 1 && c <= 100 {
		c /= 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Validate enforces the proposal schema against the cycle context
func Validate(p *Proposal, in Input) error {
	switch p.Action {
	case ActionHold, ActionExit:
		return nil
	case ActionEnterLong, ActionEnterShort:
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}

	if p.Qty <= 0 {
		return fmt.Errorf("entry proposal with non-positive qty %f", p.Qty)
	}
	if p.Entry <= 0 {
		return fmt.Errorf("entry proposal with non-positive entry %f", p.Entry)
	}
	if p.Action == ActionEnterLong && p.Stop >= p.Entry {
		return fmt.Errorf("long stop %f not below entry %f", p.Stop, p.Entry)
	}
	if p.Action == ActionEnterShort && p.Stop <= p.Entry {
		return fmt.Errorf("short stop %f not above entry %f", p.Stop, p.Entry)
	}
	if p.TakeProfit != nil && p.TakeProfit.RR <= 0 {
		return fmt.Errorf("take-profit rr must be positive, got %f", p.TakeProfit.RR)
	}
	return nil
}

const systemPrompt = `You are a disciplined intraday crypto trading advisor for a paper account.
Reply with a single JSON object and nothing else:
{"action":"enter_long|enter_short|hold|exit","qty":0.0,"entry":0.0,"stop":0.0,"take_profit":{"rr":0.0},"confidence":0.0,"reasons":["short phrases"],"rationale":"one sentence"}
Rules: respect the proposed quantity and stop unless you see a clear reason to hold instead; take_profit.rr is your reward target as a multiple of the initial risk; confidence is a number in [0,1]; never invent leverage.`

func buildUserPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "symbol: %s\nregime: %s\nclose: %.4f\natr14: %.4f\nadx14: %.2f\nema50: %.4f\nema200: %.4f\nrsi14: %.2f\ncmf20: %.4f\nrvol20: %.2f\ndonchian_upper: %.4f\n",
		in.Symbol, in.Regime, in.Row.Close, in.Row.ATR14, in.Row.ADX14,
		in.Row.EMA50, in.Row.EMA200, in.Row.RSI14, in.Row.CMF20,
		in.Row.RVOL20, in.Row.DonchUpper)

	if in.Sentiment != nil {
		fmt.Fprintf(&b, "sentiment_24h: %.2f (7d %.2f, trend %.2f, burst %.2f, fallback %t)\n",
			in.Sentiment.Sent24h, in.Sentiment.Sent7d, in.Sentiment.Trend,
			in.Sentiment.Burst, in.Sentiment.Fallback)
	}
	if in.Position != nil {
		fmt.Fprintf(&b, "open_position: %s qty %.8f entry %.4f stop %.4f\n",
			in.Position.Side, in.Position.Qty, in.Position.EntryPrice, in.Position.StopPrice)
	} else {
		b.WriteString("open_position: none\n")
	}

	fmt.Fprintf(&b, "nav: %.2f\n", in.NAV)
	if in.SignalSide != "" {
		fmt.Fprintf(&b, "rules_signal: %s qty %.8f stop %.4f\n",
			in.SignalSide, in.ProposedQty, in.ProposedStop)
	} else {
		b.WriteString("rules_signal: none\n")
	}
	return b.String()
}
