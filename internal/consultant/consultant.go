// Package consultant gives trade proposals a second opinion. The review
// is advisory with a hard budget: a slow, failing, or misbehaving
// consultant never blocks a cycle — it auto-approves instead.
package consultant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantline/papertrader/internal/advisor"
	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/llm"
	"github.com/quantline/papertrader/internal/signal"
)

// Verdict is the consultant's decision on a proposal
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictModify  Verdict = "modify"
)

// Outcome is the tagged result of a review. Reason is set for rejects;
// ModifiedQty/ModifiedStop are set for modifies (already clamped).
type Outcome struct {
	Verdict      Verdict
	Reason       string
	ModifiedQty  *float64
	ModifiedStop *float64
	AutoApproved bool
	Model        string
}

// Limits bound what a modify verdict may change
type Limits struct {
	MinStopATRMult float64 // stop can come no closer than this many ATRs
	MaxStopATRMult float64 // nor further than this many ATRs
}

// Context is the market state handed to the reviewer alongside the
// proposal. Sentiment may be nil.
type Context struct {
	Regime    string
	ATR       float64
	Sentiment *db.SentimentRecord
}

// Consultant reviews proposals with one model under a timeout
type Consultant struct {
	client  *llm.Client // nil means reviews always auto-approve
	timeout time.Duration
	limits  Limits
	log     zerolog.Logger
}

// New creates a consultant. client may be nil.
func New(client *llm.Client, timeout time.Duration, limits Limits) *Consultant {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Consultant{
		client:  client,
		timeout: timeout,
		limits:  limits,
		log:     config.NewLogger("consultant"),
	}
}

// reviewReply is the JSON the consultant model must return
type reviewReply struct {
	Decision string  `json:"decision"`
	Reason   string  `json:"reason"`
	Qty      float64 `json:"qty"`
	Stop     float64 `json:"stop"`
}

// Review examines an entry proposal. Transport failure, timeout, and
// schema garbage all auto-approve: the deterministic pipeline has
// already vetted the trade.
func (c *Consultant) Review(ctx context.Context, p *advisor.Proposal, mc Context) Outcome {
	if c.client == nil {
		return Outcome{Verdict: VerdictApprove, AutoApproved: true}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content, err := c.client.CompleteWithSystem(ctx, reviewSystemPrompt, buildReviewPrompt(p, mc))
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("consultant unavailable, auto-approving")
		return Outcome{Verdict: VerdictApprove, AutoApproved: true, Model: c.client.Model()}
	}

	var reply reviewReply
	if err := llm.ParseJSONResponse(content, &reply); err != nil {
		c.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("consultant reply unparseable, auto-approving")
		return Outcome{Verdict: VerdictApprove, AutoApproved: true, Model: c.client.Model()}
	}

	switch Verdict(reply.Decision) {
	case VerdictApprove:
		return Outcome{Verdict: VerdictApprove, Model: c.client.Model()}
	case VerdictReject:
		return Outcome{Verdict: VerdictReject, Reason: reply.Reason, Model: c.client.Model()}
	case VerdictModify:
		return c.clampModify(p, reply, mc.ATR)
	default:
		c.log.Warn().Str("decision", reply.Decision).Msg("unknown consultant verdict, auto-approving")
		return Outcome{Verdict: VerdictApprove, AutoApproved: true, Model: c.client.Model()}
	}
}

// clampModify bounds the consultant's changes: size may only shrink, and
// the stop must stay within the configured ATR band around the entry.
func (c *Consultant) clampModify(p *advisor.Proposal, reply reviewReply, atr float64) Outcome {
	out := Outcome{Verdict: VerdictModify, Reason: reply.Reason, Model: c.client.Model()}

	if reply.Qty > 0 && reply.Qty < p.Qty {
		qty := signal.RoundQty(reply.Qty)
		out.ModifiedQty = &qty
	}

	if reply.Stop > 0 && atr > 0 {
		stop := reply.Stop
		if p.Action == advisor.ActionEnterLong {
			lo := p.Entry - c.limits.MaxStopATRMult*atr
			hi := p.Entry - c.limits.MinStopATRMult*atr
			stop = clamp(stop, lo, hi)
		} else {
			lo := p.Entry + c.limits.MinStopATRMult*atr
			hi := p.Entry + c.limits.MaxStopATRMult*atr
			stop = clamp(stop, lo, hi)
		}
		out.ModifiedStop = &stop
	}

	if out.ModifiedQty == nil && out.ModifiedStop == nil {
		// Nothing survived the clamps; treat as approval
		return Outcome{Verdict: VerdictApprove, Model: c.client.Model()}
	}
	return out
}

// Apply reconciles an outcome onto the proposal, returning the proposal
// to execute (nil when rejected).
func Apply(p *advisor.Proposal, out Outcome) *advisor.Proposal {
	switch out.Verdict {
	case VerdictReject:
		return nil
	case VerdictModify:
		final := *p
		if out.ModifiedQty != nil {
			final.Qty = *out.ModifiedQty
		}
		if out.ModifiedStop != nil {
			final.Stop = *out.ModifiedStop
		}
		return &final
	default:
		return p
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const reviewSystemPrompt = `You review proposed paper trades for an intraday crypto account.
Reply with a single JSON object and nothing else:
{"decision":"approve|reject|modify","reason":"one sentence","qty":0.0,"stop":0.0}
Only include qty/stop when modifying. You may reduce size, never increase it.`

func buildReviewPrompt(p *advisor.Proposal, mc Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "proposal: %s %s qty %.8f entry %.4f stop %.4f confidence %.2f\nrationale: %s\n",
		p.Action, p.Symbol, p.Qty, p.Entry, p.Stop, p.Confidence, p.Rationale)
	if len(p.Reasons) > 0 {
		fmt.Fprintf(&b, "reasons: %s\n", strings.Join(p.Reasons, "; "))
	}
	if p.TakeProfit != nil {
		fmt.Fprintf(&b, "take_profit_rr: %.2f\n", p.TakeProfit.RR)
	}

	fmt.Fprintf(&b, "regime: %s\natr14: %.4f\n", mc.Regime, mc.ATR)
	if mc.Sentiment != nil {
		fmt.Fprintf(&b, "sentiment_24h: %.2f (7d %.2f, trend %.2f, burst %.2f, fallback %t)\n",
			mc.Sentiment.Sent24h, mc.Sentiment.Sent7d, mc.Sentiment.Trend,
			mc.Sentiment.Burst, mc.Sentiment.Fallback)
	}
	return b.String()
}
