package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/llm"
)

// SearchLLMProvider asks an online-search chat model (Perplexity style)
// for current sentiment and extracts a typed score from its reply.
type SearchLLMProvider struct {
	client  *llm.Client
	breaker *gobreaker.CircuitBreaker
}

// NewSearchLLMProvider creates the primary sentiment provider
func NewSearchLLMProvider(cfg *config.SentimentConfig) *SearchLLMProvider {
	client := llm.NewClient(llm.ClientConfig{
		Endpoint:  cfg.Endpoint,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: 300,
		Timeout:   cfg.GetTimeout(),
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sentiment-search-llm",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     10 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &SearchLLMProvider{client: client, breaker: breaker}
}

// Name returns the provider identifier
func (p *SearchLLMProvider) Name() string { return "search-llm" }

type sentimentReply struct {
	Sent24h float64 `json:"sent_24h"`
	Sent7d  float64 `json:"sent_7d"`
	Burst   float64 `json:"burst"`
}

// Fetch asks the model for current sentiment on the symbol's base asset
func (p *SearchLLMProvider) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		base := strings.SplitN(symbol, "/", 2)[0]
		content, err := p.client.CompleteWithSystem(ctx, sentimentSystemPrompt,
			fmt.Sprintf("Asset: %s. Summarise the last 24h and last 7d of news and give the JSON.", base))
		if err != nil {
			return nil, err
		}

		var reply sentimentReply
		if err := llm.ParseJSONResponse(content, &reply); err != nil {
			return nil, fmt.Errorf("sentiment reply unparseable: %w", err)
		}
		return reply, nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	reply := result.(sentimentReply)
	s24 := clampScore(reply.Sent24h)
	s7 := clampScore(reply.Sent7d)
	return Snapshot{
		Symbol:  symbol,
		TS:      time.Now().UTC(),
		Sent24h: s24,
		Sent7d:  s7,
		Trend:   s24 - s7,
		Burst:   clampUnit(reply.Burst),
		Sources: []string{p.Name()},
	}, nil
}

const sentimentSystemPrompt = `You research current crypto market sentiment using recent news.
Reply with a single JSON object and nothing else:
{"sent_24h":0.0,"sent_7d":0.0,"burst":0.0}
sent_24h and sent_7d are sentiment scores in [-1,1] over the last day and week;
burst is the news-volume spike in [0,1] (0 = quiet, 1 = everywhere).`
