package sentiment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DDGProvider estimates sentiment by counting charged keywords in
// DuckDuckGo search results for the asset. Crude but key-free; its
// score is capped at half strength and flagged as a fallback.
type DDGProvider struct {
	baseURL    string
	httpClient *http.Client
}

// MaxFallbackScore caps the magnitude of keyword-derived scores
const MaxFallbackScore = 0.5

var positiveWords = []string{
	"surge", "rally", "bullish", "gain", "soar", "adoption",
	"record", "breakout", "upgrade", "inflow", "approval",
}

var negativeWords = []string{
	"crash", "plunge", "bearish", "hack", "lawsuit", "ban",
	"selloff", "dump", "exploit", "outflow", "liquidation",
}

// NewDDGProvider creates the keyword fallback provider
func NewDDGProvider() *DDGProvider {
	return &DDGProvider{
		baseURL:    "https://html.duckduckgo.com/html/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider identifier
func (p *DDGProvider) Name() string { return "ddg-keywords" }

// Fetch searches recent news for the base asset over two horizons and
// scores the result text by keyword balance
func (p *DDGProvider) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	base := strings.SplitN(symbol, "/", 2)[0]

	day, dayHits, err := p.search(ctx, base+" crypto news today")
	if err != nil {
		return Snapshot{}, err
	}
	week, weekHits, err := p.search(ctx, base+" crypto news this week")
	if err != nil {
		// The weekly query is supplementary; reuse the daily score
		week, weekHits = day, dayHits
	}

	return Snapshot{
		Symbol:   symbol,
		TS:       time.Now().UTC(),
		Sent24h:  day,
		Sent7d:   week,
		Trend:    day - week,
		Burst:    burst(dayHits, weekHits),
		Fallback: true,
		Sources:  []string{p.Name()},
	}, nil
}

// search runs one query and returns the keyword score of the result page
// plus the total charged-keyword hit count
func (p *DDGProvider) search(ctx context.Context, query string) (float64, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; papertrader/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read search results: %w", err)
	}

	score, hits := ScoreText(string(body))
	return score, hits, nil
}

// burst maps today's charged-keyword volume against the weekly baseline
// into [0, 1]. A day matching the weekly daily average scores ~0.
func burst(dayHits, weekHits int) float64 {
	if weekHits == 0 {
		return 0
	}
	dailyAvg := float64(weekHits) / 7
	if dailyAvg == 0 {
		return 0
	}
	b := (float64(dayHits) - dailyAvg) / (float64(dayHits) + dailyAvg)
	if b < 0 {
		return 0
	}
	return b
}

// ScoreText counts charged keywords and maps the balance into
// [-MaxFallbackScore, MaxFallbackScore], returning the total hit count
// alongside the score
func ScoreText(text string) (float64, int) {
	text = strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(text, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(text, w)
	}

	total := pos + neg
	if total == 0 {
		return 0, 0
	}
	return float64(pos-neg) / float64(total) * MaxFallbackScore, total
}
