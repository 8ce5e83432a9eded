package config

import (
	"fmt"
	"strings"
	"time"
)

var validTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "12h": true, "1d": true,
}

// Validate checks configuration consistency. It returns the first problem
// found; recoverable gaps (missing LLM/sentiment keys) are not errors.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols must not be empty")
	}
	for _, s := range c.Trading.Symbols {
		if !strings.Contains(s, "/") {
			return fmt.Errorf("trading.symbols entry %q is not BASE/QUOTE form", s)
		}
	}

	if !validTimeframes[c.Trading.Timeframe] {
		return fmt.Errorf("trading.timeframe %q is not supported", c.Trading.Timeframe)
	}
	if _, err := time.ParseDuration(c.Trading.Timeframe); err != nil {
		return fmt.Errorf("trading.timeframe %q does not parse: %w", c.Trading.Timeframe, err)
	}

	if c.Trading.CycleSeconds <= 0 {
		return fmt.Errorf("trading.cycle_seconds must be positive, got %d", c.Trading.CycleSeconds)
	}
	if c.Trading.FetchLimit < 1 {
		return fmt.Errorf("trading.fetch_limit must be at least 1, got %d", c.Trading.FetchLimit)
	}

	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 0.05 {
		return fmt.Errorf("risk.risk_per_trade must be in (0, 0.05], got %f", c.Risk.RiskPerTrade)
	}
	if c.Risk.MaxExposure <= 0 || c.Risk.MaxExposure > 1 {
		return fmt.Errorf("risk.max_exposure must be in (0, 1], got %f", c.Risk.MaxExposure)
	}
	if c.Risk.StopATRMult <= 0 {
		return fmt.Errorf("risk.stop_atr_mult must be positive, got %f", c.Risk.StopATRMult)
	}
	if c.Risk.MinStopATRMult <= 0 || c.Risk.MinStopATRMult >= c.Risk.MaxStopATRMult {
		return fmt.Errorf("risk stop clamp bounds invalid: min %f max %f",
			c.Risk.MinStopATRMult, c.Risk.MaxStopATRMult)
	}
	if c.Risk.TimeStopBars <= 0 {
		return fmt.Errorf("risk.time_stop_bars must be positive, got %d", c.Risk.TimeStopBars)
	}
	if c.Risk.CooldownBars < 0 {
		return fmt.Errorf("risk.cooldown_bars must not be negative, got %d", c.Risk.CooldownBars)
	}
	if c.Risk.KillSwitchSigma <= 1 {
		return fmt.Errorf("risk.kill_switch_sigma must exceed 1, got %f", c.Risk.KillSwitchSigma)
	}
	if c.Risk.KillSwitchBars <= 0 {
		return fmt.Errorf("risk.kill_switch_bars must be positive, got %d", c.Risk.KillSwitchBars)
	}

	if c.Broker.FeeBps < 0 {
		return fmt.Errorf("broker.fee_bps must not be negative, got %f", c.Broker.FeeBps)
	}
	if c.Broker.MinSlipBps < 0 {
		return fmt.Errorf("broker.min_slip_bps must not be negative, got %f", c.Broker.MinSlipBps)
	}
	if c.Broker.SlipRangeK < 0 {
		return fmt.Errorf("broker.slip_range_k must not be negative, got %f", c.Broker.SlipRangeK)
	}

	if c.Database.PoolSize <= 0 {
		return fmt.Errorf("database.pool_size must be positive, got %d", c.Database.PoolSize)
	}

	if c.Monitoring.EnableMetrics &&
		(c.Monitoring.MetricsPort < 1 || c.Monitoring.MetricsPort > 65535) {
		return fmt.Errorf("monitoring.metrics_port %d out of range", c.Monitoring.MetricsPort)
	}

	return nil
}

// LLMEnabled reports whether advisor/consultant calls can be made at all.
// Without a key the daemon runs in degraded deterministic mode.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}

// SentimentEnabled reports whether the online sentiment provider is usable
func (c *Config) SentimentEnabled() bool {
	return c.Sentiment.APIKey != ""
}
