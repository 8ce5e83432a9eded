package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Sentiment  SentimentConfig  `mapstructure:"sentiment"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings. URL wins when set,
// otherwise the discrete fields are assembled into a DSN.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains the optional second-tier sentiment cache settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig contains advisor and consultant model settings
type LLMConfig struct {
	Endpoint            string  `mapstructure:"endpoint"`
	APIKey              string  `mapstructure:"api_key"`
	PrimaryModel        string  `mapstructure:"primary_model"`
	FallbackModel       string  `mapstructure:"fallback_model"`
	ConsultantModel     string  `mapstructure:"consultant_model"`
	Temperature         float64 `mapstructure:"temperature"`
	MaxTokens           int     `mapstructure:"max_tokens"`
	TimeoutMS           int     `mapstructure:"timeout_ms"`
	ConsultantTimeoutMS int     `mapstructure:"consultant_timeout_ms"`
}

// SentimentConfig contains sentiment provider settings
type SentimentConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Endpoint     string `mapstructure:"endpoint"`
	Model        string `mapstructure:"model"`
	TimeoutMS    int    `mapstructure:"timeout_ms"`
	CacheTTLSecs int    `mapstructure:"cache_ttl_seconds"`
}

// TradingConfig contains trading universe settings
type TradingConfig struct {
	Symbols         []string          `mapstructure:"symbols"`
	Timeframe       string            `mapstructure:"timeframe"`
	CycleSeconds    int               `mapstructure:"cycle_seconds"`
	Exchange        string            `mapstructure:"exchange"`
	SymbolExchanges map[string]string `mapstructure:"symbol_exchanges"`
	AllowShorts     bool              `mapstructure:"allow_shorts"`
	WarmupDays      int               `mapstructure:"warmup_days"`
	FetchLimit      int               `mapstructure:"fetch_limit"`
}

// RiskConfig contains risk management settings
type RiskConfig struct {
	RiskPerTrade    float64 `mapstructure:"risk_per_trade"`
	MaxExposure     float64 `mapstructure:"max_exposure"`
	StopATRMult     float64 `mapstructure:"stop_atr_mult"`
	TrailATRMult    float64 `mapstructure:"trail_atr_mult"`
	TimeStopBars    int     `mapstructure:"time_stop_bars"`
	CooldownBars    int     `mapstructure:"cooldown_bars"`
	KillSwitchSigma float64 `mapstructure:"kill_switch_sigma"`
	KillSwitchBars  int     `mapstructure:"kill_switch_bars"`
	VolMedianDays   int     `mapstructure:"vol_median_days"`
	MinStopATRMult  float64 `mapstructure:"min_stop_atr_mult"`
	MaxStopATRMult  float64 `mapstructure:"max_stop_atr_mult"`
}

// BrokerConfig contains the paper fill model settings
type BrokerConfig struct {
	FeeBps     float64 `mapstructure:"fee_bps"`
	MinSlipBps float64 `mapstructure:"min_slip_bps"`
	SlipRangeK float64 `mapstructure:"slip_range_k"`
}

// MonitoringConfig contains metrics settings
type MonitoringConfig struct {
	MetricsPort   int  `mapstructure:"metrics_port"`
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PAPERTRADER")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults plus environment variables apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	bindSecretEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindSecretEnv fills secrets from conventional environment variables when
// the config file leaves them empty. Secrets never live in YAML.
func bindSecretEnv(cfg *Config) {
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.Sentiment.APIKey == "" {
		cfg.Sentiment.APIKey = os.Getenv("PERPLEXITY_API_KEY")
	}
	if cfg.Redis.Password == "" {
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "papertrader")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "papertrader")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("llm.primary_model", "deepseek/deepseek-chat-v3-0324")
	v.SetDefault("llm.fallback_model", "x-ai/grok-4-fast")
	v.SetDefault("llm.consultant_model", "x-ai/grok-4-fast")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 400)
	v.SetDefault("llm.timeout_ms", 30000)
	v.SetDefault("llm.consultant_timeout_ms", 10000)

	v.SetDefault("sentiment.endpoint", "https://api.perplexity.ai/chat/completions")
	v.SetDefault("sentiment.model", "sonar")
	v.SetDefault("sentiment.timeout_ms", 15000)
	v.SetDefault("sentiment.cache_ttl_seconds", 43200)

	v.SetDefault("trading.symbols", []string{"BTC/USD", "ETH/USD"})
	v.SetDefault("trading.timeframe", "5m")
	v.SetDefault("trading.cycle_seconds", 90)
	v.SetDefault("trading.exchange", "binance")
	v.SetDefault("trading.allow_shorts", false)
	v.SetDefault("trading.warmup_days", 120)
	v.SetDefault("trading.fetch_limit", 200)

	v.SetDefault("risk.risk_per_trade", 0.005)
	v.SetDefault("risk.max_exposure", 0.02)
	v.SetDefault("risk.stop_atr_mult", 2.0)
	v.SetDefault("risk.trail_atr_mult", 2.0)
	v.SetDefault("risk.time_stop_bars", 40)
	v.SetDefault("risk.cooldown_bars", 3)
	v.SetDefault("risk.kill_switch_sigma", 3.0)
	v.SetDefault("risk.kill_switch_bars", 12)
	v.SetDefault("risk.vol_median_days", 30)
	v.SetDefault("risk.min_stop_atr_mult", 0.5)
	v.SetDefault("risk.max_stop_atr_mult", 3.0)

	v.SetDefault("broker.fee_bps", 2.0)
	v.SetDefault("broker.min_slip_bps", 3.0)
	v.SetDefault("broker.slip_range_k", 0.15)

	v.SetDefault("monitoring.metrics_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the advisor LLM call budget
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// GetConsultantTimeout returns the consultant review budget
func (c *LLMConfig) GetConsultantTimeout() time.Duration {
	return time.Duration(c.ConsultantTimeoutMS) * time.Millisecond
}

// GetTimeout returns the sentiment provider timeout
func (c *SentimentConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// GetCacheTTL returns the Redis cache tier TTL
func (c *SentimentConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// CycleInterval returns the cycle cadence as a duration
func (c *TradingConfig) CycleInterval() time.Duration {
	return time.Duration(c.CycleSeconds) * time.Second
}

// TimeframeDuration parses the configured timeframe ("5m", "1h", ...)
func (c *TradingConfig) TimeframeDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeframe)
	if err != nil {
		return 0, fmt.Errorf("invalid timeframe %q: %w", c.Timeframe, err)
	}
	return d, nil
}

// ExchangeFor returns the exchange id for a symbol, honoring per-symbol
// overrides. Viper lower-cases map keys on unmarshal, so the lookup is
// case-insensitive.
func (c *TradingConfig) ExchangeFor(symbol string) string {
	if ex, ok := c.SymbolExchanges[symbol]; ok && ex != "" {
		return ex
	}
	for key, ex := range c.SymbolExchanges {
		if ex != "" && strings.EqualFold(key, symbol) {
			return ex
		}
	}
	return c.Exchange
}
