// The papertrader daemon: a single-tenant intraday paper-trading loop
// over live exchange data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantline/papertrader/internal/advisor"
	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/consultant"
	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/exchange"
	"github.com/quantline/papertrader/internal/llm"
	"github.com/quantline/papertrader/internal/metrics"
	"github.com/quantline/papertrader/internal/orchestrator"
	"github.com/quantline/papertrader/internal/sentiment"
)

// Exit codes: 0 clean shutdown, 1 startup failure, 2 bad configuration,
// 3 cancelled by signal
const (
	exitClean     = 0
	exitError     = 1
	exitConfig    = 2
	exitCancelled = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	initNAV := flag.Float64("init-nav", 0, "Seed the starting NAV (first run only)")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	skipBackfill := flag.Bool("skip-backfill", false, "Skip the candle history backfill on boot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitConfig
	}
	config.InitLogger(&cfg.App)
	log.Info().
		Str("environment", cfg.App.Environment).
		Strs("symbols", cfg.Trading.Symbols).
		Str("timeframe", cfg.Trading.Timeframe).
		Msg("starting papertrader")

	adapter, symbolAdapters, err := buildAdapters(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Migrations run before the pool connects
	sqlDB, err := db.OpenForMigration(cfg.Database.GetDSN())
	if err != nil {
		log.Error().Err(err).Msg("failed to open database for migration")
		return exitError
	}
	if err := db.NewMigrator(sqlDB).Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		log.Error().Err(err).Msg("migration failed")
		return exitError
	}
	_ = sqlDB.Close()

	database, err := db.New(ctx, &cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return exitError
	}
	defer database.Close()
	store := db.NewStore(database.Pool())

	if *initNAV > 0 {
		if err := seedInitialNAV(ctx, store, *initNAV); err != nil {
			log.Error().Err(err).Msg("failed to seed starting nav")
			return exitError
		}
	}

	orch := orchestrator.New(orchestrator.Deps{
		Config:         cfg,
		Store:          store,
		Adapter:        adapter,
		SymbolAdapters: symbolAdapters,
		Advisor:        buildAdvisor(cfg),
		Consultant:     buildConsultant(cfg),
		Sentiment:      buildSentiment(cfg, store),
		Metrics:        buildMetrics(cfg),
	})

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.MetricsPort)
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start metrics server")
			return exitError
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if !*skipBackfill {
		log.Info().Int("warmup_days", cfg.Trading.WarmupDays).Msg("backfilling candle history")
		if err := orch.Backfill(ctx); err != nil {
			log.Error().Err(err).Msg("backfill failed")
			return exitError
		}
	}

	if *once {
		summary, err := orch.RunOnce(ctx, time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Msg("cycle failed")
			return exitError
		}
		log.Info().
			Int("opens", summary.Opens).
			Int("closes", summary.Closes).
			Float64("nav", summary.NAV).
			Dur("duration", summary.Duration).
			Msg("single cycle complete")
		return exitClean
	}

	if err := orch.RunForever(ctx); err != nil {
		log.Error().Err(err).Msg("cycle loop failed")
		return exitError
	}
	if ctx.Err() != nil {
		log.Info().Msg("cancelled, shutting down")
		return exitCancelled
	}
	log.Info().Msg("shutdown complete")
	return exitClean
}

// seedInitialNAV records the starting cash once; re-running the daemon
// with -init-nav never resets a live account.
func seedInitialNAV(ctx context.Context, store *db.Store, nav float64) error {
	var existing float64
	ok, err := store.GetConfigValue(ctx, db.KeyInitialNAV, &existing)
	if err != nil {
		return err
	}
	if ok {
		log.Warn().
			Float64("existing", existing).
			Float64("requested", nav).
			Msg("starting nav already set, ignoring -init-nav")
		return nil
	}
	log.Info().Float64("nav", nav).Msg("seeding starting nav")
	return store.SetConfigValue(ctx, db.KeyInitialNAV, nav)
}

// buildAdapters resolves the default exchange adapter plus the
// per-symbol overrides from trading.symbol_exchanges. Adapters are
// shared across symbols on the same exchange.
func buildAdapters(cfg *config.Config) (exchange.Adapter, map[string]exchange.Adapter, error) {
	def, err := exchange.NewAdapter(cfg.Trading.Exchange)
	if err != nil {
		return nil, nil, err
	}

	byName := map[string]exchange.Adapter{cfg.Trading.Exchange: def}
	overrides := make(map[string]exchange.Adapter)
	for _, symbol := range cfg.Trading.Symbols {
		name := cfg.Trading.ExchangeFor(symbol)
		if name == cfg.Trading.Exchange {
			continue
		}
		adapter, ok := byName[name]
		if !ok {
			adapter, err = exchange.NewAdapter(name)
			if err != nil {
				return nil, nil, fmt.Errorf("symbol %s: %w", symbol, err)
			}
			byName[name] = adapter
		}
		overrides[symbol] = adapter
	}
	return def, overrides, nil
}

func buildAdvisor(cfg *config.Config) *advisor.Advisor {
	if !cfg.LLMEnabled() {
		log.Warn().Msg("no llm api key configured, advisor runs deterministic")
		return advisor.New(nil)
	}

	primary := llm.NewClient(llm.ClientConfig{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.PrimaryModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.GetTimeout(),
	})
	var fallback *llm.Client
	if cfg.LLM.FallbackModel != "" {
		fallback = llm.NewClient(llm.ClientConfig{
			Endpoint:    cfg.LLM.Endpoint,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.FallbackModel,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.GetTimeout(),
		})
	}
	return advisor.New(llm.NewFallbackClient(primary, fallback))
}

func buildConsultant(cfg *config.Config) *consultant.Consultant {
	limits := consultant.Limits{
		MinStopATRMult: cfg.Risk.MinStopATRMult,
		MaxStopATRMult: cfg.Risk.MaxStopATRMult,
	}
	if !cfg.LLMEnabled() {
		return consultant.New(nil, cfg.LLM.GetConsultantTimeout(), limits)
	}

	client := llm.NewClient(llm.ClientConfig{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.ConsultantModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.GetConsultantTimeout(),
	})
	return consultant.New(client, cfg.LLM.GetConsultantTimeout(), limits)
}

func buildSentiment(cfg *config.Config, store *db.Store) *sentiment.Service {
	providers := []sentiment.Provider{}
	if cfg.SentimentEnabled() {
		providers = append(providers, sentiment.NewSearchLLMProvider(&cfg.Sentiment))
	}
	providers = append(providers, sentiment.NewDDGProvider())

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return sentiment.NewService(providers, store, rdb, cfg.Sentiment.GetCacheTTL())
}

func buildMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Monitoring.EnableMetrics {
		return nil
	}
	return metrics.New()
}
