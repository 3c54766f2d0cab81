package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/solarb/engine/internal/alerts"
	"github.com/solarb/engine/internal/arb"
	"github.com/solarb/engine/internal/audit"
	"github.com/solarb/engine/internal/clock"
	"github.com/solarb/engine/internal/config"
	"github.com/solarb/engine/internal/control"
	"github.com/solarb/engine/internal/decision"
	"github.com/solarb/engine/internal/discovery"
	"github.com/solarb/engine/internal/engine"
	"github.com/solarb/engine/internal/events"
	"github.com/solarb/engine/internal/execution"
	"github.com/solarb/engine/internal/learning"
	"github.com/solarb/engine/internal/metrics"
	"github.com/solarb/engine/internal/protection"
	"github.com/solarb/engine/internal/quote"
	"github.com/solarb/engine/internal/risk"
	"github.com/solarb/engine/internal/scoring"
	"github.com/solarb/engine/internal/store"
	"github.com/solarb/engine/internal/validation"
	"github.com/solarb/engine/internal/vault"
)

func main() {
	configPath := ""
	for i, a := range os.Args {
		if a == "--config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
	}

	config.InitLogger(envOr("SOLARB_LOG_LEVEL", "info"), envOr("SOLARB_LOG_FORMAT", "console"))
	log.Info().Str("version", config.GetVersion()).Msg("starting solarb-engine")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("bad configuration")
		os.Exit(2)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Error().Err(err).Msg("dependency unavailable at startup")
		os.Exit(3)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := app.control.Serve(ctx); err != nil {
			errChan <- fmt.Errorf("control server: %w", err)
		}
	}()
	go func() {
		if err := app.metricsServer.Start(); err != nil {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	if err := app.registry.StartAllBots(ctx); err != nil {
		log.Warn().Err(err).Msg("no bots configured at startup; use CreateBot over the control surface")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errChan:
		log.Error().Err(err).Msg("unhandled internal error")
		app.shutdown(context.Background())
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	cancel()
	app.shutdown(shutdownCtx)
	log.Info().Msg("solarb-engine shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// app bundles the process-wide singletons: one control surface, one
// metrics server, one events bus, and the bot registry the control
// surface drives. Per-bot pipeline wiring lives in newBotFactory.
type app struct {
	registry      *engine.BotRegistry
	control       *control.Server
	metricsServer *metrics.Server
	bus           *events.Bus
	embeddedNATS  *events.EmbeddedServer
	store         *store.Store
	pool          *pgxpool.Pool
}

// newApp wires every process-wide collaborator, per §6's external
// interfaces: the control surface, the metrics/dashboard server, and
// (optionally) the cross-process events bus and durable store. Returns
// an error only for a dependency unavailable at startup (exit code 3);
// bad configuration is caught earlier by config.Load's Validate pass.
func newApp(cfg *config.Config) (*app, error) {
	log := config.NewLogger("bootstrap")

	var bus *events.Bus
	var embedded *events.EmbeddedServer
	if cfg.Events.Embed {
		srv, err := events.StartEmbedded(cfg.Events.Host, cfg.Events.Port, 5*time.Second, log)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		embedded = srv
		b, err := events.Connect(events.Config{NATSURL: srv.ClientURL(), Source: "solarb-engine"}, log)
		if err != nil {
			embedded.Shutdown()
			return nil, fmt.Errorf("connect events bus: %w", err)
		}
		bus = b
	} else if cfg.Events.NATSURL != "" {
		b, err := events.Connect(events.Config{NATSURL: cfg.Events.NATSURL, Source: "solarb-engine"}, log)
		if err != nil {
			return nil, fmt.Errorf("connect events bus: %w", err)
		}
		bus = b
	}

	var vaultClient *vault.Client
	if cfg.Vault.Enabled {
		vc, err := vault.NewClient(vault.Config{Address: cfg.Vault.Address, Token: cfg.Vault.Token}, log)
		if err != nil {
			return nil, fmt.Errorf("connect vault: %w", err)
		}
		if err := vc.Health(context.Background()); err != nil {
			return nil, fmt.Errorf("vault health check: %w", err)
		}
		vaultClient = vc
	}

	databaseURL := cfg.Store.DatabaseURL
	if databaseURL == "" && vaultClient != nil {
		if url, err := vaultClient.GetDatabaseURL(context.Background(), cfg.Vault.MountPath, cfg.Vault.SecretPath); err == nil {
			databaseURL = url
		} else {
			log.Debug().Err(err).Msg("no database secret in vault, store stays disabled")
		}
	}

	var st *store.Store
	var pool *pgxpool.Pool
	if databaseURL != "" {
		pgPool, err := store.NewPool(context.Background(), databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect store database: %w", err)
		}
		st = store.New(pgPool, config.NewLogger("store"))
		if err := st.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("migrate store schema: %w", err)
		}
		pool = pgPool
	}

	var archiver *store.Archiver
	if cfg.Store.S3Bucket != "" {
		a, err := store.NewArchiver(context.Background(), cfg.Store.S3Bucket, cfg.Store.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("connect model archiver: %w", err)
		}
		archiver = a
	}

	metricsServer := metrics.NewServer(metricsPort(cfg.Control.MetricsAddr), config.NewLogger("c9_metrics"))

	alertMgr := buildAlertManager(cfg, vaultClient)
	factory := newBotFactory(cfg, bus, metricsServer.Hub(), st, archiver, alertMgr, vaultClient)
	registry := engine.NewBotRegistry(factory)

	var auditPool store.Pool
	if pool != nil {
		auditPool = pool
	}
	auditLogger := audit.NewLogger(auditPool, config.NewLogger("audit"))
	controlServer := control.NewServer(cfg.Control.ListenAddr, registry, config.NewLogger("control")).WithAudit(auditLogger)

	return &app{
		registry:      registry,
		control:       controlServer,
		metricsServer: metricsServer,
		bus:           bus,
		embeddedNATS:  embedded,
		store:         st,
		pool:          pool,
	}, nil
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.registry.StopAllBots(ctx); err != nil {
		log.Error().Err(err).Msg("error stopping bots")
	}
	if err := a.registry.ForceSave(ctx); err != nil {
		log.Error().Err(err).Msg("error saving model snapshots on shutdown")
	}
	a.control.Shutdown()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down metrics server")
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.embeddedNATS != nil {
		a.embeddedNATS.Shutdown()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func metricsPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 9090
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 9090
	}
	return port
}

func buildAlertManager(cfg *config.Config, vaultClient *vault.Client) *alerts.Manager {
	alerters := []alerts.Alerter{alerts.NewLogAlerter(config.NewLogger("alerts"))}

	telegramToken := cfg.Alerts.TelegramBotToken
	if telegramToken == "" && vaultClient != nil {
		if token, err := vaultClient.GetAlertsSecrets(context.Background(), cfg.Vault.MountPath, cfg.Vault.SecretPath); err == nil {
			telegramToken = token
		}
	}
	if telegramToken != "" {
		tg, err := alerts.NewTelegramAlerter(telegramToken, []int64{cfg.Alerts.TelegramChatID}, config.NewLogger("alerts_telegram"))
		if err != nil {
			log.Warn().Err(err).Msg("telegram alerter disabled: invalid configuration")
		} else {
			alerters = append(alerters, tg)
		}
	}
	return alerts.NewManager(config.NewLogger("alerts"), alerters...)
}

// botConfig is the per-bot JSON payload accepted by CreateBot{type,
// config}, per §6's control surface: each bot is one independently
// configurable watched-pair set layered on top of the process-wide
// defaults in config.Config.
type botConfig struct {
	WatchedPairs         [][2]string `json:"watched_pairs"`
	TriangularBaseTokens []string    `json:"triangular_base_tokens"`
	Amount               float64     `json:"amount"`
	PerTickBudget        float64     `json:"per_tick_budget"`
	WorstCaseLoss        float64     `json:"worst_case_loss"`
}

// newBotFactory closes over the process-wide singletons (bus, hub,
// store, archiver, alert manager) and config.Config's defaults, and
// returns an engine.BotFactory that turns one CreateBot payload into a
// fully wired Engine. Discovery receives both WatchedPairs and
// TriangularBaseTokens whatever botType is; botType only decides whether
// an empty WatchedPairs is accepted ("triangular" accepts it). Quotes are
// refreshed only for WatchedPairs, so triangular routes are searched
// among those pairs' quotes.
func newBotFactory(cfg *config.Config, bus *events.Bus, hub *metrics.Hub, st *store.Store, archiver *store.Archiver, alertMgr *alerts.Manager, vaultClient *vault.Client) engine.BotFactory {
	return func(botType string, raw json.RawMessage) (*engine.Engine, error) {
		var bc botConfig
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &bc); err != nil {
				return nil, fmt.Errorf("%w: unparseable bot config: %v", arb.ErrConfiguration, err)
			}
		}
		if len(bc.WatchedPairs) == 0 && botType != "triangular" {
			return nil, fmt.Errorf("%w: bot requires at least one watched pair", arb.ErrConfiguration)
		}
		if err := validateBotConfig(bc); err != nil {
			return nil, err
		}

		registry, err := buildQuoteRegistry(cfg, vaultClient)
		if err != nil {
			return nil, err
		}

		congestion := risk.NewLatencyProxyCongestion(50, 50, 2_000)
		riskCfg := risk.DefaultConfig()
		riskCfg.RiskTolerance = cfg.Risk.RiskTolerance
		riskAssessor := risk.NewAssessor(riskCfg, congestion)

		protectionCfg := protection.DefaultConfig()
		protectionCfg.BaseTip = decimal.NewFromFloat(cfg.Protection.BundleBaseTip)
		protectionCfg.MinBundleSpacing = time.Duration(cfg.Protection.BundleMinSpacingMs) * time.Millisecond
		selector := protection.NewSelector(protectionCfg, time.Now().UnixNano())

		model := decision.NewModule(decision.Config{
			ConfidenceThreshold:   cfg.Learning.ConfidenceThreshold,
			MaxConcurrent:         cfg.Pipeline.MaxConcurrentExecutions,
			LearningRate:          cfg.Learning.LearningRate,
			LearningCadence:       cfg.Learning.LearningCadence,
			MinTrainingSamples:    cfg.Learning.MinTrainingSamples,
			FallbackMinConfidence: 0.9,
			MinProfitThreshold:    decimal.NewFromFloat(cfg.Profit.MinProfitAbsolute),
		}, arb.LearnedModel{})

		learnerCfg := learning.DefaultConfig()
		learnerCfg.LearningCadence = cfg.Learning.LearningCadence
		learner := learning.NewLearner(learnerCfg, model, alertMgr, config.NewLogger("c8_learner"))
		go learner.Run(context.Background())

		paper := execution.NewPaperEndpoints(execution.DefaultPaperConfig(), time.Now().UnixNano(), config.NewLogger("c6_execution"))
		execCfg := execution.DefaultConfig()
		execEngine := execution.NewEngine(execCfg, paper, paper, paper, paper, paper, time.Sleep, time.Now().UnixNano(), config.NewLogger("c6_execution"))

		history := quote.NewRollingHistory(cfg.Learning.MinTrainingSamples)

		deps := engine.Deps{
			Quotes: registry,
			Discovery: discovery.Config{
				MinProfitBps:               cfg.Profit.MinProfitBps,
				MinProfitAbsolute:          decimal.NewFromFloat(cfg.Profit.MinProfitAbsolute),
				MaxCandidatesPerTick:       cfg.Pipeline.MaxCandidatesPerTick,
				TriangularBaseTokens:       bc.TriangularBaseTokens,
				WatchedPairs:               bc.WatchedPairs,
				MinPlausibleProtectionCost: decimal.NewFromFloat(0.00001),
			},
			Scoring:    scoring.DefaultConfig(),
			History:    learner,
			Risk:       riskAssessor,
			Protection: selector,
			Features:   decision.DefaultFeatureConfig(),
			PriceHist:  history,
			Sentiment:  decision.NeutralSentiment{},
			Decision:   model,
			Execution:  execEngine,
			Learner:    learner,
			Store:      st,
			Bus:        bus,
			Hub:        hub,
			Clock:      clock.NewRealClock(),
		}
		if archiver != nil {
			deps.Archiver = archiver
		}

		engCfg := engine.Config{
			TickPeriod:              cfg.Pipeline.TickPeriod(),
			MaxCandidatesPerTick:    cfg.Pipeline.MaxCandidatesPerTick,
			MaxConcurrentExecutions: cfg.Pipeline.MaxConcurrentExecutions,
			Amount:                  decimalOr(bc.Amount, 1),
			PerTickBudget:           decimalOr(bc.PerTickBudget, 1000),
			WorstCaseLoss:           decimalOr(bc.WorstCaseLoss, 10),
			ConsistencyWindow:       time.Duration(cfg.Cache.ConsistencyWindowMs) * time.Millisecond,
			ExecutionDeadline:       30 * time.Second,
			HousekeepingCron:        "@every 30s",
		}

		return engine.New(botType, engCfg, deps, config.NewLogger("engine")), nil
	}
}

// validateBotConfig rejects a malformed CreateBot payload before any
// provider client or pipeline component is constructed. StartBot's config
// is not used, so it is not validated.
func validateBotConfig(bc botConfig) error {
	v := validation.NewBotConfigValidator()
	for i, pair := range bc.WatchedPairs {
		v.ValidateMintPair(i, pair[0], pair[1])
	}
	for i, token := range bc.TriangularBaseTokens {
		v.ValidateBaseToken(i, token)
	}
	v.ValidateAmount(bc.Amount)
	v.ValidatePerTickBudget(bc.PerTickBudget)
	v.ValidateWorstCaseLoss(bc.WorstCaseLoss)
	if v.HasErrors() {
		return fmt.Errorf("%w: %v", arb.ErrConfiguration, v.Errors())
	}
	return nil
}

func decimalOr(v float64, fallback float64) decimal.Decimal {
	if v == 0 {
		return decimal.NewFromFloat(fallback)
	}
	return decimal.NewFromFloat(v)
}

// buildQuoteRegistry wires one quote.Registry per bot from cfg.Providers,
// dispatching each provider's declared family (§6.2) to the matching
// ProviderClient adapter.
func buildQuoteRegistry(cfg *config.Config, vaultClient *vault.Client) (*quote.Registry, error) {
	cache := quote.NewCache([]string{"SOL", "USDC", "USDT"}, time.Duration(cfg.Cache.QuoteTTLMajorMs)*time.Millisecond, time.Duration(cfg.Cache.QuoteTTLOtherMs)*time.Millisecond)
	registry := quote.NewRegistry(cache, clock.NewRealClock())

	for name, p := range cfg.Providers {
		client, err := buildProviderClient(cfg, name, p, vaultClient)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		registry.Register(quote.ActorConfig{
			Name:              name,
			Client:            client,
			RequestsPerSecond: p.RateLimits.RequestsPerSecond,
			Burst:             p.RateLimits.Burst,
			MaxConcurrent:     p.MaxConcurrent,
			BaseDelay:         time.Duration(p.RetryPolicy.BaseDelayMs) * time.Millisecond,
			ExponentialFactor: p.RetryPolicy.ExponentialFactor,
			JitterRangeMs:     p.RetryPolicy.JitterRangeMs,
			MaxRetries:        p.RetryPolicy.MaxRetries,
			DegradeAfter:      p.RetryPolicy.DegradeAfter,
			Cooldown:          time.Duration(p.RetryPolicy.CooldownMs) * time.Millisecond,
			FallbackChain:     p.FallbackChain,
			Timeout:           time.Duration(p.TimeoutMs) * time.Millisecond,
		})
	}
	return registry, nil
}

// providerSecrets resolves a provider's API credentials from Vault first
// (when enabled), falling back to the APIKeyEnv environment variable for
// providers that don't have a vault secret configured.
func providerSecrets(cfg *config.Config, name string, p config.ProviderConfig, vaultClient *vault.Client) vault.ProviderSecrets {
	if vaultClient != nil {
		if secrets, err := vaultClient.GetProviderSecrets(context.Background(), cfg.Vault.MountPath, cfg.Vault.SecretPath, name); err == nil && secrets.APIKey != "" {
			return secrets
		}
	}
	return vault.ProviderSecrets{APIKey: os.Getenv(p.APIKeyEnv)}
}

func buildProviderClient(cfg *config.Config, name string, p config.ProviderConfig, vaultClient *vault.Client) (quote.ProviderClient, error) {
	switch p.Family {
	case "aggregator":
		return quote.NewAggregatorClient(p.Endpoint), nil
	case "spot":
		secrets := providerSecrets(cfg, name, p, vaultClient)
		return quote.NewBinanceSpotClient(secrets.APIKey, secrets.APISecret, map[[2]string]string{
			{"SOL", "USDC"}: "SOLUSDC",
		}), nil
	case "pool_scanner":
		return quote.NewPoolScannerClient(p.Endpoint, map[[2]string]string{}), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider family %q", arb.ErrConfiguration, p.Family)
	}
}
