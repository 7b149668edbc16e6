package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/oraculo/config"
	"github.com/alejandrodnm/oraculo/internal/adapters/notify"
	"github.com/alejandrodnm/oraculo/internal/adapters/storage"
	"github.com/alejandrodnm/oraculo/internal/adapters/venues"
	"github.com/alejandrodnm/oraculo/internal/arbitrage"
	"github.com/alejandrodnm/oraculo/internal/cache"
	"github.com/alejandrodnm/oraculo/internal/calibration"
	"github.com/alejandrodnm/oraculo/internal/consensus"
	"github.com/alejandrodnm/oraculo/internal/decision"
	"github.com/alejandrodnm/oraculo/internal/matching"
	"github.com/alejandrodnm/oraculo/internal/oracle"
	"github.com/alejandrodnm/oraculo/internal/ports"
	"github.com/alejandrodnm/oraculo/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one heartbeat cycle and exit")
	dryRun := flag.Bool("dry-run", false, "use local fixtures instead of real venues")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	report := flag.Bool("report", false, "print the calibration report and exit")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *dryRun {
		cfg = config.Default()
		cfg.Storage.DSN = ":memory:"
	} else {
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "err", err, "path", *configPath)
			os.Exit(1)
		}
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("oraculo starting",
		"config", *configPath,
		"tick", cfg.Tick(),
		"venues", len(cfg.Venues),
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ledger := calibration.New(calibration.Config{
		WellCalibrated:   cfg.Calibration.WellCalibrated,
		PoorlyCalibrated: cfg.Calibration.PoorlyCalibrated,
		MultiplierFloor:  cfg.Calibration.MultiplierFloor,
	}, store)
	if err := ledger.Load(ctx); err != nil {
		slog.Warn("failed to load calibration history", "err", err)
	}

	notifier := notify.NewConsole(*table)

	if *report {
		if err := notifier.NotifyCalibration(ctx, ledger.Aggregate(), ledger.Multiplier()); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	scorer := matching.NewScorer(matching.NewTable(), matching.Config{
		CandidateThreshold:    cfg.Matching.CandidateThreshold,
		EntityBoost:           matching.DefaultConfig().EntityBoost,
		EntityMismatchPenalty: matching.DefaultConfig().EntityMismatchPenalty,
	})

	detector := arbitrage.New(arbitrage.Config{
		MinSpread:        cfg.Arbitrage.MinSpread,
		MinVolume:        cfg.Arbitrage.MinVolumeUSD,
		MaxOpportunities: cfg.Arbitrage.MaxOpportunities,
		ClusterThreshold: cfg.Matching.ClusterThreshold,
		VenueFees:        cfg.VenueFees(),
	}, scorer)

	aggregator := consensus.New(consensus.Config{
		Reliability:        cfg.VenueReliability(),
		DefaultReliability: cfg.Consensus.DefaultReliability,
		MinSources:         cfg.Consensus.MinSources,
	})

	decisionCfg := decision.DefaultConfig()
	decisionCfg.ExecuteThreshold = cfg.Decision.ExecuteThreshold
	decisionCfg.WatchThreshold = cfg.Decision.WatchThreshold
	engine := decision.New(decisionCfg)

	providers, sources := buildProviders(cfg, *dryRun)

	var resolver *oracle.Resolver
	if len(sources) > 0 {
		resolver = oracle.New(oracle.Config{
			Timeout:        time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
			AgreeTolerance: cfg.Oracle.AgreeTolerance,
		}, sources...)
	}

	schedCfg := scheduler.Config{
		Tick:             cfg.Tick(),
		SnapshotEvery:    cfg.SnapshotEvery(),
		ScanEvery:        cfg.ScanEvery(),
		WhaleEvery:       cfg.WhaleEvery(),
		CalibrationEvery: cfg.CalibrationEvery(),
		VenueTimeout:     cfg.VenueTimeout(),
		ClusterThreshold: cfg.Matching.ClusterThreshold,
		Query:            cfg.Scheduler.Query,
		Assets:           cfg.Oracle.Assets,
		Once:             *once || *dryRun,
	}

	s := scheduler.New(schedCfg, scheduler.Deps{
		Venues:     providers,
		Scorer:     scorer,
		Detector:   detector,
		Aggregator: aggregator,
		Engine:     engine,
		Ledger:     ledger,
		Oracle:     resolver,
		State:      store,
		Audit:      store,
		Notifier:   notifier,
		Cache:      cache.NewMarkets(cfg.CacheTTL()),
	})

	if err := s.Run(ctx); err != nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("oraculo stopped cleanly")
}

// buildProviders construye las venues y fuentes de precios: fixtures locales
// en dry-run, clientes HTTP reales en el resto de modos.
func buildProviders(cfg *config.Config, dryRun bool) ([]ports.VenueProvider, []ports.PriceSource) {
	if dryRun {
		var providers []ports.VenueProvider
		for _, p := range venues.DryRunProviders() {
			providers = append(providers, p)
		}
		sources := []ports.PriceSource{
			venues.NewStaticPriceSource("fixture-a", map[string]float64{"BTC": 64100}),
			venues.NewStaticPriceSource("fixture-b", map[string]float64{"BTC": 64150}),
			venues.NewStaticPriceSource("fixture-c", map[string]float64{"BTC": 64120}),
		}
		return providers, sources
	}

	var providers []ports.VenueProvider
	for _, v := range cfg.Venues {
		providers = append(providers, venues.NewProvider(venues.Options{
			Venue:      v.Name,
			BaseURL:    v.BaseURL,
			Timeout:    time.Duration(v.TimeoutSeconds) * time.Second,
			RatePerSec: v.RatePerSec,
		}))
	}

	var sources []ports.PriceSource
	for _, src := range cfg.Oracle.Sources {
		sources = append(sources, venues.NewHTTPPriceSource(src.Name, src.BaseURL, 0))
	}
	return providers, sources
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
