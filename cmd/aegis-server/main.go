package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samijaber1/aegis-compliance/internal/adapter/inference"
	"github.com/samijaber1/aegis-compliance/internal/adapter/prometheus"
	"github.com/samijaber1/aegis-compliance/internal/adapter/synthetic"
	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/api"
	"github.com/samijaber1/aegis-compliance/internal/compliance"
	"github.com/samijaber1/aegis-compliance/internal/config"
	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/publish"
	"github.com/samijaber1/aegis-compliance/internal/scheduler"
	"github.com/samijaber1/aegis-compliance/internal/storage/sqlstore"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("main")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Int("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Str("classifier", cfg.ClassifierType).
		Str("publish", cfg.Publish.Type).
		Msg("starting aegis compliance server")

	// Threshold catalog
	catalog := threshold.Default()
	if cfg.CatalogFile != "" {
		catalog, err = threshold.LoadFile(cfg.CatalogFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("failed to load threshold catalog")
		}
	}
	log.Info().Int("thresholds", catalog.Len()).Msg("threshold catalog loaded")

	// Record store
	var store *sqlstore.Store
	switch cfg.StoreDriver {
	case "sqlite":
		store, err = sqlstore.OpenSQLite(cfg.StoreDSN)
	case "postgres":
		store, err = sqlstore.OpenPostgres(cfg.StoreDSN)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer store.Close()

	alerts := alert.NewLog(alert.DefaultCapacity)

	// Alert mirroring
	var forwarder *publish.Forwarder
	if pub := newPublisher(cfg); pub != nil {
		forwarder = publish.NewForwarder(pub, cfg.Publish.TopicPrefix, 0)
		alerts.AddNotifier(forwarder)
	}

	evaluator := compliance.NewEvaluator(catalog, alerts)

	// Classifier
	var classifier scheduler.Classifier
	switch cfg.ClassifierType {
	case "http":
		icfg := inference.DefaultConfig(cfg.ClassifierURL)
		icfg.Timeout = cfg.ClassifierTimeout
		classifier = inference.NewClient(icfg)
		log.Info().Str("url", cfg.ClassifierURL).Msg("using inference service classifier")

	case "synthetic":
		sc := synthetic.NewClassifier()
		if cfg.SyntheticFixtures != "" {
			if err := sc.LoadFixtures(cfg.SyntheticFixtures); err != nil {
				log.Fatal().Err(err).Msg("failed to load synthetic fixtures")
			}
		}
		classifier = sc
		log.Info().Str("fixtures", cfg.SyntheticFixtures).Msg("using synthetic classifier")
	}

	deps := scheduler.Deps{
		Store:      store,
		Classifier: classifier,
		Alerts:     alerts,
		Recorder:   evaluator,
		Catalog:    catalog,
	}
	if cfg.PrometheusURL != "" {
		deps.Source = prometheus.NewSource(prometheus.DefaultConfig(cfg.PrometheusURL))
		log.Info().Str("url", cfg.PrometheusURL).Msg("catalog scrapes enabled")
	}

	sched := scheduler.NewScheduler(scheduler.Config{
		Interval:               cfg.Scheduler.Interval,
		Backoff:                cfg.Scheduler.Backoff,
		CallTimeout:            cfg.Scheduler.CallTimeout,
		BatchSize:              cfg.Scheduler.BatchSize,
		Workers:                cfg.Scheduler.Workers,
		StaleAfter:             cfg.Scheduler.StaleAfter,
		TelemetryRetention:     cfg.Retention.Telemetry,
		ResolvedAlertRetention: cfg.Retention.ResolvedAlerts,
		DetectionThreshold:     cfg.Detection.Threshold,
		HighConfidence:         cfg.Detection.HighConfidence,
	}, deps)

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(evaluator, store, sched, addr)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("server error")

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("received signal")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down server")
	}

	if err := sched.Stop(cfg.Scheduler.StopTimeout); err != nil {
		log.Error().Err(err).Msg("error stopping scheduler")
	}

	if forwarder != nil {
		if err := forwarder.Close(5 * time.Second); err != nil {
			log.Error().Err(err).Msg("error closing publisher")
		}
	}

	log.Info().Msg("shutdown complete")
}

// newPublisher builds the configured alert transport. A transport that
// cannot connect is logged and skipped; alerts stay in memory and the store.
func newPublisher(cfg config.Config) publish.Publisher {
	log := logger.WithComponent("main")

	switch cfg.Publish.Type {
	case "kafka":
		p, err := publish.NewKafkaPublisher(publish.DefaultKafkaConfig(cfg.Publish.KafkaBrokers...))
		if err != nil {
			log.Error().Err(err).Msg("kafka publisher disabled")
			return nil
		}
		log.Info().Strs("brokers", cfg.Publish.KafkaBrokers).Msg("mirroring alerts to kafka")
		return p

	case "mqtt":
		mcfg := publish.DefaultMQTTConfig(cfg.Publish.MQTTBroker)
		mcfg.ClientID = cfg.Publish.MQTTClientID
		p, err := publish.NewMQTTPublisher(mcfg)
		if err != nil {
			log.Error().Err(err).Msg("mqtt publisher disabled")
			return nil
		}
		log.Info().Str("broker", cfg.Publish.MQTTBroker).Msg("mirroring alerts to mqtt")
		return p
	}

	return nil
}
