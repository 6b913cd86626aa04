package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Host string
	Port int

	// Logging
	LogLevel  string
	LogPretty bool

	// Threshold catalog file; empty uses the built-in catalog
	CatalogFile string

	// Record store
	StoreDriver string // "sqlite" or "postgres"
	StoreDSN    string

	Scheduler SchedulerConfig
	Retention RetentionConfig
	Detection DetectionConfig

	// Classifier settings
	ClassifierType    string // "synthetic" or "http"
	ClassifierURL     string
	ClassifierTimeout time.Duration
	SyntheticFixtures string

	// Scrape source; empty disables the scrape pass
	PrometheusURL string

	Publish PublishConfig

	// Operational settings
	GracefulShutdownTimeout time.Duration
}

// SchedulerConfig holds reconciliation loop settings
type SchedulerConfig struct {
	Interval    time.Duration
	Backoff     time.Duration
	CallTimeout time.Duration
	BatchSize   int
	Workers     int
	StaleAfter  time.Duration
	StopTimeout time.Duration
}

// RetentionConfig holds purge windows
type RetentionConfig struct {
	Telemetry      time.Duration
	ResolvedAlerts time.Duration
}

// DetectionConfig holds the confidence thresholds for detection alerts
type DetectionConfig struct {
	Threshold      float64
	HighConfidence float64
}

// PublishConfig selects where alerts are mirrored
type PublishConfig struct {
	Type         string // "none", "kafka" or "mqtt"
	KafkaBrokers []string
	MQTTBroker   string
	MQTTClientID string
	TopicPrefix  string
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.StoreDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store driver must be 'sqlite' or 'postgres'")
	}
	if c.StoreDSN == "" {
		return fmt.Errorf("store dsn is required")
	}

	switch c.ClassifierType {
	case "synthetic":
	case "http":
		if c.ClassifierURL == "" {
			return fmt.Errorf("classifier URL required when classifier type is 'http'")
		}
	default:
		return fmt.Errorf("classifier type must be 'synthetic' or 'http'")
	}

	switch c.Publish.Type {
	case "none", "":
	case "kafka":
		if len(c.Publish.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers required when publish type is 'kafka'")
		}
	case "mqtt":
		if c.Publish.MQTTBroker == "" {
			return fmt.Errorf("mqtt broker required when publish type is 'mqtt'")
		}
	default:
		return fmt.Errorf("publish type must be 'none', 'kafka' or 'mqtt'")
	}

	s := c.Scheduler
	if s.Interval <= 0 || s.Backoff <= 0 || s.CallTimeout <= 0 || s.StaleAfter <= 0 || s.StopTimeout <= 0 {
		return fmt.Errorf("scheduler durations must be positive")
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", s.BatchSize)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", s.Workers)
	}

	if c.Retention.Telemetry <= 0 || c.Retention.ResolvedAlerts <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}

	d := c.Detection
	// zero is the scheduler's "use the default" value, so it cannot be configured
	if d.Threshold <= 0 || d.Threshold > 1 || d.HighConfidence <= 0 || d.HighConfidence > 1 {
		return fmt.Errorf("detection thresholds must be within (0, 1]")
	}
	if d.HighConfidence < d.Threshold {
		return fmt.Errorf("high confidence %g below detection threshold %g", d.HighConfidence, d.Threshold)
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		LogLevel:          "info",
		StoreDriver:       "sqlite",
		StoreDSN:          "aegis.db",
		ClassifierType:    "synthetic",
		ClassifierTimeout: 5 * time.Second,
		Scheduler: SchedulerConfig{
			Interval:    10 * time.Second,
			Backoff:     5 * time.Second,
			CallTimeout: 5 * time.Second,
			BatchSize:   5,
			Workers:     1,
			StaleAfter:  time.Hour,
			StopTimeout: 5 * time.Second,
		},
		Retention: RetentionConfig{
			Telemetry:      30 * 24 * time.Hour,
			ResolvedAlerts: 7 * 24 * time.Hour,
		},
		Detection: DetectionConfig{
			Threshold:      0.7,
			HighConfidence: 0.9,
		},
		Publish: PublishConfig{
			Type:         "none",
			MQTTClientID: "aegis-compliance",
			TopicPrefix:  "aegis",
		},
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// envPrefix is prepended to every environment override, e.g. AEGIS_SERVER_PORT
const envPrefix = "AEGIS"

// Load builds the configuration from defaults, an optional config file,
// AEGIS_* environment variables and command line flags, in increasing
// order of precedence.
func Load(args []string) (Config, error) {
	def := DefaultConfig()

	fs := pflag.NewFlagSet("aegis-server", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to a YAML or TOML config file")
	fs.String("host", def.Host, "HTTP server host")
	fs.Int("port", def.Port, "HTTP server port")
	fs.String("log-level", def.LogLevel, "Log level (debug|info|warn|error)")
	fs.Bool("log-pretty", def.LogPretty, "Human readable console logs")
	fs.String("catalog", def.CatalogFile, "Threshold catalog YAML file (built-in catalog if empty)")
	fs.String("store-driver", def.StoreDriver, "Record store driver (sqlite|postgres)")
	fs.String("store-dsn", def.StoreDSN, "Record store DSN or SQLite path")
	fs.String("interval", FormatDuration(def.Scheduler.Interval), "Reconciliation interval")
	fs.String("classifier", def.ClassifierType, "Classifier type (synthetic|http)")
	fs.String("classifier-url", def.ClassifierURL, "Inference service URL")
	fs.String("synthetic-fixtures", def.SyntheticFixtures, "JSON fixture file for the synthetic classifier")
	fs.String("prometheus-url", def.PrometheusURL, "Prometheus URL for catalog scrapes")
	fs.String("publish", def.Publish.Type, "Alert publish transport (none|kafka|mqtt)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v, def)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("aegis")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/aegis")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	flagKeys := map[string]string{
		"host":               "server.host",
		"port":               "server.port",
		"log-level":          "log.level",
		"log-pretty":         "log.pretty",
		"catalog":            "catalog.file",
		"store-driver":       "store.driver",
		"store-dsn":          "store.dsn",
		"interval":           "scheduler.interval",
		"classifier":         "classifier.type",
		"classifier-url":     "classifier.url",
		"synthetic-fixtures": "classifier.fixtures",
		"prometheus-url":     "prometheus.url",
		"publish":            "publish.type",
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("log.pretty", def.LogPretty)
	v.SetDefault("catalog.file", def.CatalogFile)
	v.SetDefault("store.driver", def.StoreDriver)
	v.SetDefault("store.dsn", def.StoreDSN)
	v.SetDefault("scheduler.interval", FormatDuration(def.Scheduler.Interval))
	v.SetDefault("scheduler.backoff", FormatDuration(def.Scheduler.Backoff))
	v.SetDefault("scheduler.call_timeout", FormatDuration(def.Scheduler.CallTimeout))
	v.SetDefault("scheduler.batch_size", def.Scheduler.BatchSize)
	v.SetDefault("scheduler.workers", def.Scheduler.Workers)
	v.SetDefault("scheduler.stale_after", FormatDuration(def.Scheduler.StaleAfter))
	v.SetDefault("scheduler.stop_timeout", FormatDuration(def.Scheduler.StopTimeout))
	v.SetDefault("retention.telemetry", FormatDuration(def.Retention.Telemetry))
	v.SetDefault("retention.resolved_alerts", FormatDuration(def.Retention.ResolvedAlerts))
	v.SetDefault("detection.threshold", def.Detection.Threshold)
	v.SetDefault("detection.high_confidence", def.Detection.HighConfidence)
	v.SetDefault("classifier.type", def.ClassifierType)
	v.SetDefault("classifier.url", def.ClassifierURL)
	v.SetDefault("classifier.timeout", FormatDuration(def.ClassifierTimeout))
	v.SetDefault("classifier.fixtures", def.SyntheticFixtures)
	v.SetDefault("prometheus.url", def.PrometheusURL)
	v.SetDefault("publish.type", def.Publish.Type)
	v.SetDefault("publish.kafka.brokers", def.Publish.KafkaBrokers)
	v.SetDefault("publish.mqtt.broker", def.Publish.MQTTBroker)
	v.SetDefault("publish.mqtt.client_id", def.Publish.MQTTClientID)
	v.SetDefault("publish.topic_prefix", def.Publish.TopicPrefix)
	v.SetDefault("shutdown_timeout", FormatDuration(def.GracefulShutdownTimeout))
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Host:              v.GetString("server.host"),
		Port:              v.GetInt("server.port"),
		LogLevel:          v.GetString("log.level"),
		LogPretty:         v.GetBool("log.pretty"),
		CatalogFile:       v.GetString("catalog.file"),
		StoreDriver:       v.GetString("store.driver"),
		StoreDSN:          v.GetString("store.dsn"),
		ClassifierType:    v.GetString("classifier.type"),
		ClassifierURL:     v.GetString("classifier.url"),
		SyntheticFixtures: v.GetString("classifier.fixtures"),
		PrometheusURL:     v.GetString("prometheus.url"),
		Detection: DetectionConfig{
			Threshold:      v.GetFloat64("detection.threshold"),
			HighConfidence: v.GetFloat64("detection.high_confidence"),
		},
		Publish: PublishConfig{
			Type:         v.GetString("publish.type"),
			KafkaBrokers: splitList(v.GetStringSlice("publish.kafka.brokers")),
			MQTTBroker:   v.GetString("publish.mqtt.broker"),
			MQTTClientID: v.GetString("publish.mqtt.client_id"),
			TopicPrefix:  v.GetString("publish.topic_prefix"),
		},
	}
	cfg.Scheduler.BatchSize = v.GetInt("scheduler.batch_size")
	cfg.Scheduler.Workers = v.GetInt("scheduler.workers")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"scheduler.interval", &cfg.Scheduler.Interval},
		{"scheduler.backoff", &cfg.Scheduler.Backoff},
		{"scheduler.call_timeout", &cfg.Scheduler.CallTimeout},
		{"scheduler.stale_after", &cfg.Scheduler.StaleAfter},
		{"scheduler.stop_timeout", &cfg.Scheduler.StopTimeout},
		{"retention.telemetry", &cfg.Retention.Telemetry},
		{"retention.resolved_alerts", &cfg.Retention.ResolvedAlerts},
		{"classifier.timeout", &cfg.ClassifierTimeout},
		{"shutdown_timeout", &cfg.GracefulShutdownTimeout},
	}
	for _, d := range durations {
		parsed, err := ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// splitList accepts both list values and a single comma separated string,
// which is how list values arrive from the environment
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
