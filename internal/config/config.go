package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers       []string
	KafkaReadingsTopic string
	KafkaAlertsTopic   string
	KafkaGroupID       string
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	BufferCapacity     int

	// Evaluation engine.
	EvalInterval       time.Duration
	HistorySize        int
	MinHistory         int
	MinForecastHistory int
	QuorumFraction     float64
	ModelWeights       map[string]float64
	CorrelationWindow  time.Duration
	Severity           domain.SeverityPolicy

	// Alert lifecycle.
	ResolutionTimeout time.Duration
	NotifyOnResolve   bool
	NotifyQueueSize   int
	PlaybookFile      string
	AlertDBPath       string
	AlertRetention    time.Duration
	PruneSchedule     string

	// NATS fan-out; disabled when NATSURL is empty.
	NATSURL     string
	NATSSubject string

	// Mapbox zone resolution.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// DefaultModelWeights is the MODEL_WEIGHTS default.
const DefaultModelWeights = "iforest=0.25,lof=0.20,ecod=0.20,holt=0.20,autoregressive=0.15"

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReadingsTopic: envOrDefault("KAFKA_READINGS_TOPIC", "sensor-readings"),
		KafkaAlertsTopic:   envOrDefault("KAFKA_ALERTS_TOPIC", "outbreak-alerts"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "sentinel-engine"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", "10s"),

		BatchSize:          p.intRange("BATCH_SIZE", 50, 1, 1000),
		BatchFlushInterval: p.duration("BATCH_FLUSH_INTERVAL", "500ms"),
		BufferCapacity:     p.intRange("BUFFER_CAPACITY", 100_000, 1, 10_000_000),

		EvalInterval:       p.duration("EVAL_INTERVAL", "1m"),
		HistorySize:        p.intRange("HISTORY_SIZE", 50, 2, 10000),
		MinHistory:         p.intRange("MIN_HISTORY", 10, 2, 10000),
		MinForecastHistory: p.intRange("MIN_FORECAST_HISTORY", 5, 3, 10000),
		QuorumFraction:     p.fraction("QUORUM_FRACTION", 0.6),
		ModelWeights:       p.weights("MODEL_WEIGHTS", DefaultModelWeights),
		CorrelationWindow:  p.duration("CORRELATION_WINDOW", "10m"),
		Severity: domain.SeverityPolicy{
			Critical:           p.threshold("SEVERITY_CRITICAL", 90),
			High:               p.threshold("SEVERITY_HIGH", 75),
			Medium:             p.threshold("SEVERITY_MEDIUM", 50),
			CorroboratingTypes: p.intRange("SEVERITY_CORROBORATING_TYPES", 2, 1, 10),
		},

		ResolutionTimeout: p.duration("RESOLUTION_TIMEOUT", "30m"),
		NotifyOnResolve:   p.boolean("NOTIFY_ON_RESOLVE", false),
		NotifyQueueSize:   p.intRange("NOTIFY_QUEUE_SIZE", 256, 1, 1_000_000),
		PlaybookFile:      os.Getenv("PLAYBOOK_FILE"),
		AlertDBPath:       os.Getenv("ALERT_DB_PATH"),
		AlertRetention:    p.duration("ALERT_RETENTION", "168h"),
		PruneSchedule:     envOrDefault("PRUNE_SCHEDULE", "@hourly"),

		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: envOrDefault("NATS_SUBJECT", "sentinel.alerts"),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   p.duration("MAPBOX_TIMEOUT", "5s"),
		MapboxCacheSize: parseMapboxCacheSize(),
	}
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return domain.ConfigErrorf("KAFKA_BROKERS", "is required")
	}
	if c.KafkaReadingsTopic == "" {
		return domain.ConfigErrorf("KAFKA_READINGS_TOPIC", "is required")
	}
	if c.KafkaAlertsTopic == "" {
		return domain.ConfigErrorf("KAFKA_ALERTS_TOPIC", "is required")
	}
	if c.HistorySize < c.MinHistory {
		return domain.ConfigErrorf("HISTORY_SIZE", "%d is smaller than MIN_HISTORY %d", c.HistorySize, c.MinHistory)
	}
	if err := c.Severity.Validate(); err != nil {
		return err
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return domain.ConfigErrorf("MAPBOX_TOKEN", "MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return domain.ConfigErrorf("NATS_SUBJECT", "is required when NATS_URL is set")
	}
	return nil
}

// parser records the first parse failure so Load can read every variable
// in one pass and still report the offending name.
type parser struct {
	err error
}

func (p *parser) fail(name, format string, args ...any) {
	if p.err == nil {
		p.err = domain.ConfigErrorf(name, format, args...)
	}
}

func (p *parser) duration(name, def string) time.Duration {
	s := envOrDefault(name, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(name, "must be a positive duration, got %q", s)
		return 0
	}
	return d
}

func (p *parser) intRange(name string, def, lo, hi int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		p.fail(name, "must be an integer in [%d, %d], got %q", lo, hi, s)
		return def
	}
	return n
}

func (p *parser) fraction(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f <= 0 || f > 1 {
		p.fail(name, "must be in (0, 1], got %q", s)
		return def
	}
	return f
}

func (p *parser) threshold(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 100 {
		p.fail(name, "must be in [0, 100], got %q", s)
		return def
	}
	return f
}

func (p *parser) boolean(name string, def bool) bool {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(name, "must be a boolean, got %q", s)
		return def
	}
	return b
}

// weights parses "name=weight,name=weight". Sum and model names are checked
// by the model bank, which owns the registry.
func (p *parser) weights(name, def string) map[string]float64 {
	s := envOrDefault(name, def)
	out := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			p.fail(name, "expected name=weight, got %q", pair)
			return nil
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			p.fail(name, "weight for %q is not a number", strings.TrimSpace(k))
			return nil
		}
		out[strings.TrimSpace(k)] = w
	}
	if len(out) == 0 {
		p.fail(name, "at least one model is required")
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
