package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

//go:embed municipality.yaml
var defaultMunicipality []byte

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Environment     string

	// Snapshot cache and source fan-out.
	CacheTTL      time.Duration
	CacheCoalesce bool
	SourceTimeout time.Duration

	// Language model configuration. Both keys are optional.
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	ModelTimeout time.Duration
	ModelRPS     float64
	ModelBurst   int

	BrightDataAPIKey string

	// Snapshot publishing (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string

	Municipality Municipality
}

// Municipality describes the one city the service reports on.
type Municipality struct {
	Name            string       `yaml:"name"`
	Latitude        float64      `yaml:"latitude"`
	Longitude       float64      `yaml:"longitude"`
	Timezone        string       `yaml:"timezone"`
	FloodBBox       string       `yaml:"flood_bbox"`
	SeismicRadiusKm float64      `yaml:"seismic_radius_km"`
	CitySite        string       `yaml:"city_site"`
	SocrataDomain   string       `yaml:"socrata_domain"`
	NewsTargets     []NewsTarget `yaml:"news_targets"`
	NewsKeywords    []string     `yaml:"news_keywords"`
}

// NewsTarget is a local news front page scraped for headlines.
type NewsTarget struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Production reports whether APP_ENV selects production behaviour, which
// hides error detail from API responses.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ModelConfigured reports whether any language model credential is set.
func (c *Config) ModelConfigured() bool {
	return c.GeminiAPIKey != "" || c.OpenAIAPIKey != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := parsePositiveDuration("SOURCE_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	modelTimeout, err := parsePositiveDuration("MODEL_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}

	modelRPS, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MODEL_RPS", "1"), 64)
	if err != nil || modelRPS <= 0 {
		return nil, errors.New("invalid MODEL_RPS: must be a positive number")
	}
	modelBurst, err := strconv.Atoi(sharedcfg.EnvOrDefault("MODEL_BURST", "3"))
	if err != nil || modelBurst < 1 {
		return nil, errors.New("invalid MODEL_BURST: must be at least 1")
	}

	municipality, err := loadMunicipality(os.Getenv("MUNICIPALITY_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		Environment:     sharedcfg.EnvOrDefault("APP_ENV", "development"),

		CacheTTL:      cacheTTL,
		CacheCoalesce: os.Getenv("CACHE_COALESCE") != "false",
		SourceTimeout: sourceTimeout,

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ModelTimeout: modelTimeout,
		ModelRPS:     modelRPS,
		ModelBurst:   modelBurst,

		BrightDataAPIKey: os.Getenv("BRIGHT_DATA_API_KEY"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "civic-risk-snapshots"),

		Municipality: municipality,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

// loadMunicipality parses the profile at path, or the embedded default when
// path is empty.
func loadMunicipality(path string) (Municipality, error) {
	raw := defaultMunicipality
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Municipality{}, fmt.Errorf("read MUNICIPALITY_FILE: %w", err)
		}
		raw = b
	}

	var m Municipality
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Municipality{}, fmt.Errorf("parse municipality profile: %w", err)
	}
	if m.Name == "" {
		return Municipality{}, errors.New("municipality profile: name is required")
	}
	if m.Latitude < -90 || m.Latitude > 90 || m.Longitude < -180 || m.Longitude > 180 {
		return Municipality{}, errors.New("municipality profile: coordinates out of range")
	}
	if m.Timezone == "" {
		m.Timezone = "UTC"
	}
	if m.SeismicRadiusKm <= 0 {
		m.SeismicRadiusKm = 300
	}
	return m, nil
}
