// Package config loads and validates the process-wide configuration
// recognized by the core (spec §6). Configuration is read once at
// startup and is immutable thereafter; nothing in this package is
// safe — or needed — to mutate concurrently after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sharederrors "github.com/adinsight/adinsight/pkg/shared/errors"
	"gopkg.in/yaml.v3"
)

// Duration unmarshals a Go duration string ("30s", "5m") from YAML,
// surfacing a parse error instead of silently defaulting.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// AnomalyConfig controls the Anomaly Detector (spec §4.3, §6).
type AnomalyConfig struct {
	ThresholdSigma  float64 `yaml:"threshold_sigma"`
	MinSampleSize   int     `yaml:"min_sample_size"`
	MinSpend        float64 `yaml:"min_spend"`
	MaxPerMetric    int     `yaml:"max_per_metric"`
}

// RCAConfig controls the RCA Orchestrator (spec §4.5, §5).
type RCAConfig struct {
	MaxSteps    int `yaml:"max_steps"`
	Concurrency int `yaml:"concurrency"`
}

// ModelConfig selects and configures the language-model backend (spec
// §4.5, §6), mirroring the teacher's SLMConfig shape (endpoint/model/
// timeout/provider/temperature/max_tokens) generalized to adinsight's
// three providers.
type ModelConfig struct {
	Provider       string   `yaml:"provider"`
	Endpoint       string   `yaml:"endpoint"`
	Model          string   `yaml:"model"`
	Timeout        Duration `yaml:"timeout"`
	RetryCount     int      `yaml:"retry_count"`
	Temperature    float32  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	MaxContextSize int      `yaml:"max_context_size"`
}

// ValidatorConfig controls the Grounded Output Validator (spec §4.7).
type ValidatorConfig struct {
	RetryMax int `yaml:"retry_max"`
}

// SessionConfig controls Session lifetime (spec §3, §6).
type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// ProbeConfig controls per-probe timeouts (spec §5, §6).
type ProbeConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// WarehouseConfig points the Metric Store Adapter at its Postgres
// backing store. The DSN itself is never read from YAML — only from
// the ADINSIGHT_WAREHOUSE_DSN environment variable — so it never ends
// up in a checked-in config file or a log line.
type WarehouseConfig struct {
	MaxOpenConns int      `yaml:"max_open_conns"`
	CacheTTL     Duration `yaml:"cache_ttl"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotifyConfig controls the best-effort Slack notifier.
type NotifyConfig struct {
	SlackChannel string `yaml:"slack_channel"`
}

// Config is the root, process-wide configuration object.
type Config struct {
	Anomaly   AnomalyConfig   `yaml:"anomaly"`
	RCA       RCAConfig       `yaml:"rca"`
	Model     ModelConfig     `yaml:"model"`
	Validator ValidatorConfig `yaml:"validator"`
	Session   SessionConfig   `yaml:"session"`
	Probe     ProbeConfig     `yaml:"probe"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Logging   LoggingConfig   `yaml:"logging"`
	Notify    NotifyConfig    `yaml:"notify"`
}

var supportedProviders = map[string]bool{
	"anthropic": true,
	"bedrock":   true,
	"langchain": true,
}

func applyDefaults(c *Config) {
	if c.Anomaly.ThresholdSigma == 0 {
		c.Anomaly.ThresholdSigma = 2.0
	}
	if c.Anomaly.MinSampleSize == 0 {
		c.Anomaly.MinSampleSize = 10
	}
	if c.Anomaly.MinSpend == 0 {
		c.Anomaly.MinSpend = 100
	}
	if c.Anomaly.MaxPerMetric == 0 {
		c.Anomaly.MaxPerMetric = 50
	}
	if c.RCA.MaxSteps == 0 {
		c.RCA.MaxSteps = 6
	}
	if c.RCA.Concurrency == 0 {
		c.RCA.Concurrency = 4
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "langchain"
	}
	if c.Model.Endpoint == "" {
		c.Model.Endpoint = "http://localhost:8080"
	}
	if c.Model.MaxContextSize == 0 {
		c.Model.MaxContextSize = 4000
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 1024
	}
	if c.Validator.RetryMax == 0 {
		c.Validator.RetryMax = 2
	}
	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = 3600
	}
	if c.Probe.TimeoutMs == 0 {
		c.Probe.TimeoutMs = 10000
	}
	if c.Warehouse.MaxOpenConns == 0 {
		c.Warehouse.MaxOpenConns = 10
	}
}

// Load reads, parses, defaults, and validates the YAML config file at
// path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sharederrors.FailedToWithDetails("read config file", "config", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, sharederrors.FailedToWithDetails("parse config file", "config", path, err)
	}

	applyDefaults(&cfg)

	if err := loadFromEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate enforces the invariants the config must satisfy before the
// pipeline can run. It may also backfill a handful of values (e.g. the
// model endpoint default) where a missing value has an unambiguous
// default rather than being an error.
func validate(c *Config) error {
	if !supportedProviders[c.Model.Provider] {
		return sharederrors.ConfigurationError("model.provider", fmt.Sprintf("unsupported model provider: %s", c.Model.Provider))
	}
	if c.Model.Endpoint == "" {
		c.Model.Endpoint = "http://localhost:8080"
	}
	if c.Model.Provider == "langchain" && c.Model.Model == "" {
		return sharederrors.ConfigurationError("model.model", "model name is required for the langchain provider")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return sharederrors.ConfigurationError("model.temperature", "model temperature must be between 0.0 and 1.0")
	}
	if c.Model.MaxTokens <= 0 {
		return sharederrors.ConfigurationError("model.max_tokens", "model max tokens must be greater than 0")
	}
	if c.RCA.Concurrency <= 0 {
		return sharederrors.ConfigurationError("rca.concurrency", "rca concurrency must be greater than 0")
	}
	if c.Anomaly.MinSampleSize <= 0 {
		return sharederrors.ConfigurationError("anomaly.min_sample_size", "anomaly min sample size must be greater than 0")
	}
	return nil
}

// loadFromEnv overlays a small set of environment variables onto an
// already-loaded config, matching the teacher's env-override
// convention. Credentials (warehouse DSN, model API key) are read
// separately via WarehouseDSN/ModelAPIKey — never through this
// function — so they never pass through YAML-shaped config structs
// that might get logged as a whole.
func loadFromEnv(c *Config) error {
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("MODEL_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ANOMALY_THRESHOLD_SIGMA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return sharederrors.ParseError("ANOMALY_THRESHOLD_SIGMA", "float", err)
		}
		c.Anomaly.ThresholdSigma = f
	}
	return nil
}

// WarehouseDSN reads the data-warehouse connection string from its
// dedicated environment variable (spec §6: credentials are read once
// at startup and never logged).
func WarehouseDSN() string {
	return os.Getenv("ADINSIGHT_WAREHOUSE_DSN")
}

// ModelAPIKey reads the model provider's API key from its dedicated
// environment variable.
func ModelAPIKey() string {
	return os.Getenv("ADINSIGHT_MODEL_API_KEY")
}

// SlackBotToken reads the Slack notifier's bot token from its
// dedicated environment variable, never from the YAML-backed Config.
func SlackBotToken() string {
	return os.Getenv("ADINSIGHT_SLACK_BOT_TOKEN")
}
