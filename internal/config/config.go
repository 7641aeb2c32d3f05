package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the monitoring engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Store       StoreConfig       `yaml:"store"`
	Clients     ClientsConfig     `yaml:"clients"`
	Sweeps      SweepsConfig      `yaml:"sweeps"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Logging     LoggingConfig     `yaml:"logging"`
	Rules       RulesConfig       `yaml:"rules"`
	Cache       CacheConfig       `yaml:"cache"`
}

// ServerConfig controls the HTTP trigger, gRPC health and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// TriggerConfig holds the shared secret sweep triggers must present.
type TriggerConfig struct {
	Secret string `yaml:"secret"`
}

// StoreConfig points at the SQLite database shared with the rest of the platform.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ClientsConfig groups the external provider integrations.
type ClientsConfig struct {
	Tracking   TrackingClientConfig   `yaml:"tracking"`
	Assessment AssessmentClientConfig `yaml:"assessment"`
	Notify     NotifyClientConfig     `yaml:"notify"`
}

// TrackingClientConfig configures the carrier-tracking provider.
type TrackingClientConfig struct {
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
	// CallInterval is the minimum spacing between provider calls within a sweep.
	CallInterval time.Duration `yaml:"callInterval"`
}

// AssessmentClientConfig configures the AI assessment provider. An empty BaseURL disables it.
type AssessmentClientConfig struct {
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotifyClientConfig configures the Resend-compatible email API.
type NotifyClientConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	APIKey     string        `yaml:"apiKey"`
	From       string        `yaml:"from"`
	Recipients []string      `yaml:"recipients"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SweepsConfig bounds the work done by each triggered sweep.
type SweepsConfig struct {
	EntryBatchSize    int           `yaml:"entryBatchSize"`
	ReassessBatchSize int           `yaml:"reassessBatchSize"`
	ClaimBatchSize    int           `yaml:"claimBatchSize"`
	MinAgeDays        int           `yaml:"minAgeDays"`
	BenchmarkWindow   time.Duration `yaml:"benchmarkWindow"`
	ClaimAdvanceAfter time.Duration `yaml:"claimAdvanceAfter"`
	ErrorCap          int           `yaml:"errorCap"`
	Budgets           BudgetsConfig `yaml:"budgets"`
}

// BudgetsConfig is the wall-clock budget per sweep.
type BudgetsConfig struct {
	Benchmarks time.Duration `yaml:"benchmarks"`
	Entry      time.Duration `yaml:"entry"`
	Reassess   time.Duration `yaml:"reassess"`
	Claims     time.Duration `yaml:"claims"`
}

// ScheduleConfig holds the adaptive recheck intervals.
type ScheduleConfig struct {
	Urgent   time.Duration `yaml:"urgent"`
	Elevated time.Duration `yaml:"elevated"`
	Default  time.Duration `yaml:"default"`
}

// EligibilityConfig holds entry fallbacks and claim-eligibility thresholds, in days.
type EligibilityConfig struct {
	DomesticDays          int     `yaml:"domesticDays"`
	InternationalDays     int     `yaml:"internationalDays"`
	DomesticFallback      int     `yaml:"domesticFallback"`
	InternationalFallback int     `yaml:"internationalFallback"`
	BenchmarkBuffer       float64 `yaml:"benchmarkBuffer"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig points at an optional checkpoint normalization rule pack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Redis-backed caching of provider lookups.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	TrackingIDTTL time.Duration `yaml:"trackingIDTTL"`
	AssessmentTTL time.Duration `yaml:"assessmentTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CLAIMWATCH_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would make sweeps misbehave.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Eligibility.BenchmarkBuffer < 0 {
		return fmt.Errorf("eligibility.benchmarkBuffer must not be negative")
	}
	if c.Schedule.Urgent <= 0 || c.Schedule.Elevated <= 0 || c.Schedule.Default <= 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}
	if c.Schedule.Urgent > c.Schedule.Elevated || c.Schedule.Elevated > c.Schedule.Default {
		return fmt.Errorf("schedule intervals must satisfy urgent <= elevated <= default")
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Path: "claimwatch.db"},
		Clients: ClientsConfig{
			Tracking: TrackingClientConfig{
				Timeout:      10 * time.Second,
				CallInterval: 300 * time.Millisecond,
			},
			Assessment: AssessmentClientConfig{Timeout: 30 * time.Second},
			Notify: NotifyClientConfig{
				BaseURL: "https://api.resend.com",
				From:    "claims@claimwatch.local",
				Timeout: 10 * time.Second,
			},
		},
		Sweeps: SweepsConfig{
			EntryBatchSize:    500,
			ReassessBatchSize: 200,
			ClaimBatchSize:    100,
			MinAgeDays:        3,
			BenchmarkWindow:   90 * 24 * time.Hour,
			ClaimAdvanceAfter: 15 * time.Minute,
			ErrorCap:          20,
			Budgets: BudgetsConfig{
				Benchmarks: 5 * time.Minute,
				Entry:      4*time.Minute + 30*time.Second,
				Reassess:   4*time.Minute + 30*time.Second,
				Claims:     time.Minute,
			},
		},
		Schedule: ScheduleConfig{
			Urgent:   time.Hour,
			Elevated: 4 * time.Hour,
			Default:  24 * time.Hour,
		},
		Eligibility: EligibilityConfig{
			DomesticDays:          15,
			InternationalDays:     20,
			DomesticFallback:      8,
			InternationalFallback: 12,
			BenchmarkBuffer:       0.30,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			TrackingIDTTL: 30 * 24 * time.Hour,
			AssessmentTTL: 6 * time.Hour,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAIMWATCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CLAIMWATCH_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("CLAIMWATCH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("CLAIMWATCH_TRIGGER_SECRET"); v != "" {
		cfg.Trigger.Secret = v
	}
	if v := os.Getenv("CLAIMWATCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CLAIMWATCH_TRACKING_URL"); v != "" {
		cfg.Clients.Tracking.BaseURL = v
	}
	if v := os.Getenv("CLAIMWATCH_TRACKING_API_KEY"); v != "" {
		cfg.Clients.Tracking.APIKey = v
	}
	if v := os.Getenv("CLAIMWATCH_TRACKING_CALL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Clients.Tracking.CallInterval = d
		}
	}
	if v := os.Getenv("CLAIMWATCH_ASSESSMENT_URL"); v != "" {
		cfg.Clients.Assessment.BaseURL = v
	}
	if v := os.Getenv("CLAIMWATCH_ASSESSMENT_API_KEY"); v != "" {
		cfg.Clients.Assessment.APIKey = v
	}
	if v := os.Getenv("CLAIMWATCH_NOTIFY_URL"); v != "" {
		cfg.Clients.Notify.BaseURL = v
	}
	if v := os.Getenv("CLAIMWATCH_NOTIFY_API_KEY"); v != "" {
		cfg.Clients.Notify.APIKey = v
	}
	if v := os.Getenv("CLAIMWATCH_NOTIFY_FROM"); v != "" {
		cfg.Clients.Notify.From = v
	}
	if v := os.Getenv("CLAIMWATCH_NOTIFY_RECIPIENTS"); v != "" {
		cfg.Clients.Notify.Recipients = splitList(v)
	}
	if v := os.Getenv("CLAIMWATCH_ENTRY_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sweeps.EntryBatchSize = n
		}
	}
	if v := os.Getenv("CLAIMWATCH_REASSESS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sweeps.ReassessBatchSize = n
		}
	}
	if v := os.Getenv("CLAIMWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CLAIMWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("CLAIMWATCH_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("CLAIMWATCH_CACHE_URL"); v != "" {
		cfg.Cache.URL = v
	}
	if v := os.Getenv("CLAIMWATCH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("CLAIMWATCH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("CLAIMWATCH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("CLAIMWATCH_CACHE_ASSESSMENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AssessmentTTL = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
