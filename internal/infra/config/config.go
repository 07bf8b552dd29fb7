package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env"      validate:"omitempty,oneof=dev prod"`
	Server   ServerConfig   `yaml:"server"   validate:"required"`
	Database DatabaseConfig `yaml:"database" validate:"required"`
	Auth     AuthConfig     `yaml:"auth"     validate:"required"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	RBAC     RBACConfig     `yaml:"rbac"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host" validate:"omitempty,ip|hostname"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`
}

type DatabaseConfig struct {
	Driver    string `yaml:"driver"    validate:"required,oneof=sqlite postgres"`
	DSN       string `yaml:"dsn"       validate:"required"`
	Namespace string `yaml:"namespace" validate:"omitempty,alphanum"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level"  validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

type MetricsConfig struct {
	Enable    bool   `yaml:"enable"`
	GoMetrics bool   `yaml:"go_metrics"`
	Path      string `yaml:"path"       validate:"omitempty,startswith=/"`
}

// WebhooksConfig tunes outgoing event delivery.
type WebhooksConfig struct {
	// DeliveryTimeoutStr bounds a single HTTP delivery attempt, e.g. "5s".
	DeliveryTimeoutStr string `yaml:"delivery_timeout"`
	// MaxAttempts is the total number of delivery attempts per event,
	// including the first one.
	MaxAttempts int `yaml:"max_attempts" validate:"omitempty,min=1,max=10"`
	// FailureThreshold is the consecutive-failure count at which a
	// subscription is deactivated.
	FailureThreshold int `yaml:"failure_threshold" validate:"omitempty,min=1"`
	// WorkerLimit caps concurrent deliveries pulled off the queue.
	WorkerLimit int `yaml:"worker_limit" validate:"omitempty,min=1,max=100"`

	// DeliveryTimeout is parsed from DeliveryTimeoutStr during Load.
	DeliveryTimeout time.Duration `yaml:"-"`
}

// RBACConfig tunes the permission resolver.
type RBACConfig struct {
	// CacheTTLStr is how long a role's permission set is served from cache
	// before the store is consulted again, e.g. "5m".
	CacheTTLStr string `yaml:"cache_ttl"`
	// CacheCapacity bounds the number of cached roles.
	CacheCapacity int `yaml:"cache_capacity" validate:"omitempty,min=1"`

	// CacheTTL is parsed from CacheTTLStr during Load.
	CacheTTL time.Duration `yaml:"-"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	// Expand environment variables in the config
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse yaml: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.Webhooks.DeliveryTimeoutStr != "" {
		cfg.Webhooks.DeliveryTimeout, err = time.ParseDuration(cfg.Webhooks.DeliveryTimeoutStr)
		if err != nil {
			return fmt.Errorf("config: invalid webhooks.delivery_timeout: %w", err)
		}
	}
	if cfg.RBAC.CacheTTLStr != "" {
		cfg.RBAC.CacheTTL, err = time.ParseDuration(cfg.RBAC.CacheTTLStr)
		if err != nil {
			return fmt.Errorf("config: invalid rbac.cache_ttl: %w", err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Env == "" {
		cfg.Env = "prod"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Webhooks.DeliveryTimeout == 0 {
		cfg.Webhooks.DeliveryTimeout = 5 * time.Second
	}
	if cfg.Webhooks.MaxAttempts == 0 {
		cfg.Webhooks.MaxAttempts = 3
	}
	if cfg.Webhooks.FailureThreshold == 0 {
		cfg.Webhooks.FailureThreshold = 10
	}
	if cfg.Webhooks.WorkerLimit == 0 {
		cfg.Webhooks.WorkerLimit = 10
	}
	if cfg.RBAC.CacheTTL == 0 {
		cfg.RBAC.CacheTTL = 5 * time.Minute
	}
	if cfg.RBAC.CacheCapacity == 0 {
		cfg.RBAC.CacheCapacity = 10000
	}
}
