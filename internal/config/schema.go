package config

import (
	"fmt"
	"time"
)

// Config holds berea configuration.
// Stored at: ./config.yaml or ~/.berea/config.yaml
type Config struct {
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	Database     DatabaseCfg               `mapstructure:"database" yaml:"database"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Generation   GenerationCfg             `mapstructure:"generation" yaml:"generation"`
	Admin        AdminCfg                  `mapstructure:"admin" yaml:"admin"`
	Cron         CronCfg                   `mapstructure:"cron" yaml:"cron"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DatabaseCfg configures the Postgres connection.
type DatabaseCfg struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"` // supports ${ENV_VAR} syntax
	Name     string `mapstructure:"name" yaml:"name"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN returns the Postgres connection string with ${ENV_VAR} references resolved.
func (d DatabaseCfg) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User,
		ResolveEnvVars(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "gemini"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"`
}

// GenerationCfg configures the auto-generation run controller.
type GenerationCfg struct {
	// Driver selects how ticks are fired: "cron" (external scheduler hits
	// the tick endpoint) or "loop" (in-process interval runner).
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Interval between ticks when driver is "loop".
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// BatchSize is the number of candidate questions requested per tick.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// Parallelism bounds concurrent question pipelines within a tick.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`
	// DefaultTarget is the run target applied by reset and start-without-target.
	DefaultTarget int `mapstructure:"default_target" yaml:"default_target"`
	// MaxTarget caps the target accepted by start.
	MaxTarget int `mapstructure:"max_target" yaml:"max_target"`
	// DailyLimit caps completed generations per calendar day.
	DailyLimit int `mapstructure:"daily_limit" yaml:"daily_limit"`
	// MaxBatchRetries bounds question-batch retries within a single tick.
	MaxBatchRetries int `mapstructure:"max_batch_retries" yaml:"max_batch_retries"`
}

// AdminCfg configures admin API authentication.
type AdminCfg struct {
	Token string `mapstructure:"token" yaml:"token"` // supports ${ENV_VAR} syntax
}

// CronCfg configures the scheduler tick endpoint.
type CronCfg struct {
	Secret string `mapstructure:"secret" yaml:"secret"` // supports ${ENV_VAR} syntax
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Database: DatabaseCfg{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "${BEREA_DB_PASSWORD}",
			Name:     "berea",
			SSLMode:  "disable",
		},
		LLMProviders: map[string]LLMProviderCfg{
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.5-flash",
				APIKey:    "${GEMINI_API_KEY}",
				RateLimit: 10,
				Enabled:   true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "gemini",
		},
		Generation: GenerationCfg{
			Driver:          "cron",
			Interval:        time.Minute,
			BatchSize:       3,
			Parallelism:     3,
			DefaultTarget:   500,
			MaxTarget:       5000,
			DailyLimit:      500,
			MaxBatchRetries: 3,
		},
		Admin: AdminCfg{
			Token: "${BEREA_ADMIN_TOKEN}",
		},
		Cron: CronCfg{
			Secret: "${BEREA_CRON_SECRET}",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
