package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	LLM        LLMConfig        `yaml:"llm"`
	SES        SESConfig        `yaml:"ses"`
	Sequencer  SequencerConfig  `yaml:"sequencer"`
	Mailbox    MailboxConfig    `yaml:"mailbox"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// RedisConfig holds the Redis connection for distributed cycle locks.
// Redis is optional; when Addr is empty the workers fall back to
// Postgres advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig holds generative text service configuration. Provider is one
// of "openai", "anthropic", or "bedrock".
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	OpenAIKey      string `yaml:"openai_api_key"`
	AnthropicKey   string `yaml:"anthropic_api_key"`
	BedrockRegion  string `yaml:"bedrock_region"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the configured per-call timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Configured reports whether any provider credentials are present.
// A false here turns a generation trigger into ai_status=failed_config.
func (c LLMConfig) Configured() bool {
	switch c.Provider {
	case "openai":
		return c.OpenAIKey != ""
	case "anthropic":
		return c.AnthropicKey != ""
	case "bedrock":
		return c.BedrockRegion != ""
	}
	return false
}

// SESConfig holds AWS SES v2 credentials for organizations that send
// through SES instead of their own SMTP server.
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Enabled   bool   `yaml:"enabled"`
}

// SequencerConfig controls the scheduler worker.
type SequencerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	BatchSize       int `yaml:"batch_size"`
	LockTTLMinutes  int `yaml:"lock_ttl_minutes"`
}

// Interval returns the cycle interval as a duration.
func (c SequencerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTTL returns the per-organization cycle lock TTL.
func (c SequencerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// MailboxConfig controls the IMAP reply poller.
type MailboxConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	FetchLimit      int `yaml:"fetch_limit"`
	LockTTLMinutes  int `yaml:"lock_ttl_minutes"`
}

// Interval returns the poll interval as a duration.
func (c MailboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTTL returns the per-organization mailbox lock TTL.
func (c MailboxConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// EncryptionConfig holds the key used to encrypt org mail credentials at
// rest. The key must be 32 bytes, hex or raw.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// Load reads and parses the configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifeMins == 0 {
		cfg.Database.ConnMaxLifeMins = 5
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModelFor(cfg.LLM.Provider)
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Sequencer.IntervalSeconds == 0 {
		cfg.Sequencer.IntervalSeconds = 300
	}
	if cfg.Sequencer.BatchSize == 0 {
		cfg.Sequencer.BatchSize = 200
	}
	if cfg.Sequencer.LockTTLMinutes == 0 {
		cfg.Sequencer.LockTTLMinutes = 10
	}
	if cfg.Mailbox.IntervalSeconds == 0 {
		cfg.Mailbox.IntervalSeconds = 180
	}
	if cfg.Mailbox.FetchLimit == 0 {
		cfg.Mailbox.FetchLimit = 100
	}
	if cfg.Mailbox.LockTTLMinutes == 0 {
		cfg.Mailbox.LockTTLMinutes = 10
	}

	return &cfg, nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "bedrock":
		return "anthropic.claude-3-5-sonnet-20240620-v1:0"
	default:
		return "gpt-4o"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicKey = v
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.LLM.BedrockRegion = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
		cfg.SES.Enabled = true
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.Encryption.Key = v
	}
	if v := os.Getenv("SEQUENCER_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sequencer.IntervalSeconds = n
		}
	}
	if v := os.Getenv("MAILBOX_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Mailbox.IntervalSeconds = n
		}
	}

	return cfg, nil
}
