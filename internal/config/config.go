package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Pacing    PacingConfig    `yaml:"pacing"`
	Behavior  BehaviorConfig  `yaml:"behavior"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int      `yaml:"port"`
	Host               string   `yaml:"host"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// EngineConfig holds traffic scheduler settings
type EngineConfig struct {
	EvasionMode        string `yaml:"evasion_mode"` // Standard, Stealth or Ghost
	AutoStart          bool   `yaml:"auto_start"`
	TickTimeoutSeconds int    `yaml:"tick_timeout_seconds"`
	LogRetention       int    `yaml:"log_retention"`
	EventRetention     int    `yaml:"event_retention"`
	Seed               uint64 `yaml:"seed"` // 0 draws from the global generator
	LockEnabled        bool   `yaml:"lock_enabled"`
	LockKey            string `yaml:"lock_key"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
}

// TickTimeout returns the per-tick store timeout.
func (c EngineConfig) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutSeconds) * time.Second
}

// LockTTL returns the leader lock lease.
func (c EngineConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PacingConfig holds the delay model constants
type PacingConfig struct {
	PulseBurstProbability *float64 `yaml:"pulse_burst_probability"` // nil = engine default, 0 = no bursts
	ViralSaturationHits   int64    `yaml:"viral_saturation_hits"`
	IdleDelayMS           int      `yaml:"idle_delay_ms"`
}

// BurstProbability returns the configured Pulse burst chance, 0.3 when unset.
func (c PacingConfig) BurstProbability() float64 {
	if c.PulseBurstProbability == nil {
		return 0.3
	}
	return *c.PulseBurstProbability
}

// IdleDelay returns the idle re-poll delay.
func (c PacingConfig) IdleDelay() time.Duration {
	return time.Duration(c.IdleDelayMS) * time.Millisecond
}

// BehaviorConfig holds session behavior bounds
type BehaviorConfig struct {
	MinDwellSeconds int `yaml:"min_dwell_seconds"`
	MaxDwellSeconds int `yaml:"max_dwell_seconds"`
	WordsPerMinute  int `yaml:"words_per_minute"`
}

// AnalyticsConfig holds analytics outbox settings
type AnalyticsConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Sink                   string `yaml:"sink"` // "redis" or "memory"
	OutboxKey              string `yaml:"outbox_key"`
	OutboxLimit            int    `yaml:"outbox_limit"`
	DispatchTimeoutSeconds int    `yaml:"dispatch_timeout_seconds"`
}

// DispatchTimeout returns the per-payload emitter timeout.
func (c AnalyticsConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds PostgreSQL settings. An empty URL keeps campaigns in memory.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Redact *bool  `yaml:"redact"`
}

// RedactEnabled reports whether secret redaction is on (default true).
func (c LoggingConfig) RedactEnabled() bool {
	return c.Redact == nil || *c.Redact
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.Engine.EvasionMode == "" {
		cfg.Engine.EvasionMode = "Standard"
	}
	if cfg.Engine.TickTimeoutSeconds == 0 {
		cfg.Engine.TickTimeoutSeconds = 5
	}
	if cfg.Engine.LogRetention == 0 {
		cfg.Engine.LogRetention = 150
	}
	if cfg.Engine.EventRetention == 0 {
		cfg.Engine.EventRetention = 100
	}
	if cfg.Engine.LockKey == "" {
		cfg.Engine.LockKey = "traffic-engine:leader"
	}
	if cfg.Engine.LockTTLSeconds == 0 {
		cfg.Engine.LockTTLSeconds = 30
	}
	if cfg.Pacing.ViralSaturationHits == 0 {
		cfg.Pacing.ViralSaturationHits = 1000
	}
	if cfg.Pacing.IdleDelayMS == 0 {
		cfg.Pacing.IdleDelayMS = 2000
	}
	if cfg.Behavior.MinDwellSeconds == 0 {
		cfg.Behavior.MinDwellSeconds = 35
	}
	if cfg.Behavior.MaxDwellSeconds == 0 {
		cfg.Behavior.MaxDwellSeconds = 180
	}
	if cfg.Behavior.WordsPerMinute == 0 {
		cfg.Behavior.WordsPerMinute = 225
	}
	if cfg.Analytics.Sink == "" {
		cfg.Analytics.Sink = "memory"
	}
	if cfg.Analytics.OutboxKey == "" {
		cfg.Analytics.OutboxKey = "traffic:analytics:outbox"
	}
	if cfg.Analytics.OutboxLimit == 0 {
		cfg.Analytics.OutboxLimit = 1000
	}
	if cfg.Analytics.DispatchTimeoutSeconds == 0 {
		cfg.Analytics.DispatchTimeoutSeconds = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
}

// LoadFromEnv loads .env (if present), the YAML file at path (if it
// exists), then applies environment overrides.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = Default()
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if mode := os.Getenv("ENGINE_EVASION_MODE"); mode != "" {
		cfg.Engine.EvasionMode = mode
	}
	if v := os.Getenv("ENGINE_AUTO_START"); v != "" {
		cfg.Engine.AutoStart = v == "true" || v == "1"
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if sink := os.Getenv("ANALYTICS_SINK"); sink != "" {
		cfg.Analytics.Sink = sink
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
