// Package config loads service configuration from an optional file, a .env
// file and CHAT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/PaulBabatuyi/classroom-chat/internal/auth"
)

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	MetricsPort string `mapstructure:"metrics_port"`
	TLSCert     string `mapstructure:"tls_cert"`
	TLSKey      string `mapstructure:"tls_key"`
	RequireTLS  bool   `mapstructure:"require_tls"`
	// PublicURL is the web client base used in invite and share links.
	PublicURL string `mapstructure:"public_url"`
	// ShutdownSeconds bounds graceful stop before streams are cut.
	ShutdownSeconds int `mapstructure:"shutdown_seconds"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // mongo | memory
	MongoURI string `mapstructure:"mongo_uri"`
	Database string `mapstructure:"database"`
	// SettingsCacheSeconds is how long mute sets are cached for alert fan-out.
	SettingsCacheSeconds int `mapstructure:"settings_cache_seconds"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	AlertsTopic string   `mapstructure:"alerts_topic"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	Keys          string `mapstructure:"keys"` // kid:secret,kid2:secret2
	ActiveKid     string `mapstructure:"active_kid"`
	LeewaySeconds int    `mapstructure:"leeway_seconds"`
}

type RateLimitConfig struct {
	SendPerMinute int `mapstructure:"send_per_minute"`
	Burst         int `mapstructure:"burst"`
}

type ModerationConfig struct {
	URL                string `mapstructure:"url"`
	TimeoutMs          int    `mapstructure:"timeout_ms"`
	MaxFailures        int    `mapstructure:"max_failures"`
	OpenTimeoutSeconds int    `mapstructure:"open_timeout_seconds"`
}

type CollabConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Collab     CollabConfig     `mapstructure:"collab"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`

	// Derived
	ShutdownTimeout   time.Duration
	JWTLeeway         time.Duration
	ModerationTimeout time.Duration
	BreakerOpenFor    time.Duration
	SettingsCacheTTL  time.Duration
	DebounceWindow    time.Duration
	JWTKeys           map[string]string
}

var defaults = map[string]any{
	"server.port":             "50051",
	"server.metrics_port":     "9090",
	"server.tls_cert":         "",
	"server.tls_key":          "",
	"server.require_tls":      false,
	"server.public_url":       "http://localhost:3000",
	"server.shutdown_seconds": 15,

	"store.driver":                 "mongo",
	"store.mongo_uri":              "",
	"store.database":               "chat_db",
	"store.settings_cache_seconds": 30,

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,
	"redis.prefix":   "chat-feed",

	"kafka.brokers":      []string{},
	"kafka.alerts_topic": "chat.alerts",

	"jwt.secret":         "",
	"jwt.keys":           "",
	"jwt.active_kid":     "",
	"jwt.leeway_seconds": 30,

	"ratelimit.send_per_minute": 120,
	"ratelimit.burst":           10,

	"moderation.url":                  "",
	"moderation.timeout_ms":           3000,
	"moderation.max_failures":         5,
	"moderation.open_timeout_seconds": 30,

	"collab.debounce_ms": 500,

	"log.level":       "info",
	"log.file":        "logs/chat.log",
	"log.development": false,

	"tracing.enabled":      false,
	"tracing.endpoint":     "localhost:4318",
	"tracing.service_name": "classroom-chat",
	"tracing.sample_ratio": 1.0,
}

// legacyEnv keeps the deployment variables of the original gRPC server working.
var legacyEnv = map[string]string{
	"store.mongo_uri":    "MONGODB_URI",
	"server.port":        "PORT",
	"server.tls_cert":    "TLS_CERT",
	"server.tls_key":     "TLS_KEY",
	"server.require_tls": "REQUIRE_TLS",
	"jwt.secret":         "JWT_SECRET",
	"jwt.keys":           "JWT_KEYS",
	"jwt.active_kid":     "JWT_ACTIVE_KID",
	"redis.addr":         "REDIS_ADDR",
}

// Load reads configuration. path may be empty, in which case only the
// environment (and a .env file in the working directory) is consulted.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("CHAT")
	// nested override: CHAT_STORE_MONGO_URI etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		envName := "CHAT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish computes derived values and rejects invalid combinations.
func (c *Config) finish() error {
	c.ShutdownTimeout = time.Duration(c.Server.ShutdownSeconds) * time.Second
	c.JWTLeeway = time.Duration(c.JWT.LeewaySeconds) * time.Second
	c.ModerationTimeout = time.Duration(c.Moderation.TimeoutMs) * time.Millisecond
	c.BreakerOpenFor = time.Duration(c.Moderation.OpenTimeoutSeconds) * time.Second
	c.SettingsCacheTTL = time.Duration(c.Store.SettingsCacheSeconds) * time.Second
	c.DebounceWindow = time.Duration(c.Collab.DebounceMs) * time.Millisecond

	c.Kafka.Brokers = splitList(c.Kafka.Brokers)

	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			return errors.New("config: store.driver=mongo requires store.mongo_uri (MONGODB_URI)")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	if c.Server.RequireTLS && (c.Server.TLSCert == "" || c.Server.TLSKey == "") {
		return errors.New("config: server.require_tls is set but tls_cert/tls_key are not configured")
	}

	if c.JWT.Keys != "" {
		keys, err := auth.ParseKeys(c.JWT.Keys)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		c.JWTKeys = keys
	} else if c.JWT.Secret != "" {
		c.JWTKeys = map[string]string{"default": c.JWT.Secret}
		c.JWT.ActiveKid = "default"
	} else {
		return errors.New("config: either jwt.secret or jwt.keys must be set")
	}

	if c.Kafka.AlertsTopic == "" && len(c.Kafka.Brokers) > 0 {
		return errors.New("config: kafka.brokers set without kafka.alerts_topic")
	}
	if c.Collab.DebounceMs <= 0 {
		c.DebounceWindow = 500 * time.Millisecond
	}
	return nil
}

// splitList flattens "a,b" entries coming from a single environment variable.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
