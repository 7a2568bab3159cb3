package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	pstrings "rescue/pkg/platform/strings"
)

// EnvPrefix scopes environment overrides, e.g. RESCUE_SERVER__ADDR=:9090.
const EnvPrefix = "RESCUE_"

type Config struct {
	Server     Server     `json:"server"`
	Auth       Auth       `json:"auth"`
	Admin      Admin      `json:"admin"`
	Storage    Storage    `json:"storage"`
	Postgres   Postgres   `json:"postgres"`
	Redis      Redis      `json:"redis"`
	GeoIndex   GeoIndex   `json:"geo_index"`
	Assignment Assignment `json:"assignment"`
	Notify     Notify     `json:"notify"`
	RateLimit  RateLimit  `json:"rate_limit"`
	Tracing    Tracing    `json:"tracing"`
	Logging    Logging    `json:"logging"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `json:"addr"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	DocsDir         string        `json:"docs_dir"`
}

type Auth struct {
	JWTSigningKey string        `json:"jwt_signing_key"`
	Issuer        string        `json:"issuer"`
	Audience      string        `json:"audience"`
	TokenTTL      time.Duration `json:"token_ttl"`
	BcryptCost    int           `json:"bcrypt_cost"`
}

type Admin struct {
	Token string `json:"token"`
}

// Storage selects the record store backend: "memory" or "postgres".
type Storage struct {
	Driver string `json:"driver"`
}

type Postgres struct {
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	Migrate         bool          `json:"migrate"`
}

// Redis configures the optional Redis client. An empty URL disables it.
type Redis struct {
	URL          string        `json:"url"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// GeoIndex selects where nearest-candidate queries run: "store" uses the
// record store's own index (vp-tree in memory, PostGIS in Postgres), "redis"
// layers a Redis GEO set over the store.
type GeoIndex struct {
	Backend string `json:"backend"`
	Key     string `json:"key"`
}

type Assignment struct {
	MaxSearchDistanceM float64 `json:"max_search_distance_m"`
}

type Notify struct {
	QueueSize int   `json:"queue_size"`
	Kafka     Kafka `json:"kafka"`
	MQTT      MQTT  `json:"mqtt"`
}

type Kafka struct {
	Brokers     []string `json:"brokers"`
	Topic       string   `json:"topic"`
	Partitions  int32    `json:"partitions"`
	Replication int16    `json:"replication"`
}

type MQTT struct {
	Broker   string        `json:"broker"`
	ClientID string        `json:"client_id"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Topic    string        `json:"topic"`
	QoS      byte          `json:"qos"`
	Timeout  time.Duration `json:"timeout"`
}

// RateLimit throttles requests per client IP. Backend "memory" counts per
// process, "redis" shares counters between replicas.
type RateLimit struct {
	Enabled bool         `json:"enabled"`
	Backend string       `json:"backend"`
	Prefix  string       `json:"prefix"`
	Auth    RequestLimit `json:"auth"`
	Write   RequestLimit `json:"write"`
	Read    RequestLimit `json:"read"`
}

// RequestLimit allows Requests per sliding Window. Zero requests disables it.
type RequestLimit struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

type Tracing struct {
	Enabled     bool    `json:"enabled"`
	ServiceName string  `json:"service_name"`
	SampleRatio float64 `json:"sample_ratio"`
}

type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the development configuration. Values loaded from files or
// the environment override it field by field.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			DocsDir:         "docs",
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "rescue",
			Audience:      "rescue-api",
			TokenTTL:      7 * 24 * time.Hour,
			BcryptCost:    10,
		},
		Storage:  Storage{Driver: "memory"},
		Postgres: Postgres{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute, Migrate: true},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		GeoIndex:   GeoIndex{Backend: "store", Key: "rescue:respondants:geo"},
		Assignment: Assignment{MaxSearchDistanceM: 10000},
		Notify: Notify{
			QueueSize: 256,
			Kafka:     Kafka{Topic: "rescue.notifications", Partitions: 1, Replication: 1},
			MQTT:      MQTT{ClientID: "rescue", Topic: "rescue/notifications", Timeout: 5 * time.Second},
		},
		RateLimit: RateLimit{
			Enabled: true,
			Backend: "memory",
			Prefix:  "rescue:ratelimit:",
			Auth:    RequestLimit{Requests: 10, Window: time.Minute},
			Write:   RequestLimit{Requests: 60, Window: time.Minute},
			Read:    RequestLimit{Requests: 600, Window: time.Minute},
		},
		Tracing: Tracing{ServiceName: "rescue", SampleRatio: 1},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML/JSON file, an
// optional .env file and RESCUE_ environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Notify.Kafka.Brokers = pstrings.DedupeAndTrim(cfg.Notify.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps RESCUE_NOTIFY__KAFKA__TOPIC to notify.kafka.topic.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects inconsistent combinations before any connection is opened.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when storage.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.GeoIndex.Backend {
	case "store":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when geo_index.backend is redis")
		}
	default:
		return fmt.Errorf("unknown geo_index.backend %q", c.GeoIndex.Backend)
	}
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Redis.URL == "" {
				return errors.New("redis.url is required when rate_limit.backend is redis")
			}
		default:
			return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
		}
		for name, l := range map[string]RequestLimit{"auth": c.RateLimit.Auth, "write": c.RateLimit.Write, "read": c.RateLimit.Read} {
			if l.Requests > 0 && l.Window <= 0 {
				return fmt.Errorf("rate_limit.%s.window must be positive", name)
			}
		}
	}
	if c.Assignment.MaxSearchDistanceM <= 0 {
		return errors.New("assignment.max_search_distance_m must be positive")
	}
	if c.Auth.JWTSigningKey == "" {
		return errors.New("auth.jwt_signing_key is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Notify.QueueSize <= 0 {
		return errors.New("notify.queue_size must be positive")
	}
	if len(c.Notify.Kafka.Brokers) > 0 && c.Notify.Kafka.Topic == "" {
		return errors.New("notify.kafka.topic is required when brokers are set")
	}
	if c.Notify.MQTT.Broker != "" && c.Notify.MQTT.Topic == "" {
		return errors.New("notify.mqtt.topic is required when broker is set")
	}
	return nil
}
