package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// envPrefix prefixes every environment override (FLUX_PORT, FLUX_REDIS_URL, ...).
// Each override also falls back to its unprefixed name, so plain PORT works.
const envPrefix = "FLUX"

// Config is the root configuration structure for the Flux service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Nodes     NodesConfig     `yaml:"nodes"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// HealthPath mounts a JSON health endpoint when non-empty.
	HealthPath string `yaml:"health_path"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	Driver   string                `yaml:"driver"`
	File     FileStorageConfig     `yaml:"file"`
	SQLite   SQLiteStorageConfig   `yaml:"sqlite"`
	Redis    RedisStorageConfig    `yaml:"redis"`
	Postgres PostgresStorageConfig `yaml:"postgres"`
}

// FileStorageConfig configures the JSON document file backend.
type FileStorageConfig struct {
	Path string `yaml:"path"`
}

// SQLiteStorageConfig contains SQLite database settings.
type SQLiteStorageConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RedisStorageConfig configures the Redis backend.
type RedisStorageConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// PostgresStorageConfig configures the PostgreSQL backend.
type PostgresStorageConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// NodesConfig controls the node record schema and write policy.
type NodesConfig struct {
	// Schema is "a" (hex colours) or "b" (state + RGB + brightness).
	Schema string `yaml:"schema"`

	// Strict enables type and range validation on upsert.
	Strict bool `yaml:"strict"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// WebSocketConfig contains the change feed settings.
type WebSocketConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// envOverrides lists the settings that can be changed from the environment.
// String fields are used for booleans so an unset variable can be told apart
// from an explicit "false".
type envOverrides struct {
	Port            int    `envconfig:"PORT"`
	Host            string `envconfig:"API_HOST"`
	StorageDriver   string `envconfig:"STORAGE_DRIVER"`
	DBPath          string `envconfig:"DB_PATH"`
	SQLitePath      string `envconfig:"SQLITE_PATH"`
	RedisURL        string `envconfig:"REDIS_URL"`
	PostgresDSN     string `envconfig:"POSTGRES_DSN"`
	NodeSchema      string `envconfig:"NODE_SCHEMA"`
	NodeStrict      string `envconfig:"NODE_STRICT"`
	MQTTEnabled     string `envconfig:"MQTT_ENABLED"`
	MQTTHost        string `envconfig:"MQTT_HOST"`
	MQTTUsername    string `envconfig:"MQTT_USERNAME"`
	MQTTPassword    string `envconfig:"MQTT_PASSWORD"`
	InfluxDBEnabled string `envconfig:"INFLUXDB_ENABLED"`
	InfluxDBURL     string `envconfig:"INFLUXDB_URL"`
	InfluxDBToken   string `envconfig:"INFLUXDB_TOKEN"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
	LogFormat       string `envconfig:"LOG_FORMAT"`
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result. An empty path skips the file and starts from
// defaults.
//
// Parameters:
//   - path: YAML file path, or "" for defaults only
//
// Returns:
//   - *Config: Validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			File: FileStorageConfig{
				Path: "db.json",
			},
			SQLite: SQLiteStorageConfig{
				Path:        "./data/flux.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
			Redis: RedisStorageConfig{
				Key: "flux:db",
			},
			Postgres: PostgresStorageConfig{
				Table: "flux_collections",
			},
		},
		Nodes: NodesConfig{
			Schema: "a",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "flux-api",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "flux",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Variables follow the pattern FLUX_KEY, falling back to KEY.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}

	// API
	if env.Port != 0 {
		cfg.API.Port = env.Port
	}
	setString(&cfg.API.Host, env.Host)

	// Storage
	setString(&cfg.Storage.Driver, env.StorageDriver)
	setString(&cfg.Storage.File.Path, env.DBPath)
	setString(&cfg.Storage.SQLite.Path, env.SQLitePath)
	setString(&cfg.Storage.Redis.URL, env.RedisURL)
	setString(&cfg.Storage.Postgres.DSN, env.PostgresDSN)

	// Nodes
	setString(&cfg.Nodes.Schema, env.NodeSchema)
	if err := setBool(&cfg.Nodes.Strict, "NODE_STRICT", env.NodeStrict); err != nil {
		return err
	}

	// MQTT
	if err := setBool(&cfg.MQTT.Enabled, "MQTT_ENABLED", env.MQTTEnabled); err != nil {
		return err
	}
	setString(&cfg.MQTT.Broker.Host, env.MQTTHost)
	setString(&cfg.MQTT.Auth.Username, env.MQTTUsername)
	setString(&cfg.MQTT.Auth.Password, env.MQTTPassword)

	// InfluxDB
	if err := setBool(&cfg.InfluxDB.Enabled, "INFLUXDB_ENABLED", env.InfluxDBEnabled); err != nil {
		return err
	}
	setString(&cfg.InfluxDB.URL, env.InfluxDBURL)
	setString(&cfg.InfluxDB.Token, env.InfluxDBToken)

	// Logging
	setString(&cfg.Logging.Level, env.LogLevel)
	setString(&cfg.Logging.Format, env.LogFormat)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, name, v string) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s_%s: %w", envPrefix, name, err)
	}
	*dst = b
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls requires cert_file and key_file")
	}
	if p := c.API.HealthPath; p != "" && (!strings.HasPrefix(p, "/") || p == "/" || p == "/config/node") {
		errs = append(errs, "api.health_path must be an unused absolute path")
	}

	// Storage validation
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.File.Path == "" {
			errs = append(errs, "storage.file.path is required")
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, "storage.sqlite.path is required")
		}
	case DriverRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, "storage.redis.url is required (set FLUX_REDIS_URL)")
		}
		if c.Storage.Redis.Key == "" {
			errs = append(errs, "storage.redis.key is required")
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, "storage.postgres.dsn is required (set FLUX_POSTGRES_DSN)")
		}
		if c.Storage.Postgres.Table == "" {
			errs = append(errs, "storage.postgres.table is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver must be one of %s, %s, %s, %s",
			DriverFile, DriverSQLite, DriverRedis, DriverPostgres))
	}

	// Nodes validation
	switch strings.ToLower(c.Nodes.Schema) {
	case "", "a", "b":
	default:
		errs = append(errs, `nodes.schema must be "a" or "b"`)
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb requires url, org and bucket when enabled")
	}

	// WebSocket validation
	if c.WebSocket.Enabled && !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}
	if c.WebSocket.Enabled && (c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0) {
		errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Addr returns the host:port the API server listens on.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
