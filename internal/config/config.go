// Package config loads service settings from the environment, an optional
// .env file, an optional config file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quentinrf/smartband-edge/internal/database"
)

// StoreKind selects the repository adapter
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreSQLite   StoreKind = "sqlite"
	StoreMemory   StoreKind = "memory"
)

// Setting keys. Each one is also read from the environment variable of
// the same name in upper case.
const (
	KeyDatabaseURL         = "database_url"
	KeyPort                = "port"
	KeyMaxOpenConns        = "db_max_open_conns"
	KeyMaxIdleConns        = "db_max_idle_conns"
	KeyConnMaxLifetime     = "db_conn_max_lifetime"
	KeyAcquireTimeout      = "db_acquire_timeout"
	KeyLogLevel            = "log_level"
	KeyLogFormat           = "log_format"
	KeyCORSAllowedOrigins  = "cors_allowed_origins"
	KeyGRPCHealthPort      = "grpc_health_port"
	KeyHealthProbeInterval = "health_probe_interval"
	KeyMQTTBroker          = "mqtt_broker"
	KeyMQTTClientID        = "mqtt_client_id"
	KeyMQTTUsername        = "mqtt_username"
	KeyMQTTPassword        = "mqtt_password"
	KeyMQTTTopic           = "mqtt_topic"
	KeyTLSCert             = "tls_cert"
	KeyTLSKey              = "tls_key"
	KeyTLSCA               = "tls_ca"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	Store       StoreKind
	SQLitePath  string // used when Store is StoreSQLite
	Topology    database.Topology
	Pool        database.PoolConfig

	Port               string
	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string // "console" | "json"

	GRPCHealthPort      string // empty disables the gRPC health server
	HealthProbeInterval time.Duration

	MQTT MQTTConfig

	TLSCert string // path to this service's certificate
	TLSKey  string // path to this service's private key
	TLSCA   string // path to the CA certificate; enables mTLS
}

// MQTTConfig holds broker settings. An empty Broker disables ingestion.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// TLSEnabled reports whether servers should terminate TLS
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != ""
}

// LoadDotEnv reads .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// New creates a viper instance with defaults and environment binding
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, "8000")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyCORSAllowedOrigins, "*")
	v.SetDefault(KeyHealthProbeInterval, "30s")
	v.SetDefault(KeyMQTTClientID, "smartband-edge")
	v.SetDefault(KeyMQTTTopic, "smartband/+/heart-rate")
	v.AutomaticEnv()
	return v
}

// BindFlags registers the flags that may override file and environment values
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("database-url", "", "database URL (postgres://, sqlite://path, memory://)")
	fs.String("port", "", "HTTP listen port")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (console, json)")
	fs.String("grpc-health-port", "", "port for the gRPC health service")

	bindings := map[string]string{
		KeyDatabaseURL:    "database-url",
		KeyPort:           "port",
		KeyLogLevel:       "log-level",
		KeyLogFormat:      "log-format",
		KeyGRPCHealthPort: "grpc-health-port",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads configuration. configFile is optional.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:        strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		Port:               v.GetString(KeyPort),
		CORSAllowedOrigins: splitList(v.GetString(KeyCORSAllowedOrigins)),
		LogLevel:           strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:          strings.ToLower(v.GetString(KeyLogFormat)),
		GRPCHealthPort:     v.GetString(KeyGRPCHealthPort),
		MQTT: MQTTConfig{
			Broker:   v.GetString(KeyMQTTBroker),
			ClientID: v.GetString(KeyMQTTClientID),
			Username: v.GetString(KeyMQTTUsername),
			Password: v.GetString(KeyMQTTPassword),
			Topic:    v.GetString(KeyMQTTTopic),
		},
		TLSCert: v.GetString(KeyTLSCert),
		TLSKey:  v.GetString(KeyTLSKey),
		TLSCA:   v.GetString(KeyTLSCA),
	}

	store, sqlitePath, err := ParseStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	cfg.Store = store
	cfg.SQLitePath = sqlitePath

	cfg.Topology = database.DetectTopology(cfg.DatabaseURL)
	cfg.Pool, err = loadPool(v, database.DefaultPoolConfig(cfg.Topology))
	if err != nil {
		return nil, err
	}

	cfg.HealthProbeInterval, err = duration(v, KeyHealthProbeInterval)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseStore picks the repository adapter from a DATABASE_URL
func ParseStore(databaseURL string) (StoreKind, string, error) {
	if databaseURL == "" {
		return "", "", errors.New("DATABASE_URL is required")
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	scheme, _, _ := strings.Cut(strings.ToLower(u.Scheme), "+")
	switch scheme {
	case "postgres", "postgresql":
		return StorePostgres, "", nil
	case "sqlite", "sqlite3":
		_, path, _ := strings.Cut(databaseURL, "://")
		if path == "" {
			return "", "", errors.New("DATABASE_URL sqlite:// needs a file path")
		}
		if isSQLiteMemory(path) {
			return "", "", errors.New("in-memory SQLite is private to each pooled connection; use memory:// instead")
		}
		return StoreSQLite, path, nil
	case "memory":
		return StoreMemory, "", nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme %q (use postgres://, sqlite:// or memory://)", u.Scheme)
	}
}

func isSQLiteMemory(path string) bool {
	return strings.HasPrefix(path, ":memory:") || strings.Contains(path, "mode=memory")
}

func loadPool(v *viper.Viper, pool database.PoolConfig) (database.PoolConfig, error) {
	var err error
	if v.IsSet(KeyMaxOpenConns) {
		if pool.MaxOpenConns, err = positiveInt(v, KeyMaxOpenConns); err != nil {
			return pool, err
		}
	}
	if v.IsSet(KeyMaxIdleConns) {
		if pool.MaxIdleConns, err = positiveInt(v, KeyMaxIdleConns); err != nil {
			return pool, err
		}
	}
	if v.IsSet(KeyConnMaxLifetime) {
		if pool.ConnMaxLifetime, err = duration(v, KeyConnMaxLifetime); err != nil {
			return pool, err
		}
	}
	if v.IsSet(KeyAcquireTimeout) {
		if pool.AcquireTimeout, err = duration(v, KeyAcquireTimeout); err != nil {
			return pool, err
		}
	}
	if pool.MaxIdleConns > pool.MaxOpenConns {
		pool.MaxIdleConns = pool.MaxOpenConns
	}
	return pool, nil
}

func (c *Config) validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.GRPCHealthPort != "" {
		if _, err := strconv.ParseUint(c.GRPCHealthPort, 10, 16); err != nil {
			return fmt.Errorf("invalid GRPC_HEALTH_PORT %q", c.GRPCHealthPort)
		}
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q (use console or json)", c.LogFormat)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.TLSCA != "" && c.TLSCert == "" {
		return errors.New("TLS_CA requires TLS_CERT and TLS_KEY")
	}
	return nil
}

// positiveInt parses an integer setting; env values arrive as strings
func positiveInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", strings.ToUpper(key), raw)
	}
	return n, nil
}

// duration accepts Go durations ("30s") or a bare number of seconds
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", strings.ToUpper(key), raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
