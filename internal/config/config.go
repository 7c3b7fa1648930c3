package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir string       `json:"dataDir" yaml:"dataDir" env:"DATA_DIR"`
	HTTP    HTTPConfig   `json:"http" yaml:"http" envPrefix:"HTTP_"`
	Store   StoreConfig  `json:"store" yaml:"store" envPrefix:"STORE_"`
	Bus     BusConfig    `json:"bus" yaml:"bus" envPrefix:"BUS_"`
	Enrich  EnrichConfig `json:"enrich" yaml:"enrich" envPrefix:"ENRICH_"`
	Relay   RelayConfig  `json:"relay" yaml:"relay" envPrefix:"RELAY_"`
	Log     LogConfig    `json:"log" yaml:"log" envPrefix:"LOG_"`
}

// HTTPConfig configures the snapshot and stream endpoints.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`
	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert        string `json:"tlsCert" yaml:"tlsCert" env:"TLS_CERT"`
	TLSKey         string `json:"tlsKey" yaml:"tlsKey" env:"TLS_KEY"`
	SSERetryMs     int    `json:"sseRetryMs" yaml:"sseRetryMs" env:"SSE_RETRY_MS"`
	PingIntervalMs int    `json:"pingIntervalMs" yaml:"pingIntervalMs" env:"PING_INTERVAL_MS"`
}

// TLSEnabled reports whether both certificate and key are configured.
func (h HTTPConfig) TLSEnabled() bool { return h.TLSCert != "" && h.TLSKey != "" }

// ListenAddr returns Addr, or :443 with TLS and :8080 without when unset.
func (h HTTPConfig) ListenAddr() string {
	switch {
	case h.Addr != "":
		return h.Addr
	case h.TLSEnabled():
		return ":443"
	default:
		return ":8080"
	}
}

// StoreConfig selects and tunes the snapshot backend.
type StoreConfig struct {
	Driver          string `json:"driver" yaml:"driver" env:"DRIVER"`
	Fsync           string `json:"fsync" yaml:"fsync" env:"FSYNC"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs" env:"FSYNC_INTERVAL_MS"`
	RedisAddr       string `json:"redisAddr" yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisKey        string `json:"redisKey" yaml:"redisKey" env:"REDIS_KEY"`
	// SQLitePath defaults to snapshot.db under the data dir.
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath" env:"SQLITE_PATH"`
}

// BusConfig selects the message bus driver and subject.
type BusConfig struct {
	Driver       string   `json:"driver" yaml:"driver" env:"DRIVER"`
	URL          string   `json:"url" yaml:"url" env:"URL"`
	Subject      string   `json:"subject" yaml:"subject" env:"SUBJECT"`
	KafkaBrokers []string `json:"kafkaBrokers" yaml:"kafkaBrokers" env:"KAFKA_BROKERS" envSeparator:","`
	RedisAddr    string   `json:"redisAddr" yaml:"redisAddr" env:"REDIS_ADDR"`
}

// EnrichConfig controls the one-shot startup geolocation lookup.
type EnrichConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	URL       string `json:"url" yaml:"url" env:"URL"`
	TimeoutMs int    `json:"timeoutMs" yaml:"timeoutMs" env:"TIMEOUT_MS"`
}

// RelayConfig tunes the relay loop and the broadcast hub.
type RelayConfig struct {
	// BroadcastOnPersistFailure keeps live delivery going when the snapshot
	// write fails.
	BroadcastOnPersistFailure bool `json:"broadcastOnPersistFailure" yaml:"broadcastOnPersistFailure" env:"BROADCAST_ON_PERSIST_FAILURE"`
	SubscriberBuffer          int  `json:"subscriberBuffer" yaml:"subscriberBuffer" env:"SUBSCRIBER_BUFFER"`
}

// LogConfig mirrors pkg/log.Config.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL"`
	Format string `json:"format" yaml:"format" env:"FORMAT"`
}

// Store and bus driver names.
const (
	StorePebble = "pebble"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"

	BusNATS   = "nats"
	BusRedis  = "redis"
	BusKafka  = "kafka"
	BusMemory = "memory"
)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			SSERetryMs:     3000,
			PingIntervalMs: 30000,
		},
		Store: StoreConfig{
			Driver:          StorePebble,
			Fsync:           "always",
			FsyncIntervalMs: 5,
			RedisAddr:       "127.0.0.1:6379",
			RedisKey:        "pricerelay:snapshot",
		},
		Bus: BusConfig{
			Driver:       BusNATS,
			URL:          "nats://127.0.0.1:4222",
			Subject:      "price",
			KafkaBrokers: []string{"127.0.0.1:9092"},
			RedisAddr:    "127.0.0.1:6379",
		},
		Enrich: EnrichConfig{
			Enabled:   true,
			URL:       "http://ip-api.com/json",
			TimeoutMs: 5000,
		},
		Relay: RelayConfig{
			BroadcastOnPersistFailure: true,
			SubscriberBuffer:          64,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// Default. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks driver names and paired settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StorePebble, StoreRedis, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: use pebble|redis|sqlite", c.Store.Driver))
	}
	switch c.Store.Fsync {
	case "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("store.fsync %q: use always|interval|never", c.Store.Fsync))
	}
	switch c.Bus.Driver {
	case BusNATS, BusRedis, BusKafka, BusMemory:
	default:
		errs = append(errs, fmt.Errorf("bus.driver %q: use nats|redis|kafka|memory", c.Bus.Driver))
	}
	if c.Bus.Subject == "" {
		errs = append(errs, errors.New("bus.subject is required"))
	}
	if c.Bus.Driver == BusKafka && len(c.Bus.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("bus.kafkaBrokers is required for kafka"))
	}
	if (c.HTTP.TLSCert == "") != (c.HTTP.TLSKey == "") {
		errs = append(errs, errors.New("http.tlsCert and http.tlsKey must be set together"))
	}
	if c.Relay.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("relay.subscriberBuffer must be positive"))
	}
	return errors.Join(errs...)
}
