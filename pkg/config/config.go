// Package config holds runtime configuration and fixed service constants.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Retention settings
const (
	// RetentionCap is the maximum number of samples retained per telemetry key.
	RetentionCap = 100
)

// Server defaults
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// Feed connection settings
const (
	FeedReconnectDelay = 5 * time.Second
	FeedWriteDeadline  = 10 * time.Second
	FeedReadDeadline   = 60 * time.Second
	FeedPingInterval   = 30 * time.Second
)

// Config is the process configuration, populated from environment variables.
type Config struct {
	// Port is the HTTP listen port.
	Port int `env:"PORT" envDefault:"3000"`

	// DataDir holds the on-disk state for whichever storage backend is active.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// StorageBackend selects the retention store implementation: "sqlite" or "badger".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sqlite"`

	// FeedURL is the websocket endpoint of the telemetry push feed.
	FeedURL string `env:"FEED_URL" envDefault:"ws://127.0.0.1:8090/telemetry"`

	// CatalogPath points at the YAML descriptor document. A missing or
	// unparseable file falls back to the built-in parameter set.
	CatalogPath string `env:"CATALOG_PATH" envDefault:"./catalog.yaml"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
