package config

import "time"

// Probe modes for the connectivity monitor.
const (
	ProbeHTTP = "http"
	ProbeGRPC = "grpc"
)

// Config holds runtime settings for the inspectsync client.
//
// Units: every interval and timeout is a time.Duration.
type Config struct {
	ServerURL  string
	HealthAddr string
	ProbeMode  string
	DBPath     string
	LogLevel   string

	OnlineCheckInterval time.Duration
	LinkPollInterval    time.Duration
	ProbeTimeout        time.Duration
	RequestTimeout      time.Duration
	RefreshInterval     time.Duration

	SyncConcurrency int
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.ProbeMode = ProbeHTTP
	c.DBPath = "inspectsync.db"
	c.LogLevel = "info"

	c.OnlineCheckInterval = 15 * time.Second
	c.LinkPollInterval = 2 * time.Second
	c.ProbeTimeout = 2 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.RefreshInterval = 10 * time.Minute

	c.SyncConcurrency = 3
	c.MaxAttempts = 8
	c.BackoffBase = 2 * time.Second
	c.BackoffMax = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones. Panics if the result fails Validate.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
