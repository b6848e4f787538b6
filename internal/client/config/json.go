package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/inspectsync/internal/flagx"
	"github.com/dmitrijs2005/inspectsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerURL  string `json:"server_url"`
	HealthAddr string `json:"health_addr"`
	ProbeMode  string `json:"probe_mode"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`

	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	LinkPollInterval    timex.Duration `json:"link_poll_interval"`
	ProbeTimeout        timex.Duration `json:"probe_timeout"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	RefreshInterval     timex.Duration `json:"refresh_interval"`

	SyncConcurrency int            `json:"sync_concurrency"`
	MaxAttempts     int            `json:"max_attempts"`
	BackoffBase     timex.Duration `json:"backoff_base"`
	BackoffMax      timex.Duration `json:"backoff_max"`
}

func toJson(cfg *Config) JsonConfig {
	return JsonConfig{
		ServerURL:           cfg.ServerURL,
		HealthAddr:          cfg.HealthAddr,
		ProbeMode:           cfg.ProbeMode,
		DBPath:              cfg.DBPath,
		LogLevel:            cfg.LogLevel,
		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
		LinkPollInterval:    timex.Duration{Duration: cfg.LinkPollInterval},
		ProbeTimeout:        timex.Duration{Duration: cfg.ProbeTimeout},
		RequestTimeout:      timex.Duration{Duration: cfg.RequestTimeout},
		RefreshInterval:     timex.Duration{Duration: cfg.RefreshInterval},
		SyncConcurrency:     cfg.SyncConcurrency,
		MaxAttempts:         cfg.MaxAttempts,
		BackoffBase:         timex.Duration{Duration: cfg.BackoffBase},
		BackoffMax:          timex.Duration{Duration: cfg.BackoffMax},
	}
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from -c or -config (flagx.JsonConfigFlags); without
// one nothing is loaded. Keys missing from the file keep the values cfg
// already has. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	jc := toJson(cfg)

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.HealthAddr = jc.HealthAddr
	cfg.ProbeMode = jc.ProbeMode
	cfg.DBPath = jc.DBPath
	cfg.LogLevel = jc.LogLevel
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	cfg.LinkPollInterval = jc.LinkPollInterval.Duration
	cfg.ProbeTimeout = jc.ProbeTimeout.Duration
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.RefreshInterval = jc.RefreshInterval.Duration
	cfg.SyncConcurrency = jc.SyncConcurrency
	cfg.MaxAttempts = jc.MaxAttempts
	cfg.BackoffBase = jc.BackoffBase.Duration
	cfg.BackoffMax = jc.BackoffMax.Duration
}
