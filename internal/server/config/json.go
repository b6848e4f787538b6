package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/inspectsync/internal/flagx"
	"github.com/dmitrijs2005/inspectsync/internal/timex"
)

// JsonConfig is the JSON form of Config. Durations use timex.Duration, so
// a file may give "15m" or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                  string         `json:"http_addr"`
	HealthAddr                string         `json:"health_addr"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	TokenValidityDuration     timex.Duration `json:"token_validity_duration"`
	S3AccessKey               string         `json:"s3_access_key"`
	S3SecretKey               string         `json:"s3_secret_key"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
	ExportURLValidityDuration timex.Duration `json:"export_url_validity_duration"`
	LogLevel                  string         `json:"log_level"`
	SeedUserEmail             string         `json:"seed_user_email"`
	SeedUserPassword          string         `json:"seed_user_password"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		HTTPAddr:                  c.HTTPAddr,
		HealthAddr:                c.HealthAddr,
		DatabaseDSN:               c.DatabaseDSN,
		SecretKey:                 c.SecretKey,
		TokenValidityDuration:     timex.Duration{Duration: c.TokenValidityDuration},
		S3AccessKey:               c.S3AccessKey,
		S3SecretKey:               c.S3SecretKey,
		S3Bucket:                  c.S3Bucket,
		S3Region:                  c.S3Region,
		S3BaseEndpoint:            c.S3BaseEndpoint,
		ExportURLValidityDuration: timex.Duration{Duration: c.ExportURLValidityDuration},
		LogLevel:                  c.LogLevel,
		SeedUserEmail:             c.SeedUserEmail,
		SeedUserPassword:          c.SeedUserPassword,
	}
}

// parseJson overlays config with the JSON file named by -c or -config.
// Without the flag nothing is loaded; keys absent from the file keep their
// current values. Panics if the file cannot be read or parsed.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := toJson(config)

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, &c)
	if err != nil {
		panic(err)
	}

	config.HTTPAddr = c.HTTPAddr
	config.HealthAddr = c.HealthAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = c.TokenValidityDuration.Duration
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.ExportURLValidityDuration = c.ExportURLValidityDuration.Duration
	config.LogLevel = c.LogLevel
	config.SeedUserEmail = c.SeedUserEmail
	config.SeedUserPassword = c.SeedUserPassword
}
