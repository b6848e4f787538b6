// Package config loads runtime configuration for the inspectsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the server HTTP API
//	-g string     address:port of the server gRPC health endpoint
//	-p string     reachability probe: "http" or "grpc"
//	-d string     path of the local database file
//	-i int        online status check interval (seconds)
//	-n int        number of evaluations sent in parallel
//	-v string     log level: debug, info, warn, error
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds. Keys left out keep their default:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "health_addr": "127.0.0.1:50051",
//	  "probe_mode": "grpc",
//	  "db_path": "inspectsync.db",
//	  "online_check_interval": "15s",
//	  "probe_timeout": "2s",
//	  "request_timeout": "10s",
//	  "sync_concurrency": 3,
//	  "max_attempts": 8,
//	  "backoff_base": "2s",
//	  "backoff_max": "5m"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
