package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/flagx"
)

var knownFlags = []string{"-a", "-g", "-p", "-d", "-i", "-n", "-v"}

// parseFlags populates selected Config fields from command-line flags.
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server API")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "address and port of the server health endpoint")
	fs.StringVar(&cfg.ProbeMode, "p", cfg.ProbeMode, "reachability probe (http or grpc)")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database file")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.IntVar(&cfg.SyncConcurrency, "n", cfg.SyncConcurrency, "evaluations sent in parallel")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second

	if cfg.ProbeMode != ProbeHTTP && cfg.ProbeMode != ProbeGRPC {
		panic(fmt.Sprintf("unknown probe mode %q", cfg.ProbeMode))
	}
}
