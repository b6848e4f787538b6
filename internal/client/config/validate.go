package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate reports the first setting the client cannot run with. Zero
// intervals would make the scheduler fire back to back, and a probe must
// give up before a sync request does so a flapping link is noticed first.
func (c *Config) Validate() error {
	if c.ProbeMode != ProbeHTTP && c.ProbeMode != ProbeGRPC {
		return fmt.Errorf("unknown probe mode %q", c.ProbeMode)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"online check interval", c.OnlineCheckInterval},
		{"link poll interval", c.LinkPollInterval},
		{"probe timeout", c.ProbeTimeout},
		{"request timeout", c.RequestTimeout},
		{"refresh interval", c.RefreshInterval},
		{"backoff base", c.BackoffBase},
		{"backoff max", c.BackoffMax},
	}
	for _, v := range durations {
		if v.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", v.name, v.d)
		}
	}

	if c.SyncConcurrency <= 0 {
		return fmt.Errorf("sync concurrency must be positive, got %d", c.SyncConcurrency)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff max %s is below backoff base %s", c.BackoffMax, c.BackoffBase)
	}
	if c.ProbeTimeout >= c.RequestTimeout {
		return errors.New("probe timeout must be shorter than request timeout")
	}
	return nil
}
