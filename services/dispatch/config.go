package dispatch

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries runtime settings read from the environment. Flags override
// individual fields at the CLI layer.
type Config struct {
	PollInterval  time.Duration
	MaxAttempts   int
	PollWorkers   int
	NATSURL       string
	OpsAddr       string
	ArchiveBucket string
}

// LoadConfig reads MUSTER_* environment variables, applying defaults and
// validating values.
func LoadConfig() (Config, error) {
	cfg := Config{
		PollInterval: DefaultPollInterval,
		MaxAttempts:  DefaultMaxAttempts,
		PollWorkers:  DefaultPollWorkers,
	}

	if v := os.Getenv("MUSTER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid MUSTER_POLL_INTERVAL: %q", v)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("MUSTER_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MUSTER_MAX_ATTEMPTS: %q", v)
		}
		cfg.MaxAttempts = n
	}
	if v := os.Getenv("MUSTER_POLL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MUSTER_POLL_WORKERS: %q", v)
		}
		cfg.PollWorkers = n
	}

	cfg.NATSURL = strings.TrimSpace(os.Getenv("MUSTER_NATS_URL"))
	cfg.OpsAddr = strings.TrimSpace(os.Getenv("MUSTER_OPS_ADDR"))
	cfg.ArchiveBucket = strings.TrimSpace(os.Getenv("MUSTER_ARCHIVE_BUCKET"))

	return cfg, nil
}
