package expansion

import (
	"database/sql"
	"time"
)

// Config controls the expansion job's cadence, batching and isolation.
type Config struct {
	RunInterval time.Duration
	// WindowStep is the minimum stretch of time RunOnce will expand; a
	// run is skipped until the cursor lags the clock by at least this.
	WindowStep time.Duration
	BatchSize  int
	Workers    int
	JobTimeout time.Duration
	// TxIsolation applies to each batch transaction. A stable read of
	// already-expanded instances is all the job needs, so production
	// runs at REPEATABLE READ; serializable would serialize the pool.
	TxIsolation sql.IsolationLevel
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		WindowStep:  time.Hour,
		BatchSize:   50,
		Workers:     4,
		JobTimeout:  10 * time.Minute,
		TxIsolation: sql.LevelDefault,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.WindowStep <= 0 {
		c.WindowStep = defaults.WindowStep
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
