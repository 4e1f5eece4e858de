package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*storeOptions)

type storeOptions struct {
	metricsUpdateInterval time.Duration
	autoMigrate           bool
}

func defaultOptions() storeOptions {
	return storeOptions{
		metricsUpdateInterval: 5 * time.Second,
		autoMigrate:           true,
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *storeOptions) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithAutoMigrate toggles schema migration when opening a SQL store.
func WithAutoMigrate(enabled bool) Option {
	return func(o *storeOptions) {
		o.autoMigrate = enabled
	}
}
