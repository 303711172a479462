package archive

import "log/slog"

// config holds settings shared by Writer and Reader.
type config struct {
	logger *slog.Logger
	verify bool
}

func newConfig(opts []Option) *config {
	cfg := &config{verify: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// Option configures a Writer or Reader.
type Option func(*config)

// WithLogger sets the logger used for diagnostics such as checksum
// self-checks. Logging is disabled by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithVerify controls whether opening an archive recomputes its checksum.
// Verification is on by default.
func WithVerify(verify bool) Option {
	return func(c *config) {
		c.verify = verify
	}
}
