// Package config reads the auction engine settings from flags and the environment.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the service settings
type Config struct {
	RunAddress  string
	DatabaseURI string
	LogLevel    string
	// BidRateLimit is bids per second per bidder; 0 disables limiting.
	BidRateLimit    float64
	NotifyQueueSize int
	StoreMaxRetries int
	SeedDemoData    bool
}

// environment mirrors Config with pointers so an explicitly set zero still
// overrides the flag value.
type environment struct {
	RunAddress      *string  `env:"RUN_ADDRESS"`
	DatabaseURI     *string  `env:"DATABASE_URI"`
	LogLevel        *string  `env:"LOG_LEVEL"`
	BidRateLimit    *float64 `env:"BID_RATE_LIMIT"`
	NotifyQueueSize *int     `env:"NOTIFY_QUEUE_SIZE"`
	StoreMaxRetries *int     `env:"STORE_MAX_RETRIES"`
	SeedDemoData    *bool    `env:"SEED_DEMO_DATA"`
}

// Parse reads command line args (without the program name) and then applies
// environment variables, which win over flags.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("auction-engine", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", ":8080", "address and port for HTTP server")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty for in-memory storage")
	fs.StringVar(&cfg.LogLevel, "l", "info", "log level")
	fs.Float64Var(&cfg.BidRateLimit, "r", 5, "bids per second allowed per bidder, 0 to disable")
	fs.IntVar(&cfg.NotifyQueueSize, "q", 256, "notification dispatch queue size")
	fs.IntVar(&cfg.StoreMaxRetries, "retries", 3, "retries for conflicting auction updates")
	fs.BoolVar(&cfg.SeedDemoData, "seed", false, "seed demo auctions on start")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var e environment
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if e.RunAddress != nil && *e.RunAddress != "" {
		cfg.RunAddress = *e.RunAddress
	}
	if e.DatabaseURI != nil && *e.DatabaseURI != "" {
		cfg.DatabaseURI = *e.DatabaseURI
	}
	if e.LogLevel != nil && *e.LogLevel != "" {
		cfg.LogLevel = *e.LogLevel
	}
	if e.BidRateLimit != nil {
		cfg.BidRateLimit = *e.BidRateLimit
	}
	if e.NotifyQueueSize != nil {
		cfg.NotifyQueueSize = *e.NotifyQueueSize
	}
	if e.StoreMaxRetries != nil {
		cfg.StoreMaxRetries = *e.StoreMaxRetries
	}
	if e.SeedDemoData != nil {
		cfg.SeedDemoData = *e.SeedDemoData
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RunAddress == "" {
		return fmt.Errorf("config: empty run address")
	}
	if c.BidRateLimit < 0 {
		return fmt.Errorf("config: bid rate limit must not be negative")
	}
	if c.NotifyQueueSize < 0 {
		return fmt.Errorf("config: notify queue size must not be negative")
	}
	if c.StoreMaxRetries < 1 {
		return fmt.Errorf("config: store max retries must be at least 1")
	}
	return nil
}
