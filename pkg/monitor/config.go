package monitor

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	// How often an evaluation cycle runs
	PollInterval time.Duration

	// Upper bound on a single telemetry fetch - a stuck fetch is
	// cancelled and treated as transient rather than stalling ticks
	FetchTimeout time.Duration

	// Active records unconfirmed for longer than this expire
	ViolationTimeout time.Duration

	// Maximum samples taken from the telemetry source per cycle
	ResultsLimit int

	// Minimum time between repeated alerts for one vehicle
	DebounceCooldown time.Duration

	EnforceTemporal bool

	// Drop samples from vehicles with the ignition off
	RequireIgnition bool

	// Buzzer-grade monitoring polls much faster than the dashboard
	RealtimeMonitoring bool

	Timezone *time.Location
}

var defaultConfig = Config{
	PollInterval:     30 * time.Second,
	ViolationTimeout: 30 * time.Minute,
	ResultsLimit:     500,
	DebounceCooldown: 5 * time.Minute,
	EnforceTemporal:  true,
	RequireIgnition:  false,
	Timezone:         time.UTC,
}

const realtimePollInterval = 2 * time.Second

// GetConfig returns the monitoring configuration from environment
// variables or defaults
func GetConfig() Config {
	config := defaultConfig

	if os.Getenv("FLEETGUARD_REALTIME_MONITORING") == "YES" {
		config.RealtimeMonitoring = true
		config.PollInterval = realtimePollInterval
	}

	if val := os.Getenv("FLEETGUARD_POLL_INTERVAL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.PollInterval = parsed
		}
	}

	if val := os.Getenv("FLEETGUARD_VIOLATION_TIMEOUT"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.ViolationTimeout = parsed
		}
	}

	if val := os.Getenv("FLEETGUARD_DEBOUNCE_COOLDOWN"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.DebounceCooldown = parsed
		}
	}

	if val := os.Getenv("FLEETGUARD_RESULTS_LIMIT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ResultsLimit = parsed
		}
	}

	if os.Getenv("FLEETGUARD_ENFORCE_TEMPORAL") == "NO" {
		config.EnforceTemporal = false
	}

	if os.Getenv("FLEETGUARD_REQUIRE_IGNITION") == "YES" {
		config.RequireIgnition = true
	}

	if val := os.Getenv("FLEETGUARD_TIMEZONE"); val != "" {
		timezone, err := time.LoadLocation(val)
		if err != nil {
			log.Fatal().Err(err).Str("timezone", val).Msg("Unknown timezone")
		}
		config.Timezone = timezone
	}

	config.FetchTimeout = config.PollInterval

	return config
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.ViolationTimeout <= 0 {
		return fmt.Errorf("violation timeout must be positive")
	}
	if c.ResultsLimit <= 0 {
		return fmt.Errorf("results limit must be positive")
	}
	if c.DebounceCooldown < 0 {
		return fmt.Errorf("debounce cooldown must not be negative")
	}

	return nil
}
