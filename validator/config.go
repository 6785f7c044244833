package validator

import "time"

// Config holds the validator's operating parameters, carried verbatim
// from the ambient config.Config (spec §6: "the core reads its
// configuration as a value passed at construction").
type Config struct {
	BatchSize           int
	StrictCRLMode       bool
	ClockSkewTolerance  time.Duration
	CSCACacheMaxBytes   int64
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:          1000,
		StrictCRLMode:       false,
		ClockSkewTolerance:  0,
		CSCACacheMaxBytes:   10 * 1024 * 1024,
	}
}
