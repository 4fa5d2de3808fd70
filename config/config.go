// Package config loads process-level tuning knobs from ARIES_-prefixed
// environment variables once at process start, read once into a plain
// record rather than threading a live config object through the solver.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully-resolved set of solver knobs. It is read once by
// Load and never re-read mid-solve.
type Config struct {
	// UseEqLogic requests the (unimplemented) equality-logic theory; see
	// solver.New, which returns an error rather than silently ignoring it.
	UseEqLogic bool

	// LCPSymmetryBreaking requests lexicographic symmetry-breaking
	// constraints during model construction. Parsed and stored only; no
	// package in this module reads it.
	LCPSymmetryBreaking bool

	// PrintModel dumps the built model's variable count and constraint
	// count to stdout before solving.
	PrintModel bool

	ClauseDecay   float64
	VariableDecay float64
	MaxConflicts  int64
	Timeout       time.Duration
	PhaseSaving   bool
}

// Default holds the baseline CDCL tuning knobs, plus the new knobs
// defaulting off.
var Default = Config{
	ClauseDecay:   0.999,
	VariableDecay: 0.95,
	MaxConflicts:  -1,
	Timeout:       -1,
	PhaseSaving:   false,
}

// Load reads ARIES_* environment variables over Default, returning an error
// if any set variable fails to parse.
func Load() (Config, error) {
	cfg := Default

	if err := loadBool("ARIES_USE_EQ_LOGIC", &cfg.UseEqLogic); err != nil {
		return cfg, err
	}
	if err := loadBool("ARIES_LCP_SYMMETRY_BREAKING", &cfg.LCPSymmetryBreaking); err != nil {
		return cfg, err
	}
	if err := loadBool("ARIES_PRINT_MODEL", &cfg.PrintModel); err != nil {
		return cfg, err
	}
	if err := loadFloat("ARIES_CLAUSE_DECAY", &cfg.ClauseDecay); err != nil {
		return cfg, err
	}
	if err := loadFloat("ARIES_VARIABLE_DECAY", &cfg.VariableDecay); err != nil {
		return cfg, err
	}
	if err := loadInt64("ARIES_MAX_CONFLICTS", &cfg.MaxConflicts); err != nil {
		return cfg, err
	}
	if err := loadBool("ARIES_PHASE_SAVING", &cfg.PhaseSaving); err != nil {
		return cfg, err
	}
	if raw, ok := os.LookupEnv("ARIES_TIMEOUT"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("config: ARIES_TIMEOUT=%q: %w", raw, err)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

func loadBool(key string, dst *bool) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func loadFloat(key string, dst *float64) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func loadInt64(key string, dst *int64) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}
