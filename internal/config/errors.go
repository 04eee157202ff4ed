package config

import "errors"

// Sentinel errors for configuration loading.
var (
	// ErrReadConfig indicates the configuration file could not be read or decoded.
	ErrReadConfig = errors.New("cannot read config")

	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)
