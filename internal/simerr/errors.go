// Package simerr defines the error taxonomy shared by the simulation core.
//
// ConfigurationError marks invalid or missing input and is never retried or
// cached. SimulationError marks a compute failure inside the batch runner; the
// facade surfaces it instead of reporting a zero probability.
package simerr

import (
	"errors"
	"fmt"
)

// ConfigurationError reports invalid or missing simulation input.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Configf builds a ConfigurationError for field with a formatted reason.
func Configf(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SimulationError reports a failed batch chunk.
type SimulationError struct {
	Chunk int
	Err   error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation chunk %d failed: %v", e.Chunk, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsSimulation reports whether err wraps a SimulationError.
func IsSimulation(err error) bool {
	var target *SimulationError
	return errors.As(err, &target)
}
