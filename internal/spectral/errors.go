// SPDX-License-Identifier: MIT
package spectral

import (
	"errors"
	"fmt"
)

// Preallocated so the query path can return them without formatting.
var (
	// ErrConfiguration is wrapped by every *ConfigError.
	ErrConfiguration = errors.New("spectral: unsupported configuration")

	// ErrNotYetAvailable is returned by queries when no frame can be served yet.
	ErrNotYetAvailable = errors.New("spectral: spectrum not yet available")

	// ErrEmpty means the ring has never been written.
	ErrEmpty = errors.New("spectral: ring buffer is empty")

	// ErrNotFound means every retained frame is later than the requested time.
	ErrNotFound = errors.New("spectral: no frame at or before requested time")

	// ErrTornRead means a coherent copy could not be taken within MaxReadRetries.
	ErrTornRead = errors.New("spectral: coherent read retries exhausted")

	// ErrFrameSize means the destination frame has the wrong bin count.
	ErrFrameSize = errors.New("spectral: destination frame bin count mismatch")

	// ErrInvalidState is returned for lifecycle calls made in the wrong state.
	ErrInvalidState = errors.New("spectral: invalid lifecycle transition")

	// ErrUnknownParameter is returned for parameter ids that are not registered.
	ErrUnknownParameter = errors.New("spectral: unknown parameter")
)

// ConfigError describes a rejected configuration field.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spectral: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers test with errors.Is(err, ErrConfiguration).
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

func configErr(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
