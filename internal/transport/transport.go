// SPDX-License-Identifier: MIT

// Package transport publishes spectral snapshots to out-of-process consumers.
// Everything here runs in consumer goroutines; nothing touches the audio
// callback.
package transport

import (
	"errors"

	"xspectrum/internal/spectral"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport delivers snapshots to one kind of consumer.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(snap spectral.Snapshot) error
	Close() error
}

// Source supplies the snapshot to publish on each tick.
type Source interface {
	Current() (spectral.Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (spectral.Snapshot, error)

// Current calls f.
func (f SourceFunc) Current() (spectral.Snapshot, error) {
	return f()
}

var _ Source = (*spectral.Query)(nil)
