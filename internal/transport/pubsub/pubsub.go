// SPDX-License-Identifier: MIT

// Package pubsub publishes snapshots to a Redis channel and keeps the most
// recent one under a key, so late subscribers can fetch the current state.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"
	"xspectrum/internal/transport"
)

const (
	defaultTimeout = 250 * time.Millisecond
	latestSuffix   = ":latest"
)

// Options selects the Redis server and channel.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// LatestTTL expires the latest-snapshot key when publishing stops.
	// Zero keeps it forever.
	LatestTTL time.Duration
	// Timeout bounds every round trip. Defaults to 250ms.
	Timeout time.Duration
}

// Transport publishes JSON-encoded transport.SpectrumMessage values.
type Transport struct {
	client *redis.Client
	opts   Options
	seq    atomic.Uint64
	closed atomic.Bool
	log    *applog.Logger
}

// New connects to Redis and verifies the server answers.
func New(ctx context.Context, opts Options) (*Transport, error) {
	if opts.Channel == "" {
		return nil, errors.New("pubsub: channel is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pubsub: ping %s: %w", opts.Addr, err)
	}

	t := &Transport{client: client, opts: opts, log: applog.Named("redis")}
	t.log.Infof("publishing to %s on %s (db %d)", opts.Channel, opts.Addr, opts.DB)
	return t, nil
}

// LatestKey returns the key holding the most recent message.
func (t *Transport) LatestKey() string {
	return t.opts.Channel + latestSuffix
}

// Encode renders the message published for snap.
func Encode(seq uint64, snap spectral.Snapshot) ([]byte, error) {
	return json.Marshal(transport.SpectrumMessage{Type: "spectrum", Seq: seq, Snapshot: snap})
}

// Send publishes snap and stores it as the latest message in one pipeline.
func (t *Transport) Send(snap spectral.Snapshot) error {
	if t.closed.Load() {
		return transport.ErrClosed
	}
	payload, err := Encode(t.seq.Add(1), snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.Timeout)
	defer cancel()

	pipe := t.client.Pipeline()
	pipe.Publish(ctx, t.opts.Channel, payload)
	pipe.Set(ctx, t.LatestKey(), payload, t.opts.LatestTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pubsub: publish: %w", err)
	}
	return nil
}

// Close releases the connection pool. Idempotent.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.client.Close()
}

var _ transport.Transport = (*Transport)(nil)
