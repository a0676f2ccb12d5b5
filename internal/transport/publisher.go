// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"
)

// Publisher polls a Source on a ticker and fans every new snapshot out to its
// transports. A snapshot is sent only when its generation or timestamp
// differs from the last one published, so a stalled producer produces no
// traffic. A reallocated engine restarts both, so the last key is forgotten
// whenever the source reports that nothing is available.
type Publisher struct {
	source     Source
	transports []Transport
	interval   time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	lastMu  sync.Mutex
	last    frameKey
	hasLast bool

	published atomic.Uint64
	unchanged atomic.Uint64
	failures  atomic.Uint64

	log *applog.Logger
}

type frameKey struct {
	generation uint64
	timestamp  int64
}

// PublisherStats counts what the publisher did so far.
type PublisherStats struct {
	Published uint64 // snapshots handed to the transports
	Unchanged uint64 // ticks skipped because nothing new was analysed
	Failures  uint64 // Send errors across all transports
}

// NewPublisher creates a stopped publisher.
func NewPublisher(interval time.Duration, source Source, transports ...Transport) (*Publisher, error) {
	if source == nil {
		return nil, fmt.Errorf("publisher: source cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("publisher: invalid interval %s", interval)
	}
	return &Publisher{
		source:     source,
		transports: transports,
		interval:   interval,
		log:        applog.Named("publisher"),
	}, nil
}

// Start launches the publishing goroutine. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Infof("publishing every %s to %d transport(s)", p.interval, len(p.transports))
		for {
			select {
			case <-ticker.C:
				p.Publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	st := p.Stats()
	p.log.Infof("stopped (published %d, unchanged %d, failures %d)", st.Published, st.Unchanged, st.Failures)
}

// Publish runs one tick synchronously. It reports whether a snapshot was sent.
func (p *Publisher) Publish() bool {
	snap, err := p.source.Current()
	if err != nil {
		if errors.Is(err, spectral.ErrNotYetAvailable) {
			p.forget()
		} else {
			p.log.Warnf("source: %v", err)
		}
		return false
	}
	if !p.advance(frameKey{snap.Generation, snap.Timestamp}) {
		p.unchanged.Add(1)
		return false
	}

	for _, t := range p.transports {
		if err := t.Send(snap); err != nil {
			p.failures.Add(1)
			p.log.Debugf("send generation %d: %v", snap.Generation, err)
		}
	}
	p.published.Add(1)
	return true
}

// advance records key and reports whether it differs from the last one.
func (p *Publisher) advance(key frameKey) bool {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	if p.hasLast && p.last == key {
		return false
	}
	p.last, p.hasLast = key, true
	return true
}

func (p *Publisher) forget() {
	p.lastMu.Lock()
	p.hasLast = false
	p.lastMu.Unlock()
}

// Stats returns the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Unchanged: p.unchanged.Load(),
		Failures:  p.failures.Load(),
	}
}

// Close stops the publisher and closes every transport.
func (p *Publisher) Close() error {
	p.Stop()
	var errs []error
	for _, t := range p.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
