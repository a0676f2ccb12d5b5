// SPDX-License-Identifier: MIT

// Package udp streams snapshots as compact binary datagrams.
package udp

import (
	"errors"
	"sync"

	"xspectrum/internal/spectral"
	"xspectrum/internal/transport"
)

// Transport encodes snapshots with AppendPacket and sends them through a
// UDPSender, reusing one packet buffer.
type Transport struct {
	sender *UDPSender

	mu  sync.Mutex
	seq uint32
	buf []byte
}

// NewTransport dials targetAddress.
func NewTransport(targetAddress string, bins int) (*Transport, error) {
	sender, err := NewUDPSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return &Transport{sender: sender, buf: make([]byte, 0, PacketSize(bins))}, nil
}

// Send encodes and transmits snap.
func (t *Transport) Send(snap spectral.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	buf, err := AppendPacket(t.buf[:0], t.seq, snap)
	if err != nil {
		return err
	}
	t.buf = buf
	if err := t.sender.Send(buf); err != nil {
		if errors.Is(err, ErrSenderClosed) {
			return transport.ErrClosed
		}
		return err
	}
	return nil
}

// Seq returns the sequence number of the last packet sent.
func (t *Transport) Seq() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Close closes the underlying sender.
func (t *Transport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*Transport)(nil)
