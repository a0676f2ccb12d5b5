// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"xspectrum/internal/spectral"
)

/*
Packet layout (BigEndian):

|<- 4 ->|<---- 8 ---->|<---- 8 ---->|<- 2 ->|<- 1 ->|<------ N * 12 ------>|
+-------+-------------+-------------+-------+-------+----------------------+
|  Seq  |  Timestamp  | Generation  | Bins  | Flags | amp,min,max per bin  |
|uint32 |   int64     |   uint64    |uint16 | uint8 |  3 * float32 each    |
+-------+-------------+-------------+-------+-------+----------------------+

Timestamp is the host sample time at which the frame's window ended.
*/

// HeaderSize is the fixed packet header length in bytes.
const HeaderSize = 4 + 8 + 8 + 2 + 1

// Bytes per bin: amplitude, min and max as float32.
const binSize = 3 * 4

// MaxBins is the largest bin count that fits the header's count field.
const MaxBins = math.MaxUint16

// Packet flags.
const (
	FlagStale uint8 = 1 << iota
)

var ErrShortPacket = errors.New("udp: short packet")

// Packet is a decoded datagram.
type Packet struct {
	Seq        uint32
	Timestamp  int64
	Generation uint64
	Flags      uint8
	Bins       []spectral.Bin
}

// PacketSize returns the encoded size of a snapshot with bins bins.
func PacketSize(bins int) int {
	return HeaderSize + bins*binSize
}

// AppendPacket appends the encoding of snap to dst. It does not allocate when
// dst has PacketSize(len(snap.Bins)) spare capacity.
func AppendPacket(dst []byte, seq uint32, snap spectral.Snapshot) ([]byte, error) {
	if len(snap.Bins) > MaxBins {
		return dst, fmt.Errorf("udp: %d bins exceed packet limit %d", len(snap.Bins), MaxBins)
	}
	var flags uint8
	if snap.Stale {
		flags |= FlagStale
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(snap.Timestamp))
	dst = binary.BigEndian.AppendUint64(dst, snap.Generation)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(snap.Bins)))
	dst = append(dst, flags)
	for _, b := range snap.Bins {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(b.Amplitude))
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(b.Min))
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(b.Max))
	}
	return dst, nil
}

// ParsePacket decodes a datagram produced by AppendPacket.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:        binary.BigEndian.Uint32(data[0:4]),
		Timestamp:  int64(binary.BigEndian.Uint64(data[4:12])),
		Generation: binary.BigEndian.Uint64(data[12:20]),
		Flags:      data[22],
	}
	n := int(binary.BigEndian.Uint16(data[20:22]))
	body := data[HeaderSize:]
	if len(body) != n*binSize {
		return Packet{}, fmt.Errorf("%w: %d bins need %d bytes, have %d", ErrShortPacket, n, n*binSize, len(body))
	}
	p.Bins = make([]spectral.Bin, n)
	for i := range p.Bins {
		w := body[i*binSize:]
		p.Bins[i] = spectral.Bin{
			Amplitude: math.Float32frombits(binary.BigEndian.Uint32(w[0:4])),
			Min:       math.Float32frombits(binary.BigEndian.Uint32(w[4:8])),
			Max:       math.Float32frombits(binary.BigEndian.Uint32(w[8:12])),
		}
	}
	return p, nil
}

// Stale reports whether the sender served the snapshot from its fallback.
func (p Packet) Stale() bool {
	return p.Flags&FlagStale != 0
}
