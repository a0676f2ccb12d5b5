// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	applog "xspectrum/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecording is returned when a recording is already running.
var ErrRecording = errors.New("audio: already recording")

// writerPoll is how often the writer goroutine drains the block queue.
const writerPoll = 10 * time.Millisecond

// Recorder writes the tapped signal to a WAV file. The audio callback calls
// Push, which only copies into a preallocated queue; a writer goroutine
// converts and encodes the blocks.
type Recorder struct {
	path     string
	file     *os.File
	encoder  *wav.Encoder
	buf      *audio.IntBuffer
	ints     []int // backing store for buf.Data
	scale    float64
	queue    *blockQueue
	channels int

	frames atomic.Int64 // frames handed to the encoder
	err    error        // first encoder error, owned by the writer
	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool

	log *applog.Logger
}

// NewRecorder creates path and starts the writer goroutine. blockSamples is
// the largest interleaved block Push will see without splitting; queueBlocks
// is how many such blocks may be pending before Push drops audio.
func NewRecorder(path string, sampleRate, channels, bitDepth, blockSamples, queueBlocks int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if channels <= 0 || blockSamples <= 0 || queueBlocks <= 0 {
		return nil, fmt.Errorf("invalid recorder layout: %d channels, %d samples x %d blocks",
			channels, blockSamples, queueBlocks)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	ints := make([]int, blockSamples)
	r := &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           ints,
			SourceBitDepth: bitDepth,
		},
		ints:     ints,
		scale:    float64(audio.IntMaxSignedValue(bitDepth)),
		queue:    newBlockQueue(queueBlocks, blockSamples),
		channels: channels,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      applog.Named("recorder"),
	}

	go r.run()
	r.log.Infof("recording to %s (%d Hz, %d ch, %d bit)", path, sampleRate, channels, bitDepth)
	return r, nil
}

// Push queues interleaved samples for writing. Safe to call from the audio
// callback; it reports false when the writer is behind and audio was dropped.
func (r *Recorder) Push(samples []float32) bool {
	return r.queue.push(samples)
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.path
}

// Dropped returns the number of pushes that lost audio.
func (r *Recorder) Dropped() uint64 {
	return r.queue.dropped.Load()
}

// Frames returns the number of frames encoded so far.
func (r *Recorder) Frames() int64 {
	return r.frames.Load()
}

// Close stops the writer after it has drained the queue, then finalises the
// WAV header and closes the file. Close is idempotent.
func (r *Recorder) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	<-r.done

	if dropped := r.Dropped(); dropped > 0 {
		r.log.Warnf("%s: dropped %d blocks", r.path, dropped)
	}

	err := r.err
	if cerr := r.encoder.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("recording %s: %w", r.path, err)
	}
	r.log.Infof("saved %s (%d frames)", r.path, r.Frames())
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(writerPoll)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.drain()
			return
		case <-ticker.C:
			r.drain()
		}
	}
}

func (r *Recorder) drain() {
	for r.queue.pop(r.write) {
	}
}

// write converts one block to integer PCM and encodes it.
func (r *Recorder) write(block []float32) {
	if r.err != nil {
		return
	}

	data := r.ints[:len(block)]
	for i, s := range block {
		data[i] = int(float64(max(-1, min(s, 1))) * r.scale)
	}
	r.buf.Data = data

	if err := r.encoder.Write(r.buf); err != nil {
		r.err = err
		r.log.Errorf("%s: %v", r.path, err)
		return
	}
	r.frames.Add(int64(len(block) / r.channels))
}
