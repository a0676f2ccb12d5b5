// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned for files that are not PCM WAV.
var ErrNotWAV = errors.New("audio: not a valid WAV file")

// FileInfo summarises an analysed file.
type FileInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int64
	Windows    uint64 // spectral frames produced
}

// Duration returns the decoded audio length.
func (fi FileInfo) Duration() time.Duration {
	if fi.SampleRate == 0 {
		return 0
	}
	return time.Duration(fi.Frames) * time.Second / time.Duration(fi.SampleRate)
}

// ProbeFile reads the header of the WAV file at path. Frames is derived from
// the data chunk size; Windows is zero.
func ProbeFile(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return FileInfo{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	d, err := dec.Duration()
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return FileInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Frames:     int64(math.Round(d.Seconds() * float64(dec.SampleRate))),
	}, nil
}

// AnalyzeFile decodes the WAV file at path and streams it through a private
// spectral engine configured by cfg, whose sample rate and channel count are
// replaced by the file's. fn is called with every spectral frame in order;
// an error from fn stops the analysis and is returned.
func AnalyzeFile(ctx context.Context, path string, cfg spectral.Config, fn func(spectral.Snapshot) error) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return FileInfo{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}

	info := FileInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	cfg.SampleRate = float64(info.SampleRate)
	cfg.Channels = info.Channels
	// At most one window completes per block, so every frame is observed.
	cfg.BlockSize = max(1, min(cfg.BlockSize, cfg.Hop()))

	engine := spectral.NewEngine()
	if err := engine.Allocate(cfg); err != nil {
		return info, err
	}
	defer engine.Teardown()

	scale := float32(audio.IntMaxSignedValue(info.BitDepth))
	if scale == 0 {
		return info, fmt.Errorf("%s: unsupported bit depth %d: %w", path, info.BitDepth, ErrNotWAV)
	}

	buf := &audio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, cfg.BlockSize*cfg.Channels),
	}
	in := make([]float32, len(buf.Data))
	out := make([]float32, len(buf.Data))

	log := applog.Named("file")
	log.Debugf("%s: %d Hz, %d ch, %d bit", path, info.SampleRate, info.Channels, info.BitDepth)

	var seen uint64
	for {
		if err := ctx.Err(); err != nil {
			return info, err
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return info, fmt.Errorf("%s: decode: %w", path, err)
		}
		frames := n / info.Channels
		if frames == 0 {
			break
		}

		samples := in[:frames*info.Channels]
		for i := range samples {
			samples[i] = float32(buf.Data[i]) / scale
		}
		engine.Process(samples, out, frames, info.Channels, false)
		info.Frames += int64(frames)

		windows, _ := engine.Stats()
		if windows == seen {
			continue
		}
		seen = windows

		snap, err := engine.CurrentSpectrum()
		if err != nil {
			return info, err
		}
		if err := fn(snap); err != nil {
			return info, err
		}
	}

	info.Windows = seen
	log.Debugf("%s: %d frames, %d windows", path, info.Frames, info.Windows)
	return info, nil
}
