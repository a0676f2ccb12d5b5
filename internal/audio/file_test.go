// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xspectrum/internal/spectral"
	"xspectrum/pkg/utils"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes interleaved float samples as 16-bit PCM.
func writeWAV(t *testing.T, samples []float32, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32767)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func TestAnalyzeFile(t *testing.T) {
	path := writeWAV(t, utils.GenerateSineWave(8192, 44100, 1000, 0.8), 44100, 1)

	cfg := spectral.DefaultConfig()
	cfg.Overlap = 512
	cfg.SampleRate = 8000 // replaced by the file's rate

	var snaps []spectral.Snapshot
	info, err := AnalyzeFile(context.Background(), path, cfg, func(s spectral.Snapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}

	if info.SampleRate != 44100 || info.Channels != 1 || info.BitDepth != 16 || info.Frames != 8192 {
		t.Errorf("info = %+v", info)
	}
	if got, want := info.Duration(), 8192*time.Second/44100; got != want {
		t.Errorf("duration = %v, want %v", got, want)
	}

	// (8192 - 1024) / 512 + 1 windows.
	if len(snaps) != 15 || info.Windows != 15 {
		t.Fatalf("got %d snapshots and %d windows, want 15", len(snaps), info.Windows)
	}
	for i, s := range snaps {
		if want := int64(1024 + 512*i); s.Timestamp != want {
			t.Errorf("snapshot %d timestamp = %d, want %d", i, s.Timestamp, want)
		}
		if peak, _ := s.Peak(); peak != 3 {
			t.Errorf("snapshot %d peak bin = %d, want 3", i, peak)
		}
	}
}

func TestAnalyzeFileStereo(t *testing.T) {
	left := utils.GenerateSineWave(4096, 48000, 6000, 0.5)
	path := writeWAV(t, utils.Interleave(left, make([]float32, len(left))), 48000, 2)

	cfg := spectral.DefaultConfig()
	cfg.Mix = spectral.MixAverage

	var last spectral.Snapshot
	info, err := AnalyzeFile(context.Background(), path, cfg, func(s spectral.Snapshot) error {
		last = s
		return nil
	})
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if info.Channels != 2 || info.Windows != 4 {
		t.Errorf("info = %+v", info)
	}
	// 6 kHz of 24 kHz across 64 bins.
	if peak, _ := last.Peak(); peak != 16 {
		t.Errorf("peak bin = %d, want 16", peak)
	}
}

func TestAnalyzeFileErrors(t *testing.T) {
	cfg := spectral.DefaultConfig()
	noop := func(spectral.Snapshot) error { return nil }

	if _, err := AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), cfg, noop); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}

	junk := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(junk, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := AnalyzeFile(context.Background(), junk, cfg, noop); !errors.Is(err, ErrNotWAV) {
		t.Errorf("junk file: got %v", err)
	}

	path := writeWAV(t, utils.GenerateSineWave(4096, 44100, 1000, 0.5), 44100, 1)

	bad := cfg
	bad.Bins = 0
	if _, err := AnalyzeFile(context.Background(), path, bad, noop); !errors.Is(err, spectral.ErrConfiguration) {
		t.Errorf("bad config: got %v", err)
	}

	stop := errors.New("stop")
	calls := 0
	_, err := AnalyzeFile(context.Background(), path, cfg, func(spectral.Snapshot) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("callback error: got %v after %d calls", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := AnalyzeFile(ctx, path, cfg, noop); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}
}

func TestProbeFile(t *testing.T) {
	path := writeWAV(t, utils.Interleave(
		utils.GenerateSineWave(4800, 48000, 440, 0.5),
		utils.GenerateSineWave(4800, 48000, 880, 0.5),
	), 48000, 2)

	info, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if info.SampleRate != 48000 || info.Channels != 2 || info.BitDepth != 16 || info.Windows != 0 {
		t.Errorf("info = %+v", info)
	}
	if info.Frames < 4799 || info.Frames > 4801 {
		t.Errorf("frames = %d, want about 4800", info.Frames)
	}

	junk := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(junk, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ProbeFile(junk); !errors.Is(err, ErrNotWAV) {
		t.Errorf("junk file: err = %v, want ErrNotWAV", err)
	}
}
