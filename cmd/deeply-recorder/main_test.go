package main

import (
	"bytes"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/deeply-recorder/internal/audio"
	"github.com/petems/deeply-recorder/internal/audio/audiotest"
	"github.com/petems/deeply-recorder/internal/config"
	"github.com/petems/deeply-recorder/internal/recorder"
)

func TestPeakDBFS(t *testing.T) {
	tests := map[string]struct {
		chunk recorder.Chunk
		want  float64
	}{
		"silence": {
			chunk: recorder.Chunk{Encoding: audio.Int16, Int16: []int16{0, 0}},
			want:  math.Inf(-1),
		},
		"int16 full scale": {
			chunk: recorder.Chunk{Encoding: audio.Int16, Int16: []int16{0, -32768, 100}},
			want:  0,
		},
		"float32 half scale": {
			chunk: recorder.Chunk{Encoding: audio.Float32, Float32: []float32{0.25, -0.5}},
			want:  20 * math.Log10(0.5),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := peakDBFS(tt.chunk)
			if math.IsInf(tt.want, -1) {
				assert.True(t, math.IsInf(got, -1))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRunRecordsForDuration(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("needs microphone permission on macOS")
	}
	backend := &audiotest.Backend{MinSize: 16}
	cfg := config.Default()
	cfg.Audio.BufferSampleCount = 32

	err := run(zerolog.Nop(), cfg, backend, &bytes.Buffer{}, options{duration: 50 * time.Millisecond})
	require.NoError(t, err)

	require.Len(t, backend.Handles(), 1)
	assert.True(t, backend.Last().Closed())
	assert.Positive(t, backend.Last().Reads())
}

func TestRunReturnsSetupErrors(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("needs microphone permission on macOS")
	}
	tests := map[string]struct {
		mutate func(*config.Config)
		min    int
		want   error
	}{
		"unknown encoding": {
			mutate: func(c *config.Config) { c.Audio.Encoding = "mp3" },
			min:    16,
			want:   audio.ErrConfig,
		},
		"buffer at device minimum": {
			mutate: func(c *config.Config) { c.Audio.BufferSampleCount = 16 },
			min:    16,
			want:   audio.ErrConfig,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			backend := &audiotest.Backend{MinSize: tt.min}
			cfg := config.Default()
			tt.mutate(cfg)

			err := run(zerolog.Nop(), cfg, backend, &bytes.Buffer{}, options{})
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, backend.Handles())
		})
	}
}

func TestRunListsDevices(t *testing.T) {
	backend := &audiotest.Backend{DeviceList: []audio.Device{
		{ID: "0", Name: "Built-in Microphone", Default: true},
		{ID: "1", Name: "USB Audio"},
	}}

	var out bytes.Buffer
	err := run(zerolog.Nop(), config.Default(), backend, &out, options{listDevices: true})
	require.NoError(t, err)
	assert.Equal(t, "* Built-in Microphone\n  USB Audio\n", out.String())
	assert.Empty(t, backend.Handles())
}
