package audio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/deeply-recorder/internal/audio"
	"github.com/petems/deeply-recorder/internal/audio/audiotest"
)

func testConfig(buffer int) audio.CaptureConfig {
	cfg := audio.DefaultCaptureConfig()
	cfg.BufferSampleCount = buffer
	return cfg
}

func TestOpenBufferAgainstMinimum(t *testing.T) {
	backend := &audiotest.Backend{MinSize: 2048}

	tests := map[string]struct {
		buffer  int
		wantErr bool
	}{
		"below minimum":    {buffer: 1024, wantErr: true},
		"equal to minimum": {buffer: 2048, wantErr: true},
		"one above":        {buffer: 2049},
		"double":           {buffer: 4096},
		"large":            {buffer: 48000},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := audio.Open(backend, testConfig(tt.buffer), zerolog.Nop())
			if tt.wantErr {
				assert.ErrorIs(t, err, audio.ErrConfig)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, audio.Initialized, s.State())
			assert.Equal(t, tt.buffer, s.Buffer().Len())
		})
	}
}

func TestOpenUnsupportedFormat(t *testing.T) {
	backend := &audiotest.Backend{MinErr: audio.ErrDeviceUnsupported}

	_, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
	assert.ErrorIs(t, err, audio.ErrDeviceUnsupported)
	assert.Empty(t, backend.Handles())
}

func TestResolveSizing(t *testing.T) {
	tests := map[string]struct {
		channels audio.ChannelLayout
		sizing   audio.Sizing
		min      int
		want     int
	}{
		"double mono":            {channels: audio.Mono, sizing: audio.SizingDouble, min: 2048, want: 4096},
		"minimum mono":           {channels: audio.Mono, sizing: audio.SizingMinimum, min: 2048, want: 2049},
		"double stereo":          {channels: audio.Stereo, sizing: audio.SizingDouble, min: 1282, want: 2564},
		"minimum stereo":         {channels: audio.Stereo, sizing: audio.SizingMinimum, min: 1282, want: 1284},
		"minimum odd min":        {channels: audio.Stereo, sizing: audio.SizingMinimum, min: 1281, want: 1282},
		"double zero min":        {channels: audio.Mono, sizing: audio.SizingDouble, min: 0, want: 1},
		"double zero min stereo": {channels: audio.Stereo, sizing: audio.SizingDouble, min: 0, want: 2},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := audio.DefaultCaptureConfig()
			cfg.Channels = tt.channels
			cfg.Sizing = tt.sizing

			got, err := audio.Resolve(&audiotest.Backend{MinSize: tt.min}, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.BufferSampleCount)
			assert.Greater(t, got.BufferSampleCount, tt.min)
		})
	}
}

func TestResolveStereoNeedsWholeFrames(t *testing.T) {
	cfg := testConfig(4097)
	cfg.Channels = audio.Stereo

	_, err := audio.Resolve(&audiotest.Backend{MinSize: 2048}, cfg)
	assert.ErrorIs(t, err, audio.ErrConfig)
}

func TestOpenNativeEncoding(t *testing.T) {
	tests := map[string]struct {
		requested audio.Encoding
		float     bool
		want      audio.Encoding
	}{
		"int16 on float device":   {requested: audio.Int16, float: true, want: audio.Int16},
		"float32 on int16 device": {requested: audio.Float32, float: false, want: audio.Int16},
		"float32 on float device": {requested: audio.Float32, float: true, want: audio.Float32},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(4096)
			cfg.Encoding = tt.requested

			s, err := audio.Open(&audiotest.Backend{MinSize: 2048, Float: tt.float}, cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.NativeEncoding())
			assert.Equal(t, tt.want, s.Buffer().Encoding)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	backend := &audiotest.Backend{MinSize: 2048}
	s, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
	require.NoError(t, err)

	_, err = s.ReadInto(s.Buffer())
	assert.ErrorIs(t, err, audio.ErrInvalidState, "read before start")
	assert.ErrorIs(t, s.StopCapture(), audio.ErrInvalidState, "stop before start")

	require.NoError(t, s.StartCapture())
	assert.Equal(t, audio.Recording, s.State())
	assert.ErrorIs(t, s.StartCapture(), audio.ErrInvalidState, "double start")

	n, err := s.ReadInto(s.Buffer())
	require.NoError(t, err)
	assert.Equal(t, 4096, n)

	require.NoError(t, s.StopCapture())
	assert.Equal(t, audio.Stopped, s.State())
	assert.NoError(t, s.StopCapture(), "stop is idempotent")

	_, err = s.ReadInto(s.Buffer())
	assert.ErrorIs(t, err, audio.ErrInvalidState, "read after stop")

	require.NoError(t, s.Release())
	assert.Equal(t, audio.Released, s.State())
	assert.True(t, backend.Last().Closed())
	assert.ErrorIs(t, s.Release(), audio.ErrInvalidState, "double release")
}

func TestSessionReleaseWithoutStart(t *testing.T) {
	backend := &audiotest.Backend{MinSize: 2048}
	s, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Release())
	assert.Equal(t, audio.Released, s.State())
	assert.True(t, backend.Last().Closed())
}

func TestStartCaptureFailures(t *testing.T) {
	tests := map[string]*audiotest.Backend{
		"start call fails":          {MinSize: 2048, StartErr: errors.New("boom")},
		"inactive after start call": {MinSize: 2048, Inactive: true},
	}

	for name, backend := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
			require.NoError(t, err)

			err = s.StartCapture()
			assert.ErrorIs(t, err, audio.ErrDeviceInitFailed)
			assert.Equal(t, audio.Initialized, s.State())
			assert.NoError(t, s.Release())
		})
	}
}

func TestReadIntoBlocksUntilFull(t *testing.T) {
	input := make(chan []int16)
	backend := &audiotest.Backend{MinSize: 2048, Input: input}

	s, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.StartCapture())

	done := make(chan int, 1)
	go func() {
		n, err := s.ReadInto(s.Buffer())
		if err != nil {
			n = -1
		}
		done <- n
	}()

	want := make([]int16, 4096)
	for i := range want {
		want[i] = int16(i - 2048)
	}

	input <- want[:1000]
	input <- want[1000:3000]

	select {
	case <-done:
		t.Fatal("read returned before the buffer was full")
	case <-time.After(20 * time.Millisecond):
	}

	input <- want[3000:]

	select {
	case n := <-done:
		assert.Equal(t, 4096, n)
	case <-time.After(time.Second):
		t.Fatal("read did not return")
	}
	assert.Equal(t, want, s.Buffer().Int16)
}

func TestReadIntoCopiesToSeparateBuffer(t *testing.T) {
	backend := &audiotest.Backend{MinSize: 2048}
	s, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.StartCapture())

	dst := audio.NewBuffer(audio.Int16, 4096)
	n, err := s.ReadInto(dst)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, s.Buffer().Int16, dst.Int16)

	_, err = s.ReadInto(audio.NewBuffer(audio.Int16, 100))
	assert.ErrorIs(t, err, audio.ErrInvalidState)
	_, err = s.ReadInto(audio.NewBuffer(audio.Float32, 4096))
	assert.ErrorIs(t, err, audio.ErrInvalidState)
}

func TestReadIntoDisconnect(t *testing.T) {
	input := make(chan []int16)
	close(input)
	backend := &audiotest.Backend{MinSize: 2048, Input: input}

	s, err := audio.Open(backend, testConfig(4096), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.StartCapture())

	_, err = s.ReadInto(s.Buffer())
	assert.ErrorIs(t, err, audio.ErrDeviceRead)
	assert.ErrorContains(t, err, audiotest.ErrDisconnected.Error())
}

func TestBufferReusedAcrossReads(t *testing.T) {
	backend := &audiotest.Backend{MinSize: 16}
	s, err := audio.Open(backend, testConfig(32), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.StartCapture())

	first := &s.Buffer().Int16[0]
	for i := 1; i <= 3; i++ {
		_, err := s.ReadInto(s.Buffer())
		require.NoError(t, err)
		assert.Same(t, first, &s.Buffer().Int16[0])
		assert.Equal(t, int16(i), s.Buffer().Int16[0])
	}
}
