package audio

import (
	"fmt"
	"strings"
)

// Source selects a capture input. SourceDefault picks the platform default
// input device; any other value is matched against device names.
type Source string

const SourceDefault Source = "default"

// IsDefault reports whether s selects the platform default input.
func (s Source) IsDefault() bool {
	return s == "" || s == SourceDefault
}

// ChannelLayout is the number of interleaved channels captured.
type ChannelLayout int

const (
	Mono   ChannelLayout = 1
	Stereo ChannelLayout = 2
)

// Channels returns the channel count.
func (c ChannelLayout) Channels() int {
	return int(c)
}

func (c ChannelLayout) String() string {
	switch c {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	}
	return fmt.Sprintf("ChannelLayout(%d)", int(c))
}

// ParseChannelLayout accepts "mono" or "stereo". Empty means mono.
func ParseChannelLayout(s string) (ChannelLayout, error) {
	switch strings.ToLower(s) {
	case "", "mono":
		return Mono, nil
	case "stereo":
		return Stereo, nil
	}
	return 0, fmt.Errorf("%w: unknown channel layout %q", ErrConfig, s)
}

// Encoding is a sample representation.
type Encoding int

const (
	Int16 Encoding = iota + 1
	Float32
)

func (e Encoding) String() string {
	switch e {
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// ParseEncoding accepts "int16" or "float32". Empty means int16.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", "int16", "pcm16":
		return Int16, nil
	case "float32", "f32":
		return Float32, nil
	}
	return 0, fmt.Errorf("%w: unknown sample encoding %q", ErrConfig, s)
}

// Sizing chooses the buffer size when none is given explicitly.
type Sizing int

const (
	// SizingDouble uses twice the device minimum.
	SizingDouble Sizing = iota
	// SizingMinimum uses the smallest legal size, one frame above the
	// device minimum.
	SizingMinimum
)

// ParseSizing accepts "double" or "minimum". Empty means double.
func ParseSizing(s string) (Sizing, error) {
	switch strings.ToLower(s) {
	case "", "double":
		return SizingDouble, nil
	case "minimum", "min":
		return SizingMinimum, nil
	}
	return 0, fmt.Errorf("%w: unknown buffer sizing %q", ErrConfig, s)
}

// CaptureConfig describes one capture setup.
type CaptureConfig struct {
	Source       Source
	SampleRateHz int
	Channels     ChannelLayout
	Encoding     Encoding

	// BufferSampleCount is the number of samples per chunk, interleaved
	// across channels. Zero derives it from Sizing.
	BufferSampleCount int
	Sizing            Sizing
}

// DefaultCaptureConfig is 16 kHz mono Int16 from the default input with
// a buffer twice the device minimum.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Source:       SourceDefault,
		SampleRateHz: 16000,
		Channels:     Mono,
		Encoding:     Int16,
		Sizing:       SizingDouble,
	}
}

// Validate checks the fields that do not depend on a device.
func (c CaptureConfig) Validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrConfig, c.SampleRateHz)
	}
	if c.Channels != Mono && c.Channels != Stereo {
		return fmt.Errorf("%w: unsupported channel layout %v", ErrConfig, c.Channels)
	}
	if c.Encoding != Int16 && c.Encoding != Float32 {
		return fmt.Errorf("%w: unsupported sample encoding %v", ErrConfig, c.Encoding)
	}
	if c.BufferSampleCount < 0 {
		return fmt.Errorf("%w: negative buffer size %d", ErrConfig, c.BufferSampleCount)
	}
	return nil
}

// Device describes an audio input device
type Device struct {
	ID      string
	Name    string
	Default bool
}

// Backend is the platform capture API a Session drives.
type Backend interface {
	// MinBufferSize returns the smallest buffer, in samples, the device
	// accepts for the given format.
	MinBufferSize(src Source, sampleRateHz int, channels ChannelLayout, enc Encoding) (int, error)

	// NativeFloat32 reports whether src captures float samples directly.
	NativeFloat32(src Source) bool

	// Open allocates a capture handle that reads into buf.
	Open(cfg CaptureConfig, buf *Buffer) (Handle, error)
}

// Handle is an opened hardware capture stream bound to one Buffer.
type Handle interface {
	Start() error
	// Active reports whether the stream is running after Start.
	Active() bool
	// Read blocks until the bound buffer is full.
	Read() error
	Stop() error
	Close() error
}
