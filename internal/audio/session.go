package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a Session lifecycle state.
type State int32

const (
	Uninitialized State = iota
	Initialized
	Recording
	Stopped
	Released
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Released:
		return "released"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Resolve validates cfg against the backend's minimum buffer size and fills
// in BufferSampleCount from Sizing when it is zero.
func Resolve(b Backend, cfg CaptureConfig) (CaptureConfig, error) {
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	minSize, err := b.MinBufferSize(cfg.Source, cfg.SampleRateHz, cfg.Channels, cfg.Encoding)
	if err != nil {
		return cfg, err
	}

	ch := cfg.Channels.Channels()
	if cfg.BufferSampleCount == 0 {
		switch cfg.Sizing {
		case SizingMinimum:
			cfg.BufferSampleCount = roundUp(minSize+1, ch)
		default:
			cfg.BufferSampleCount = roundUp(max(2*minSize, minSize+1), ch)
		}
	}

	if cfg.BufferSampleCount <= minSize {
		return cfg, fmt.Errorf("%w: buffer of %d samples must exceed device minimum %d", ErrConfig, cfg.BufferSampleCount, minSize)
	}
	if cfg.BufferSampleCount%ch != 0 {
		return cfg, fmt.Errorf("%w: buffer of %d samples is not a whole number of %s frames", ErrConfig, cfg.BufferSampleCount, cfg.Channels)
	}
	return cfg, nil
}

func roundUp(n, multiple int) int {
	if r := n % multiple; r != 0 {
		return n + multiple - r
	}
	return n
}

// Session owns one hardware capture handle and the raw buffer it reads into.
// A Session is not safe for concurrent use except for State, which may be
// read from any goroutine.
type Session struct {
	id     uuid.UUID
	log    zerolog.Logger
	cfg    CaptureConfig
	handle Handle
	raw    *Buffer
	state  atomic.Int32
}

// Open resolves cfg, allocates the raw buffer in the device's native
// encoding and opens a handle in the Initialized state. Capture does not
// begin until StartCapture.
func Open(b Backend, cfg CaptureConfig, log zerolog.Logger) (*Session, error) {
	cfg, err := Resolve(b, cfg)
	if err != nil {
		return nil, err
	}

	native := Int16
	if cfg.Encoding == Float32 && b.NativeFloat32(cfg.Source) {
		native = Float32
	}

	id := uuid.New()
	log = log.With().Str("session", id.String()).Logger()

	raw := NewBuffer(native, cfg.BufferSampleCount)
	handle, err := b.Open(cfg, raw)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:     id,
		log:    log,
		cfg:    cfg,
		handle: handle,
		raw:    raw,
	}
	s.state.Store(int32(Initialized))

	log.Debug().
		Str("source", string(cfg.Source)).
		Int("sample_rate", cfg.SampleRateHz).
		Stringer("channels", cfg.Channels).
		Stringer("native", native).
		Int("buffer", cfg.BufferSampleCount).
		Msg("Opened capture session")

	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Config returns the resolved capture config.
func (s *Session) Config() CaptureConfig { return s.cfg }

// NativeEncoding is the encoding the device reads in.
func (s *Session) NativeEncoding() Encoding { return s.raw.Encoding }

// Buffer returns the raw buffer bound to the handle. Passing it to
// ReadInto avoids a copy.
func (s *Session) Buffer() *Buffer { return s.raw }

// StartCapture moves the session from Initialized to Recording.
func (s *Session) StartCapture() error {
	if st := s.State(); st != Initialized {
		return fmt.Errorf("%w: start capture in state %s", ErrInvalidState, st)
	}
	if err := s.handle.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceInitFailed, err)
	}
	// Devices may accept Start and still not be running.
	if !s.handle.Active() {
		return fmt.Errorf("%w: stream not active after start", ErrDeviceInitFailed)
	}
	s.state.Store(int32(Recording))
	s.log.Debug().Msg("Capture started")
	return nil
}

// ReadInto blocks until buf is filled with buf.Len() samples and returns
// that count. buf must be in the native encoding and sized to the session
// buffer.
func (s *Session) ReadInto(buf *Buffer) (int, error) {
	if st := s.State(); st != Recording {
		return 0, fmt.Errorf("%w: read in state %s", ErrInvalidState, st)
	}
	if buf.Encoding != s.raw.Encoding || buf.Len() != s.raw.Len() {
		return 0, fmt.Errorf("%w: read into %d %s samples, session reads %d %s",
			ErrInvalidState, buf.Len(), buf.Encoding, s.raw.Len(), s.raw.Encoding)
	}

	if err := s.handle.Read(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeviceRead, err)
	}

	if buf != s.raw {
		copy(buf.Int16, s.raw.Int16)
		copy(buf.Float32, s.raw.Float32)
	}
	return buf.Len(), nil
}

// StopCapture moves the session from Recording to Stopped. Stopping an
// already stopped session does nothing.
func (s *Session) StopCapture() error {
	switch st := s.State(); st {
	case Stopped:
		return nil
	case Recording:
	default:
		return fmt.Errorf("%w: stop capture in state %s", ErrInvalidState, st)
	}
	s.state.Store(int32(Stopped))
	if err := s.handle.Stop(); err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}
	s.log.Debug().Msg("Capture stopped")
	return nil
}

// Release frees the hardware handle. It is normally called after
// StopCapture but may abandon an Initialized or Recording session on an
// error path. A session can be released only once.
func (s *Session) Release() error {
	prev := State(s.state.Swap(int32(Released)))
	if prev == Released {
		return fmt.Errorf("%w: session already released", ErrInvalidState)
	}
	if err := s.handle.Close(); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	s.log.Debug().Stringer("from", prev).Msg("Session released")
	return nil
}
