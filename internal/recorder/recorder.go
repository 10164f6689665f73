// Package recorder turns a blocking audio capture device into a stream of
// fixed-size sample chunks.
//
// Chunks are handed over synchronously: the device is not read again until
// the consumer asks for the next chunk, so at most one chunk is in flight
// and a slow consumer delays capture instead of queueing memory. A slow
// consumer can therefore overrun the device's own ring buffer.
//
// Stopping is cooperative. Stop takes effect at the next loop boundary; a
// read already blocked in the device completes first, and a device that
// never returns from a read cannot be interrupted.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/deeply-recorder/internal/audio"
)

// ErrPermissionDenied is returned by Start when microphone access has not
// been granted.
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrAlreadyRecording is returned by Start while another stream is live.
var ErrAlreadyRecording = fmt.Errorf("%w: already recording", audio.ErrInvalidState)

// Authorizer reports whether the process may capture from the microphone.
type Authorizer interface {
	MicrophoneAuthorized() (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func() (bool, error)

func (f AuthorizerFunc) MicrophoneAuthorized() (bool, error) { return f() }

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// WithAuthorizer makes Start check microphone authorization. Without one,
// the caller is trusted to have checked.
func WithAuthorizer(auth Authorizer) Option {
	return func(r *Recorder) { r.auth = auth }
}

// Recorder captures audio from one backend with a fixed configuration.
// Its methods are safe for concurrent use.
type Recorder struct {
	backend audio.Backend
	cfg     audio.CaptureConfig
	log     zerolog.Logger
	auth    Authorizer

	mu      sync.Mutex
	current *Stream
}

// New resolves cfg against the backend. It fails with audio.ErrConfig when
// the buffer does not exceed the device minimum and with
// audio.ErrDeviceUnsupported when the device rejects the format.
func New(backend audio.Backend, cfg audio.CaptureConfig, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		backend: backend,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	resolved, err := audio.Resolve(backend, cfg)
	if err != nil {
		return nil, err
	}
	r.cfg = resolved

	r.log.Debug().
		Int("sample_rate", resolved.SampleRateHz).
		Stringer("channels", resolved.Channels).
		Stringer("encoding", resolved.Encoding).
		Int("buffer", resolved.BufferSampleCount).
		Msg("Recorder configured")

	return r, nil
}

// Config returns the resolved capture config.
func (r *Recorder) Config() audio.CaptureConfig {
	return r.cfg
}

// BufferSize is the number of samples in every chunk.
func (r *Recorder) BufferSize() int {
	return r.cfg.BufferSampleCount
}

// Start returns a stream of chunks. The device is opened lazily by the
// first call to Next. Cancelling ctx ends the stream like Stop. Start may
// be called as soon as the previous stream has been stopped.
func (r *Recorder) Start(ctx context.Context) (*Stream, error) {
	if r.auth != nil {
		ok, err := r.auth.MicrophoneAuthorized()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		if !ok {
			return nil, ErrPermissionDenied
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current
	if prev != nil && !prev.ending() {
		return nil, ErrAlreadyRecording
	}

	// A stopped stream may still be releasing its device; the new one
	// waits for it before opening.
	if prev != nil {
		prev.stop()
	}
	s := newStream(ctx, r, prev)
	r.current = s
	return s, nil
}

// Stop asks the live stream to end. It returns immediately, is safe to call
// from any goroutine, and does nothing if no stream is live.
func (r *Recorder) Stop() {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()

	if s != nil {
		s.stop()
	}
}

// IsRecording reports whether a device session is currently capturing.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()

	if s == nil {
		return false
	}
	sess := s.session.Load()
	return sess != nil && sess.State() == audio.Recording
}

func (r *Recorder) detach(s *Stream) {
	r.mu.Lock()
	if r.current == s {
		r.current = nil
	}
	r.mu.Unlock()
}

// Sink consumes chunks pushed by Run.
type Sink interface {
	// Consume handles one chunk. The chunk's samples are overwritten after
	// Consume returns; use Chunk.Clone to keep them.
	Consume(Chunk) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Chunk) error

func (f SinkFunc) Consume(c Chunk) error { return f(c) }

// Run captures until Stop, ctx cancellation, a device error or a sink error,
// pushing every chunk to sink in capture order. It returns nil after Stop.
func (r *Recorder) Run(ctx context.Context, sink Sink) error {
	s, err := r.Start(ctx)
	if err != nil {
		return err
	}

	for s.Next() {
		c := s.Chunk()
		if err := sink.Consume(c); err != nil {
			s.Close()
			return fmt.Errorf("consume chunk %d: %w", c.Seq, err)
		}
	}
	return s.Err()
}
