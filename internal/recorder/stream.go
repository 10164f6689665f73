package recorder

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/petems/deeply-recorder/internal/audio"
)

// Chunk is one buffer of samples in the recorder's configured encoding.
// Only the slice matching Encoding is set. The slices are reused for the
// next read: they are valid until the next call to Stream.Next.
type Chunk struct {
	Seq      uint64
	Encoding audio.Encoding
	Int16    []int16
	Float32  []float32
}

// Len returns the number of samples.
func (c Chunk) Len() int {
	if c.Encoding == audio.Float32 {
		return len(c.Float32)
	}
	return len(c.Int16)
}

// Clone returns a copy that does not share memory with the recorder.
func (c Chunk) Clone() Chunk {
	out := Chunk{Seq: c.Seq, Encoding: c.Encoding}
	if c.Int16 != nil {
		out.Int16 = append([]int16(nil), c.Int16...)
	}
	if c.Float32 != nil {
		out.Float32 = append([]float32(nil), c.Float32...)
	}
	return out
}

// Stream is a single-consumer sequence of chunks:
//
//	s, err := rec.Start(ctx)
//	...
//	for s.Next() {
//		process(s.Chunk())
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
//
// A Stream must not be used from more than one goroutine, except for
// Close.
type Stream struct {
	rec  *Recorder
	ctx  context.Context
	prev *Stream

	stopped atomic.Bool
	stopCh  chan struct{}

	once    sync.Once
	pull    chan struct{}
	out     chan Chunk
	done    chan struct{}
	session atomic.Pointer[audio.Session]
	err     error

	cur Chunk
}

func newStream(ctx context.Context, rec *Recorder, prev *Stream) *Stream {
	return &Stream{
		rec:    rec,
		ctx:    ctx,
		prev:   prev,
		stopCh: make(chan struct{}),
		pull:   make(chan struct{}),
		out:    make(chan Chunk),
		done:   make(chan struct{}),
	}
}

// Next releases the current chunk and blocks until the next one has been
// read. It returns false once the stream has ended.
func (s *Stream) Next() bool {
	s.once.Do(func() { go s.produce() })

	select {
	case s.pull <- struct{}{}:
	case <-s.done:
		s.cur = Chunk{}
		return false
	}

	select {
	case c := <-s.out:
		s.cur = c
		return true
	case <-s.done:
		s.cur = Chunk{}
		return false
	}
}

// Chunk returns the chunk read by the last successful Next.
func (s *Stream) Chunk() Chunk {
	return s.cur
}

// Err returns the error that ended the stream, or nil if it was stopped.
// It is nil while the stream is running.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close stops the stream and waits for the device to be released.
func (s *Stream) Close() error {
	s.stop()
	<-s.done
	return s.err
}

// ending reports whether the stream has been told to end.
func (s *Stream) ending() bool {
	return s.stopped.Load() || s.ctx.Err() != nil
}

func (s *Stream) stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	// A stream nobody pulled from never opened a device, but it still
	// finishes after the stream it replaced.
	s.once.Do(func() {
		prev := s.prev
		if prev == nil {
			s.finish()
			return
		}
		s.prev = nil
		go func() {
			<-prev.done
			s.finish()
		}()
	})
}

func (s *Stream) finish() {
	s.rec.detach(s)
	close(s.done)
}

func (s *Stream) produce() {
	defer s.finish()

	log := s.rec.log
	cfg := s.rec.cfg

	// The stream this one replaced is already stopped; done closes once
	// its device is released.
	if prev := s.prev; prev != nil {
		s.prev = nil
		<-prev.done
	}

	if s.stopped.Load() {
		return
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return
	}

	sess, err := audio.Open(s.rec.backend, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open capture session")
		s.err = err
		return
	}
	s.session.Store(sess)
	defer s.release(sess)

	if err := sess.StartCapture(); err != nil {
		log.Error().Err(err).Str("session", sess.ID().String()).Msg("Failed to start capture")
		s.err = err
		return
	}

	raw := sess.Buffer()
	var converted []float32
	if cfg.Encoding == audio.Float32 && raw.Encoding == audio.Int16 {
		converted = make([]float32, raw.Len())
	}

	log.Info().
		Str("session", sess.ID().String()).
		Stringer("native", raw.Encoding).
		Bool("converting", converted != nil).
		Msg("Capture started")

	var seq uint64
	defer func() {
		log.Info().Str("session", sess.ID().String()).Uint64("chunks", seq).Msg("Capture ended")
	}()

	for {
		// A pull both requests a chunk and acknowledges the previous one.
		select {
		case <-s.pull:
		case <-s.stopCh:
			return
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return
		}
		if s.stopped.Load() {
			return
		}
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return
		}

		if _, err := sess.ReadInto(raw); err != nil {
			log.Error().Err(err).Str("session", sess.ID().String()).Msg("Capture read failed")
			s.err = err
			return
		}

		c := Chunk{Seq: seq, Encoding: cfg.Encoding}
		switch {
		case converted != nil:
			audio.Int16ToFloat32(converted, raw.Int16)
			c.Float32 = converted
		case raw.Encoding == audio.Float32:
			c.Float32 = raw.Float32
		default:
			c.Int16 = raw.Int16
		}
		seq++

		s.out <- c
	}
}

// release stops and frees the session on every exit path.
func (s *Stream) release(sess *audio.Session) {
	log := s.rec.log.With().Str("session", sess.ID().String()).Logger()

	if sess.State() == audio.Recording {
		if err := sess.StopCapture(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop capture")
		}
	}
	if err := sess.Release(); err != nil {
		log.Warn().Err(err).Msg("Failed to release session")
	}
}
