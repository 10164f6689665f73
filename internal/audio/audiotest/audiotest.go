// Package audiotest provides an in-memory audio.Backend for tests.
package audiotest

import (
	"errors"
	"sync"

	"github.com/petems/deeply-recorder/internal/audio"
)

// ErrDisconnected is returned by Read once Input is closed.
var ErrDisconnected = errors.New("audiotest: device disconnected")

// Backend is a fake capture device. The zero value reports a minimum of
// zero and fills every read with the read's sequence number.
type Backend struct {
	MinSize int
	Float   bool
	// DeviceList is returned by Devices.
	DeviceList []audio.Device

	MinErr   error
	OpenErr  error
	StartErr error
	// Inactive makes Start succeed while leaving the stream not running.
	Inactive bool

	// Input supplies Int16 samples in arbitrary pieces. When set, Read
	// blocks until the bound buffer is full and fails once Input is closed.
	Input chan []int16

	// ReadErr is returned by read number FailAt (1-based) when set.
	ReadErr error
	FailAt  int

	mu      sync.Mutex
	handles []*Handle
}

func (b *Backend) MinBufferSize(audio.Source, int, audio.ChannelLayout, audio.Encoding) (int, error) {
	if b.MinErr != nil {
		return 0, b.MinErr
	}
	return b.MinSize, nil
}

func (b *Backend) Devices() ([]audio.Device, error) {
	return b.DeviceList, nil
}

func (b *Backend) NativeFloat32(audio.Source) bool {
	return b.Float
}

func (b *Backend) Open(_ audio.CaptureConfig, buf *audio.Buffer) (audio.Handle, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	h := &Handle{b: b, buf: buf}
	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.mu.Unlock()
	return h, nil
}

// Handles returns every handle opened so far.
func (b *Backend) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Handle(nil), b.handles...)
}

// Last returns the most recently opened handle, or nil.
func (b *Backend) Last() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

// Handle is a fake capture stream.
type Handle struct {
	b   *Backend
	buf *audio.Buffer

	pending []int16

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
	reads   int
}

func (h *Handle) Start() error {
	if h.b.StartErr != nil {
		return h.b.StartErr
	}
	h.mu.Lock()
	h.started = !h.b.Inactive
	h.mu.Unlock()
	return nil
}

func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started && !h.stopped && !h.closed
}

func (h *Handle) Read() error {
	h.mu.Lock()
	h.reads++
	n := h.reads
	h.mu.Unlock()

	if h.b.ReadErr != nil && n == h.b.FailAt {
		return h.b.ReadErr
	}

	if h.b.Input == nil {
		for i := 0; i < h.buf.Len(); i++ {
			h.put(i, int16(n))
		}
		return nil
	}

	for filled := 0; filled < h.buf.Len(); {
		if len(h.pending) == 0 {
			p, ok := <-h.b.Input
			if !ok {
				return ErrDisconnected
			}
			h.pending = p
		}
		c := min(h.buf.Len()-filled, len(h.pending))
		for i, v := range h.pending[:c] {
			h.put(filled+i, v)
		}
		h.pending = h.pending[c:]
		filled += c
	}
	return nil
}

func (h *Handle) put(i int, v int16) {
	if h.buf.Encoding == audio.Float32 {
		h.buf.Float32[i] = float32(v) / 32768
		return
	}
	h.buf.Int16[i] = v
}

func (h *Handle) Stop() error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	return nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

// Reads returns how many reads have started.
func (h *Handle) Reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}

// Stopped reports whether Stop was called.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Closed reports whether the handle was released.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Buffer returns the buffer bound at open.
func (h *Handle) Buffer() *audio.Buffer {
	return h.buf
}
