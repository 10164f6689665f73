package audio

// Buffer is a fixed-length sample container in a single encoding. Only the
// slice matching Encoding is set.
type Buffer struct {
	Encoding Encoding
	Int16    []int16
	Float32  []float32
}

// NewBuffer allocates a zeroed buffer of n samples.
func NewBuffer(enc Encoding, n int) *Buffer {
	b := &Buffer{Encoding: enc}
	switch enc {
	case Float32:
		b.Float32 = make([]float32, n)
	default:
		b.Encoding = Int16
		b.Int16 = make([]int16, n)
	}
	return b
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	if b.Encoding == Float32 {
		return len(b.Float32)
	}
	return len(b.Int16)
}

// Samples returns the backing slice as []int16 or []float32, the form
// PortAudio expects for a bound buffer.
func (b *Buffer) Samples() any {
	if b.Encoding == Float32 {
		return b.Float32
	}
	return b.Int16
}

// Int16ToFloat32 writes src scaled to [-1, 1) into dst. dst must be at least
// as long as src.
func Int16ToFloat32(dst []float32, src []int16) {
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float32(v) / 32768
	}
}
