package audio

import (
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// PortAudio is a Backend over the host's PortAudio library.
type PortAudio struct {
	log zerolog.Logger
}

// NewPortAudio initializes PortAudio. Close must be called to terminate it.
func NewPortAudio(log zerolog.Logger) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudio{log: log}, nil
}

// Close terminates PortAudio.
func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

// Devices lists input devices
func (p *PortAudio) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *PortAudio) device(src Source) (*portaudio.DeviceInfo, error) {
	if src.IsDefault() {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnsupported, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == string(src) && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: device not found: %s", ErrDeviceUnsupported, src)
}

func (p *PortAudio) params(device *portaudio.DeviceInfo, rate int, channels ChannelLayout, frames int) portaudio.StreamParameters {
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels.Channels(),
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: frames,
	}
}

// MinBufferSize derives the minimum from the device's low input latency.
func (p *PortAudio) MinBufferSize(src Source, sampleRateHz int, channels ChannelLayout, enc Encoding) (int, error) {
	device, err := p.device(src)
	if err != nil {
		return 0, err
	}
	if device.MaxInputChannels < channels.Channels() {
		return 0, fmt.Errorf("%w: %s has %d input channels, %s requested",
			ErrDeviceUnsupported, device.Name, device.MaxInputChannels, channels)
	}

	frames := int(math.Ceil(device.DefaultLowInputLatency.Seconds() * float64(sampleRateHz)))
	frames = max(frames, 1)

	probe := NewBuffer(enc, frames*channels.Channels())
	if err := portaudio.IsFormatSupported(p.params(device, sampleRateHz, channels, frames), probe.Samples()); err != nil {
		return 0, fmt.Errorf("%w: %d Hz %s %s on %s: %v",
			ErrDeviceUnsupported, sampleRateHz, channels, enc, device.Name, err)
	}

	return frames * channels.Channels(), nil
}

// NativeFloat32 is always true: PortAudio converts to float32 in the host
// layer for every device.
func (p *PortAudio) NativeFloat32(Source) bool {
	return true
}

// Open opens a blocking input stream reading into buf.
func (p *PortAudio) Open(cfg CaptureConfig, buf *Buffer) (Handle, error) {
	device, err := p.device(cfg.Source)
	if err != nil {
		return nil, err
	}

	frames := buf.Len() / cfg.Channels.Channels()
	stream, err := portaudio.OpenStream(p.params(device, cfg.SampleRateHz, cfg.Channels, frames), buf.Samples())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open audio stream: %v", ErrDeviceUnsupported, err)
	}

	p.log.Debug().
		Str("device", device.Name).
		Int("frames", frames).
		Msg("Opened PortAudio input stream")

	return &portAudioStream{stream: stream, log: p.log}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	log    zerolog.Logger
}

func (s *portAudioStream) Start() error {
	return s.stream.Start()
}

// Active stands in for Pa_IsStreamActive, which the binding does not
// expose: a stream that is not running fails AvailableToRead.
func (s *portAudioStream) Active() bool {
	if s.stream.Info() == nil {
		return false
	}
	_, err := s.stream.AvailableToRead()
	return err == nil
}

func (s *portAudioStream) Read() error {
	err := s.stream.Read()
	if err == portaudio.InputOverflowed {
		// Samples were lost before this read but the buffer is full.
		s.log.Warn().Msg("Input overflowed")
		return nil
	}
	return err
}

func (s *portAudioStream) Stop() error {
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
