package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/deeply-recorder/internal/app"
	"github.com/petems/deeply-recorder/internal/audio"
	"github.com/petems/deeply-recorder/internal/config"
	"github.com/petems/deeply-recorder/internal/logging"
	"github.com/petems/deeply-recorder/internal/permissions"
	"github.com/petems/deeply-recorder/internal/recorder"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

// inputBackend is a capture backend that can also enumerate its devices.
type inputBackend interface {
	audio.Backend
	Devices() ([]audio.Device, error)
}

type options struct {
	listDevices bool
	duration    time.Duration
}

func main() {
	configPath := flag.String("config", config.Path(), "Path to the JSON config file.")
	listDevices := flag.Bool("list-devices", false, "List input devices and exit.")
	duration := flag.Duration("duration", 0, "Stop recording after this long (0 records until interrupted).")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.NewWithLevel(cfg.LogLevel)
	log.Info().Str("version", Version).Str("commit", Commit).Msg("deeply-recorder starting...")

	backend, err := audio.NewPortAudio(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}

	// log.Fatal exits without running defers, so PortAudio is terminated here.
	err = run(log, cfg, backend, os.Stdout, options{listDevices: *listDevices, duration: *duration})
	if cerr := backend.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("Failed to terminate audio")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Recording failed")
	}
}

func run(log zerolog.Logger, cfg *config.Config, backend inputBackend, out io.Writer, opts options) error {
	if opts.listDevices {
		devices, err := backend.Devices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, d.Name)
		}
		return nil
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		return fmt.Errorf("required permissions not granted: %w", err)
	}

	capture, err := cfg.Audio.Capture()
	if err != nil {
		return fmt.Errorf("invalid audio config: %w", err)
	}

	rec, err := recorder.New(backend, capture,
		recorder.WithLogger(log),
		recorder.WithAuthorizer(permissions.Microphone{}),
	)
	if err != nil {
		return fmt.Errorf("configure recorder: %w", err)
	}

	application := app.New(app.Config{
		Recorder: rec,
		Logger:   log,
		Sink: recorder.SinkFunc(func(c recorder.Chunk) error {
			log.Debug().
				Uint64("seq", c.Seq).
				Float64("peak_dbfs", peakDBFS(c)).
				Msgf("%d audio samples recorded", c.Len())
			return nil
		}),
	})

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var timeout <-chan time.Time
	if opts.duration > 0 {
		timeout = time.After(opts.duration)
	}

	log.Info().
		Int("sample_rate", capture.SampleRateHz).
		Int("buffer", rec.BufferSize()).
		Msg("Recording, press Ctrl+C to stop")
	application.StartRecording()

	select {
	case <-sigChan:
	case <-timeout:
	case <-application.Done():
	}

	log.Info().Msg("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A device hung in a blocking read cannot be interrupted; give up after the timeout.
	return application.Shutdown(ctx)
}

// peakDBFS returns the chunk's peak level relative to full scale.
func peakDBFS(c recorder.Chunk) float64 {
	var peak float64
	for _, v := range c.Int16 {
		peak = math.Max(peak, math.Abs(float64(v)/32768))
	}
	for _, v := range c.Float32 {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(peak)
}
