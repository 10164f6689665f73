package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/deeply-recorder/internal/recorder"
)

// StatusUpdater is an interface for updating status (e.g., a recording indicator)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetError()
}

// Recorder is the capture core the app drives.
type Recorder interface {
	Run(ctx context.Context, sink recorder.Sink) error
	Stop()
}

type Config struct {
	Recorder      Recorder
	Sink          recorder.Sink
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

// App starts and stops recording on behalf of a front end and keeps at
// most one capture running.
type App struct {
	rec    Recorder
	sink   recorder.Sink
	log    zerolog.Logger
	status StatusUpdater

	mu        sync.Mutex
	recording bool
	audioStop context.CancelFunc
	done      chan struct{}
	lastErr   error
}

func New(cfg Config) *App {
	done := make(chan struct{})
	close(done)

	return &App{
		rec:    cfg.Recorder,
		sink:   cfg.Sink,
		log:    cfg.Logger,
		status: cfg.StatusUpdater,
		done:   done,
	}
}

// StartRecording begins capture in the background. It does nothing if a
// capture is already running.
func (a *App) StartRecording() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		return
	}

	a.log.Info().Msg("Starting recording")
	a.recording = true
	a.lastErr = nil

	if a.status != nil {
		a.status.SetRecording()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.audioStop = cancel
	done := make(chan struct{})
	a.done = done

	go func() {
		defer close(done)
		defer cancel()

		err := a.rec.Run(ctx, a.sink)
		if errors.Is(err, context.Canceled) {
			err = nil
		}

		a.mu.Lock()
		a.recording = false
		a.lastErr = err
		a.mu.Unlock()

		if err != nil {
			a.log.Error().Err(err).Msg("Recording failed")
			if a.status != nil {
				a.status.SetError()
			}
			return
		}

		a.log.Info().Msg("Recording stopped")
		if a.status != nil {
			a.status.SetIdle()
		}
	}()
}

// StopRecording asks the running capture to end and returns without
// waiting for it.
func (a *App) StopRecording() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.recording {
		return
	}

	a.log.Info().Msg("Stopping recording")
	a.rec.Stop()
	// Covers a capture that has not reached Start yet.
	a.audioStop()
}

// Toggle starts recording when idle and stops it otherwise.
func (a *App) Toggle() {
	if a.IsRecording() {
		a.StopRecording()
	} else {
		a.StartRecording()
	}
}

func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// Done is closed when the current capture has ended.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Err returns the error that ended the last capture, if any.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Shutdown stops recording and waits for the device to be released.
func (a *App) Shutdown(ctx context.Context) error {
	a.StopRecording()

	select {
	case <-a.Done():
		return a.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
