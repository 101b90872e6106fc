package core

import (
	"time"

	"github.com/loov/hrtime"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond == 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	now := hrtime.Now()
	return &Time{
		fps:            cfg.FramesPerSecond,
		fpsTicker:      time.NewTicker(interval),
		eventPollDelay: cfg.EventPollDelay,
		eventTicker:    time.NewTicker(time.Duration(cfg.EventPollDelay) * time.Millisecond),
		start:          now,
		last:           now,
	}
}

// Time contains all the time services and tickers
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	eventPollDelay int
	eventTicker    *time.Ticker

	// high resolution timestamps
	start, last time.Duration
	delta       time.Duration
	frames      int64
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// EventTicker gets the initialized event ticker for the event loop
func (t *Time) EventTicker() *time.Ticker {
	return t.eventTicker
}

// Frame marks the start of a frame and returns the time since the
// previous one.
func (t *Time) Frame() time.Duration {
	now := hrtime.Now()
	t.delta = now - t.last
	t.last = now
	t.frames++
	return t.delta
}

// Delta returns the duration of the last frame.
func (t *Time) Delta() time.Duration {
	return t.delta
}

// Frames returns the number of frames marked.
func (t *Time) Frames() int64 {
	return t.frames
}

// Elapsed returns the time since the service was created.
func (t *Time) Elapsed() time.Duration {
	return hrtime.Since(t.start)
}

// Stop stops the tickers.
func (t *Time) Stop() {
	t.fpsTicker.Stop()
	t.eventTicker.Stop()
}
