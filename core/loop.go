package core

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"
)

// GameLoop drives a game from a single goroutine. Input runs on every
// event tick, Update and Render on every frame tick. Input must be
// called from the thread that owns the window.
type GameLoop struct {
	Time *Time
	Log  *logrus.Logger

	// Input polls events and reports whether the game keeps running.
	Input func() bool

	// Update advances the simulation by the last frame's duration.
	Update func(dt time.Duration)

	// Render draws a frame. An error stops the loop.
	Render func() error
}

// Run loops until Input asks to stop, Render fails or ctx is done.
func (l *GameLoop) Run(ctx context.Context) error {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var (
		windowStart  = hrtime.Now()
		windowFrames int64
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.Time.EventTicker().C:
			if l.Input != nil && !l.Input() {
				log.WithField("frames", l.Time.Frames()).Debug("game loop exited")
				return nil
			}
		case <-l.Time.FpsTicker().C:
			dt := l.Time.Frame()
			if l.Update != nil {
				l.Update(dt)
			}
			if l.Render != nil {
				if err := l.Render(); err != nil {
					return errors.Wrapf(err, "frame %d", l.Time.Frames())
				}
			}

			windowFrames++
			if elapsed := hrtime.Since(windowStart); elapsed >= time.Second {
				log.WithFields(logrus.Fields{
					"fps":   float64(windowFrames) / elapsed.Seconds(),
					"frame": dt,
				}).Debug("frame rate")
				windowStart, windowFrames = hrtime.Now(), 0
			}
		}
	}
}
