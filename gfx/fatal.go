package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// ErrUnrecoverable marks errors raised on the fatal path.
var ErrUnrecoverable = errors.New("gfx: unrecoverable device error")

// fatal logs err at fatal level, which runs hooks such as a message
// box and exits the process. When the logger's exit function returns,
// as it does in tests, fatal panics so that execution never continues
// on a broken device.
func fatal(log *logrus.Logger, err error) {
	err = errors.Mark(err, ErrUnrecoverable)
	log.WithError(err).Fatal(ErrUnrecoverable.Error())
	panic(err)
}

func (d *Device) fatal(err error) {
	fatal(d.log, err)
}

// check routes a failed native call to the fatal path.
func (d *Device) check(err error, call string) {
	if err != nil {
		d.fatal(errors.Wrap(err, call))
	}
}

// assertf reports a violated invariant. These are programming errors
// and are never returned to the caller.
func (d *Device) assertf(format string, args ...interface{}) {
	d.fatal(errors.AssertionFailedf(format, args...))
}
