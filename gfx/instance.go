package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// InstanceConfig configures instance bootstrap.
type InstanceConfig struct {
	// Logger receives validation messages and fatal errors.
	// Defaults to the logrus standard logger.
	Logger *logrus.Logger

	// Debug routes validation layer messages to the logger.
	Debug bool
}

// Instance wraps a Backend together with the adapters it found.
type Instance struct {
	backend  Backend
	log      *logrus.Logger
	adapters []AdapterInfo
}

// NewInstance enumerates the adapters of backend. Enumeration
// failures are returned, since no device exists yet at this point.
func NewInstance(backend Backend, cfg InstanceConfig) (*Instance, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	if cfg.Debug {
		if err := backend.SetDebugCallback(debugLogger(log)); err != nil {
			return nil, errors.Wrap(err, "gfx.SetDebugCallback()")
		}
	}

	adapters, err := backend.Adapters()
	if err != nil {
		return nil, errors.Wrap(err, "gfx.Adapters()")
	}
	if len(adapters) == 0 {
		return nil, errors.Newf("gfx: %s backend reports no adapters", backend.Name())
	}

	log.WithFields(logrus.Fields{
		"backend":  backend.Name(),
		"adapters": len(adapters),
	}).Debug("graphics instance created")

	return &Instance{
		backend:  backend,
		log:      log,
		adapters: adapters,
	}, nil
}

func debugLogger(log *logrus.Logger) DebugCallback {
	return func(msg DebugMessage) {
		entry := log.WithFields(logrus.Fields{
			"layer": msg.Layer,
			"code":  msg.Code,
		})
		switch msg.Severity {
		case SeverityError:
			entry.Error(msg.Message)
		case SeverityWarning, SeverityPerformance:
			entry.Warn(msg.Message)
		case SeverityInfo:
			entry.Info(msg.Message)
		default:
			entry.Debug(msg.Message)
		}
	}
}

// Backend returns the driver the instance was created with.
func (i *Instance) Backend() Backend {
	return i.backend
}

// Adapters returns information about every physical device.
func (i *Instance) Adapters() []AdapterInfo {
	return i.adapters
}

// SelectAdapter picks the adapter called name when it exists,
// otherwise the first discrete GPU, otherwise the first valid adapter.
func (i *Instance) SelectAdapter(name string) int {
	if name != "" {
		for idx, a := range i.adapters {
			if a.Name == name && !a.Invalid {
				return idx
			}
		}
		i.log.WithField("adapter", name).Warn("requested adapter not found, falling back")
	}
	for idx, a := range i.adapters {
		if a.Type == AdapterDiscrete && !a.Invalid {
			return idx
		}
	}
	for idx, a := range i.adapters {
		if !a.Invalid {
			return idx
		}
	}
	return 0
}

// Destroy releases the backend. Every device must be released first.
func (i *Instance) Destroy() {
	i.backend.Destroy()
	i.adapters = nil
}
