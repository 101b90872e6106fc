package main

import (
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// messageBoxHook shows panics and fatal errors in a message box.
type messageBoxHook struct {
	window *sdl.Window
}

func (h *messageBoxHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel}
}

func (h *messageBoxHook) Fire(entry *logrus.Entry) error {
	msg := entry.Message
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		msg += "\n\n" + err.Error()
	}
	return sdl.ShowSimpleMessageBox(sdl.MESSAGEBOX_ERROR, "Koru3D", msg, h.window)
}
