package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	AppName string
	Level   string // debug, info, warn, error
	Format  string // json or text
	Output  io.Writer
}

type appNameHook struct {
	appName string
}

func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Data["app"] = h.appName
	return nil
}

// New builds a logrus logger from opts. Unknown levels fall back to info.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.AppName != "" {
		l.AddHook(&appNameHook{appName: opts.AppName})
	}
	return l
}

// Discard returns a logger that writes nowhere. Used by tests and tools.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
