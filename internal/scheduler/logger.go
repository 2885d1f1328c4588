package scheduler

import (
	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

var _ gocron.Logger = (*logger)(nil)

// logger forwards gocron messages to a prefixed charm logger. gocron reports
// every job start at info level, which would drown the refresh job's own
// messages, so info is demoted to debug.
type logger struct {
	base *log.Logger
}

func newLogger(base *log.Logger) *logger {
	return &logger{base: base.WithPrefix("scheduler")}
}

func (l *logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }

func (l *logger) Info(msg string, args ...any) { l.base.Debug(msg, args...) }

func (l *logger) Warn(msg string, args ...any) { l.base.Warn(msg, args...) }

func (l *logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }
