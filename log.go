package entry

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Info(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Warn(...interface{})

	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})

	ChildLogger(tags map[string]interface{}) Logger
}

var logger Logger
var loggerMu sync.Mutex

// SetLogLevel sets the level of the default logger. Names follow logrus
// (trace, debug, info, warn, error).
func SetLogLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}

	l := GetLogger()
	if lg, ok := l.(*defaultLogger); ok {
		lg.Entry.Logger.SetLevel(lvl)
		return nil
	}

	l.Warnf("non-default logger, ignoring level %s", name)
	return nil
}

func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func GetLogger() Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger == nil {
		logger = buildDefaultLogger()
	}

	return logger
}

// Component returns a child of the current logger tagged with the component name.
func Component(name string) Logger {
	return GetLogger().ChildLogger(map[string]interface{}{"component": name})
}

type defaultLogger struct {
	*logrus.Entry
}

func buildDefaultLogger() Logger {
	l := &logrus.Logger{
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
		Level:     logrus.InfoLevel,
		Out:       os.Stderr,
		Hooks:     make(logrus.LevelHooks),
	}

	return &defaultLogger{Entry: l.WithFields(map[string]interface{}{})}
}

func (d *defaultLogger) ChildLogger(ff map[string]interface{}) Logger {
	nl := &defaultLogger{d.Entry.WithFields(ff)}
	return nl
}

type discardLogger struct{}

// DiscardLogger returns a Logger that drops everything. Useful in tests.
func DiscardLogger() Logger { return discardLogger{} }

func (discardLogger) Info(...interface{}) {}
func (discardLogger) Debug(...interface{}) {}
func (discardLogger) Error(...interface{}) {}
func (discardLogger) Warn(...interface{}) {}
func (discardLogger) Infof(string, ...interface{}) {}
func (discardLogger) Debugf(string, ...interface{}) {}
func (discardLogger) Errorf(string, ...interface{}) {}
func (discardLogger) Warnf(string, ...interface{}) {}
func (d discardLogger) ChildLogger(map[string]interface{}) Logger { return d }
