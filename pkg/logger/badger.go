package logger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerAdapter routes Badger's printf-style internal logging through a
// *slog.Logger so engine noise lands in the same stream, at the same
// levels, as the rest of the system.
type badgerAdapter struct {
	logger *slog.Logger
}

// Badger wraps a *slog.Logger in Badger's Logger interface. Pass the result
// as BadgerOptions.Logger to capture the engine's internal messages.
func Badger(logger *slog.Logger) badger.Logger {
	return &badgerAdapter{logger: logger}
}

func (a *badgerAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(render(format, args...))
}

func (a *badgerAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(render(format, args...))
}

func (a *badgerAdapter) Infof(format string, args ...interface{}) {
	a.logger.Info(render(format, args...))
}

func (a *badgerAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(render(format, args...))
}

// render formats one Badger message. Badger terminates its own lines, so
// trailing whitespace is stripped before slog adds its framing.
func render(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
