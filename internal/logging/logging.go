// Package logging builds the structured, leveled logger used for the CLI's
// operational events (attack start and finish, interrupts, failed result
// writes, telemetry and history failures, dummy-server startup). Grounded on
// croessner-nauthilus's server/log package: go-kit/log writing key-value
// pairs to stderr, gated by a level filter.
package logging

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Level names accepted by New, matching the ecosystem's own vocabulary.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// New builds a leveled logger writing to stderr. Invalid level names fall
// back to info, matching the teacher's forgiving flag-parsing style
// elsewhere (unknown format/redirect values default rather than abort).
func New(levelName string) log.Logger {
	base := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	base = log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var filter level.Option
	switch levelName {
	case LevelDebug:
		filter = level.AllowDebug()
	case LevelWarn:
		filter = level.AllowWarn()
	case LevelError:
		filter = level.AllowError()
	default:
		filter = level.AllowInfo()
	}
	return level.NewFilter(base, filter)
}

// Nop returns a logger that discards everything, used in tests and in any
// code path that runs before flags are parsed.
func Nop() log.Logger { return log.NewNopLogger() }
