// Package attack wires the Pacer, Target Source, Transport and worker pool
// together into one attack run, enforces the tolerance check, and streams
// Results to a sink. Grounded on the teacher's internal/runner.Runner,
// generalized from its fixed RPS/users dichotomy into the rate/duration
// model of §3-4.
package attack

import (
	"time"

	"culverin/internal/pacer"
	"culverin/internal/target"
	"culverin/internal/transport"
)

// Config is the immutable AttackConfig from §3. It is constructed once by
// value and shared read-only across the pacer, dispatcher, and transport —
// never mutated after NewEngine.
type Config struct {
	Name string

	Rate     pacer.Rate
	Duration time.Duration // 0 = until target source exhausted / signalled

	Workers    int
	MaxWorkers int // 0 = unbounded
	Tolerance  float64

	Timeout     time.Duration // overall drain ceiling
	HTTPTimeout time.Duration // per-exchange ceiling

	GlobalHeaders []target.Header

	Transport transport.Config

	LazyTargets bool
}

// Workers defaults to 10 and Tolerance to 0.1 when unset (zero or
// negative); MaxWorkers is left as given, so 0 stays unbounded. Callers
// normally set these explicitly from flags, these are only a fallback for
// programmatic use.
func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 0.1
	}
	return c
}
