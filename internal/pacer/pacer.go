// Package pacer drives request emission at a constant target rate,
// independent of how long previously emitted requests take to complete.
// It is the piece of the teacher's runner.runRPS loop isolated into its own
// component per §4.3 and §9 ("pacer/dispatcher decoupling").
package pacer

import (
	"context"
	"math"
	"time"
)

// Rate is a requests-per-second figure reduced from a (count, period) pair.
// A Rate of 0 means "infinity": fire as fast as the dispatcher will accept.
type Rate struct {
	Freq float64       // events
	Per  time.Duration // per this much wall time
}

// PerSecond returns the rate expressed in events per second. Zero Freq or
// zero Per both mean "infinity" and return 0.
func (r Rate) PerSecond() float64 {
	if r.Freq <= 0 || r.Per <= 0 {
		return 0
	}
	return r.Freq / r.Per.Seconds()
}

// IsInfinite reports whether this Rate has no pacing at all.
func (r Rate) IsInfinite() bool { return r.PerSecond() == 0 }

// Pacer emits tick values on Ticks() at the requested arrival rate. Given
// rate R and duration D, it emits exactly round(R*D) ticks, each due at
// start+i/R; a tick that becomes due while the pacer is busy is emitted
// immediately on the next chance (catch-up), and the total never exceeds
// the computed count. The pacer never blocks on the channel receiver for
// longer than the receiver chooses, and consuming slowly does not change
// how many ticks are ultimately produced — only when they arrive.
type Pacer struct {
	rate     Rate
	duration time.Duration // 0 means "until Stop or source exhaustion"

	ticks chan Tick
	done  chan struct{}
}

// Tick is one scheduled emission. Seq is 0-indexed and contiguous; Due is
// the monotonic instant this tick was scheduled for (before any catch-up
// delay was applied).
type Tick struct {
	Seq uint64
	Due time.Time
}

// New builds a Pacer for rate over duration. duration == 0 means unbounded
// by time (the caller must Stop it, typically on target-source exhaustion
// in lazy mode, or a signal).
func New(rate Rate, duration time.Duration) *Pacer {
	return &Pacer{
		rate:     rate,
		duration: duration,
		ticks:    make(chan Tick),
		done:     make(chan struct{}),
	}
}

// Total returns the number of ticks this Pacer will emit before stopping
// itself, or 0 if it is unbounded (infinite rate, or zero duration).
func (p *Pacer) Total() uint64 {
	perSec := p.rate.PerSecond()
	if perSec <= 0 || p.duration <= 0 {
		return 0
	}
	return uint64(math.Round(perSec * p.duration.Seconds()))
}

// Ticks returns the channel of scheduled emissions. It is closed when the
// Pacer stops, whether because it reached its computed total or because
// Stop/the context was cancelled.
func (p *Pacer) Ticks() <-chan Tick { return p.ticks }

// Stop requests early termination; safe to call multiple times.
func (p *Pacer) Stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// Run drives emission until ctx is cancelled, Stop is called, or (for a
// bounded pacer) the computed total is reached. It blocks until the pacer
// finishes and must be run in its own goroutine by the caller.
func (p *Pacer) Run(ctx context.Context) {
	defer close(p.ticks)

	perSec := p.rate.PerSecond()
	total := p.Total()
	start := time.Now()

	if perSec <= 0 {
		// Infinite mode: emit as fast as the receiver accepts, bounded
		// only by whatever concurrency ceiling the dispatcher enforces on
		// its own. There is no catch-up concept here because there is no
		// schedule to fall behind on.
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case p.ticks <- Tick{Seq: seq, Due: time.Now()}:
				seq++
			}
		}
	}

	interval := time.Duration(float64(time.Second) / perSec)
	if interval <= 0 {
		interval = time.Nanosecond
	}

	var seq uint64
	for total == 0 || seq < total {
		due := start.Add(time.Duration(float64(seq) * float64(interval)))
		wait := time.Until(due)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			case <-p.done:
				timer.Stop()
				return
			}
		}
		// Catch-up: if wait was <= 0 we are already behind schedule and
		// emit immediately without waiting further, but we never skip
		// ticks to "catch up" — every due tick is still sent exactly once.
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case p.ticks <- Tick{Seq: seq, Due: due}:
			seq++
		}
	}
}
