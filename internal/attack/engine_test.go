package attack

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culverin/internal/pacer"
	"culverin/internal/result"
	"culverin/internal/target"
)

// fakeSender returns an immediate success Result for every target, with a
// configurable artificial latency to exercise pacer/dispatcher decoupling.
type fakeSender struct {
	latency time.Duration
	calls   atomic64
}

type atomic64 struct {
	mu sync.Mutex
	n  int
}

func (a *atomic64) inc() { a.mu.Lock(); a.n++; a.mu.Unlock() }
func (a *atomic64) get() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func (f *fakeSender) Send(ctx context.Context, tgt *target.Target, _ http.Header, seq uint64, name string) *result.Result {
	f.calls.inc()
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return &result.Result{AttackName: name, Seq: seq, Error: "cancelled"}
	}
	return &result.Result{AttackName: name, Seq: seq, Code: 200, URL: tgt.URL, Method: tgt.Method}
}

func singleTarget() *target.Cycle {
	return target.NewCycle([]*target.Target{{Method: "GET", URL: "http://example.test/"}})
}

func TestEngineDeliversExpectedCount(t *testing.T) {
	cfg := Config{
		Rate:      pacer.Rate{Freq: 50, Per: time.Second},
		Duration:  200 * time.Millisecond,
		Workers:   5,
		Tolerance: 0.1,
	}

	var mu sync.Mutex
	var results []*result.Result
	sink := func(r *result.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	sender := &fakeSender{}
	eng := NewEngine(cfg, sender, singleTarget(), sink)

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Tolerated)
	require.Equal(t, summary.Expected, summary.Completed)
	require.Len(t, results, int(summary.Expected))
}

func TestEngineDecoupledFromSlowWorkers(t *testing.T) {
	// Mean server latency (50ms) is far larger than the inter-tick interval
	// (10ms @ 100/s), but with enough headroom in max_workers the pacer
	// should still emit its full computed total within the duration.
	cfg := Config{
		Rate:       pacer.Rate{Freq: 100, Per: time.Second},
		Duration:   200 * time.Millisecond,
		Workers:    5,
		MaxWorkers: 200,
		Tolerance:  0.2,
	}

	sender := &fakeSender{latency: 50 * time.Millisecond}
	sink := func(*result.Result) {}
	eng := NewEngine(cfg, sender, singleTarget(), sink)

	start := time.Now()
	summary, err := eng.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, uint64(20), summary.Expected)
	require.Equal(t, summary.Expected, summary.Completed)
	require.True(t, elapsed < 2*time.Second, "drain should not take anywhere near serialized latency")
}

func TestEngineStopsWhenLazySourceExhausts(t *testing.T) {
	// duration=0 with a lazy source means "run until the source exhausts",
	// per §4.1/§8; the source here has exactly one target, so the attack
	// should complete normally with a single Result and no error, not
	// abort as though the exhaustion were a failure.
	cfg := Config{
		Rate:      pacer.Rate{Freq: 100, Per: time.Second},
		Duration:  0,
		Workers:   2,
		Tolerance: 0.1,
	}

	lazy, err := target.Open(strings.NewReader("GET http://example.test/\n"), target.FormatHTTP, true, false)
	require.NoError(t, err)

	sender := &fakeSender{}
	var mu sync.Mutex
	var results []*result.Result
	sink := func(r *result.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	eng := NewEngine(cfg, sender, lazy, sink)

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Tolerated)
	require.EqualValues(t, 1, summary.Completed)
	require.Len(t, results, 1)
}

