package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTotalComputation(t *testing.T) {
	p := New(Rate{Freq: 50, Per: time.Second}, 2*time.Second)
	require.EqualValues(t, 100, p.Total())
}

func TestInfiniteRateHasNoTotal(t *testing.T) {
	p := New(Rate{Freq: 0, Per: time.Second}, 2*time.Second)
	require.EqualValues(t, 0, p.Total())
	require.True(t, p.rate.IsInfinite())
}

func TestEmitsExactlyComputedCount(t *testing.T) {
	p := New(Rate{Freq: 200, Per: time.Second}, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	var seqs []uint64
	for tick := range p.Ticks() {
		seqs = append(seqs, tick.Seq)
	}

	require.EqualValues(t, p.Total(), len(seqs))
	for i, s := range seqs {
		require.EqualValues(t, i, s)
	}
}

func TestStopEndsEarly(t *testing.T) {
	p := New(Rate{Freq: 10, Per: time.Second}, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	count := 0
	timeout := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case _, ok := <-p.Ticks():
			if !ok {
				break loop
			}
			count++
			if count == 2 {
				p.Stop()
			}
		case <-timeout:
			t.Fatal("pacer did not stop in time")
		}
	}
	require.LessOrEqual(t, count, 5)
}

func TestPacerIndependentOfSlowConsumer(t *testing.T) {
	// Even if the receiver is slow, the pacer keeps a schedule it can
	// catch up against rather than dropping ticks.
	p := New(Rate{Freq: 100, Per: time.Second}, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	var n int
	for range p.Ticks() {
		n++
		time.Sleep(25 * time.Millisecond) // slower than the 10ms interval
	}
	require.EqualValues(t, p.Total(), n)
}
