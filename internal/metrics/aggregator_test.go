package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culverin/internal/result"
)

func TestAggregatorBasic(t *testing.T) {
	a := NewAggregator(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a.Add(&result.Result{Timestamp: base, Latency: 10 * time.Millisecond, Code: 200, BytesIn: 10})
	a.Add(&result.Result{Timestamp: base.Add(time.Second), Latency: 20 * time.Millisecond, Code: 200, BytesIn: 20})
	a.Add(&result.Result{Timestamp: base.Add(2 * time.Second), Code: 0, Error: "connect"})

	snap := a.Snapshot()
	require.EqualValues(t, 3, snap.TotalRequests)
	require.EqualValues(t, 2, snap.SuccessCount)
	require.EqualValues(t, 1, snap.FailureCount)
	require.InDelta(t, 2.0/3.0, snap.SuccessRate, 1e-9)
	require.EqualValues(t, 30, snap.BytesInTotal)
	require.Equal(t, 2*time.Second, snap.Wait)
	require.EqualValues(t, 1, snap.Errors["connect"])
	require.EqualValues(t, 2, snap.StatusCodes[200])
	require.EqualValues(t, 1, snap.StatusCodes[0])
}

func TestAggregatorQuantiles(t *testing.T) {
	a := NewAggregator(nil)
	base := time.Now()
	latencies := []time.Duration{5 * time.Millisecond, 15 * time.Millisecond, 30 * time.Millisecond, 60 * time.Millisecond, 120 * time.Millisecond}
	for i, l := range latencies {
		a.Add(&result.Result{Timestamp: base.Add(time.Duration(i) * time.Second), Latency: l, Code: 200})
	}
	snap := a.Snapshot()
	require.InDelta(t, float64(30*time.Millisecond), float64(snap.Latencies.P50), float64(2*time.Millisecond))
	require.Equal(t, 5*time.Millisecond, snap.Latencies.Min)
	require.Equal(t, 120*time.Millisecond, snap.Latencies.Max)
}

func TestBucketCounter(t *testing.T) {
	edges := []time.Duration{0, 10 * time.Millisecond, 25 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}
	bc := NewBucketCounter(edges)
	for _, l := range []time.Duration{5 * time.Millisecond, 15 * time.Millisecond, 30 * time.Millisecond, 60 * time.Millisecond, 120 * time.Millisecond} {
		bc.Add(l)
	}
	buckets := bc.Buckets()
	require.Len(t, buckets, len(edges))
	for _, b := range buckets {
		require.EqualValues(t, 1, b.Count)
	}
	require.True(t, buckets[len(buckets)-1].Overflow)
}

func TestDefaultClassifier(t *testing.T) {
	require.True(t, result.DefaultClassifier(&result.Result{Code: 200}))
	require.True(t, result.DefaultClassifier(&result.Result{Code: 399}))
	require.False(t, result.DefaultClassifier(&result.Result{Code: 400}))
	require.False(t, result.DefaultClassifier(&result.Result{Code: 200, Error: "timeout"}))
}
