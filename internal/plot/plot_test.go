package plot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culverin/internal/result"
)

func TestDownsampleReducesToThreshold(t *testing.T) {
	s := NewSeries()
	base := time.Now()
	for i := 0; i < 1000; i++ {
		s.Add(&result.Result{
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Latency:   time.Duration(i) * time.Microsecond,
			Error:     "",
		})
	}
	pts := s.Downsample(100)
	require.LessOrEqual(t, len(pts), 100)
}

func TestDownsampleNoopUnderThreshold(t *testing.T) {
	s := NewSeries()
	base := time.Now()
	for i := 0; i < 10; i++ {
		s.Add(&result.Result{Timestamp: base.Add(time.Duration(i) * time.Millisecond)})
	}
	pts := s.Downsample(100)
	require.Len(t, pts, 10)
}

func TestRenderProducesValidHTML(t *testing.T) {
	s := NewSeries()
	base := time.Now()
	s.Add(&result.Result{Timestamp: base, Latency: 10 * time.Millisecond})
	s.Add(&result.Result{Timestamp: base.Add(time.Second), Latency: 20 * time.Millisecond, Error: "timeout"})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "test attack", s.Downsample(0)))
	require.Contains(t, buf.String(), "<svg")
	require.Contains(t, buf.String(), "test attack")
}
