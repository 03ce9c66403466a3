package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culverin/internal/metrics"
)

func TestParseTypeVariants(t *testing.T) {
	typ, _, err := ParseType("text")
	require.NoError(t, err)
	require.Equal(t, TypeText, typ)

	typ, _, err = ParseType("")
	require.NoError(t, err)
	require.Equal(t, TypeText, typ)

	typ, _, err = ParseType("json")
	require.NoError(t, err)
	require.Equal(t, TypeJSON, typ)

	typ, _, err = ParseType("hdrplot")
	require.NoError(t, err)
	require.Equal(t, TypeHDRPlot, typ)

	typ, edges, err := ParseType("hist[0,10ms,25ms,50ms,100ms]")
	require.NoError(t, err)
	require.Equal(t, TypeHist, typ)
	require.Equal(t, []time.Duration{0, 10 * time.Millisecond, 25 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}, edges)

	_, _, err = ParseType("bogus")
	require.Error(t, err)
}

func TestHistMatchesWorkedExample(t *testing.T) {
	edges := []time.Duration{0, 10 * time.Millisecond, 25 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}
	bc := metrics.NewBucketCounter(edges)
	for _, ms := range []int{5, 15, 30, 60, 120} {
		bc.Add(time.Duration(ms) * time.Millisecond)
	}

	var buf bytes.Buffer
	require.NoError(t, Hist(&buf, bc))
	lines := bc.Buckets()
	require.Len(t, lines, 5)
	for _, b := range lines {
		require.Equal(t, uint64(1), b.Count)
	}
}

func TestTextAndJSONRenderWithoutError(t *testing.T) {
	m := metrics.Metrics{
		TotalRequests: 10,
		SuccessCount:  9,
		FailureCount:  1,
		SuccessRate:   0.9,
		StatusCodes:   map[uint16]uint64{200: 9, 500: 1},
		Errors:        map[string]uint64{"other: boom": 1},
	}
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, m))
	require.Contains(t, buf.String(), "Requests")

	buf.Reset()
	require.NoError(t, JSON(&buf, m))
	require.Contains(t, buf.String(), "\"TotalRequests\":10")
}
