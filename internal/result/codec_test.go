package result

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleResults() []*Result {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*Result{
		{
			AttackName: "smoke",
			Seq:        0,
			Timestamp:  base,
			Latency:    15 * time.Millisecond,
			BytesIn:    128,
			BytesOut:   64,
			Code:       200,
			URL:        "http://localhost:8080/",
			Method:     "GET",
		},
		{
			AttackName: "smoke",
			Seq:        1,
			Timestamp:  base.Add(10 * time.Millisecond),
			Latency:    0,
			Code:       0,
			URL:        "http://127.0.0.1:1/",
			Method:     "GET",
			Error:      "connect",
		},
		{
			AttackName: "smoke",
			Seq:        2,
			Timestamp:  base.Add(20 * time.Millisecond),
			Latency:    5 * time.Millisecond,
			Code:       201,
			URL:        "http://localhost:8080/create",
			Method:     "POST",
			Body:       []byte(`{"ok":true}`),
		},
	}
}

func TestRoundTrip(t *testing.T) {
	results := sampleResults()

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, r := range results {
		require.NoError(t, enc.Encode(r))
	}
	require.NoError(t, enc.Flush())

	dec := NewDecoder(&buf)
	got, err := dec.All()
	require.NoError(t, err)
	require.Len(t, got, len(results))
	for i := range results {
		require.Equal(t, results[i].AttackName, got[i].AttackName)
		require.Equal(t, results[i].Seq, got[i].Seq)
		require.True(t, results[i].Timestamp.Equal(got[i].Timestamp))
		require.Equal(t, results[i].Latency, got[i].Latency)
		require.Equal(t, results[i].BytesIn, got[i].BytesIn)
		require.Equal(t, results[i].BytesOut, got[i].BytesOut)
		require.Equal(t, results[i].Code, got[i].Code)
		require.Equal(t, results[i].URL, got[i].URL)
		require.Equal(t, results[i].Method, got[i].Method)
		require.Equal(t, results[i].Error, got[i].Error)
		require.Equal(t, results[i].Body, got[i].Body)
	}
}

func TestConcatenation(t *testing.T) {
	a := sampleResults()[:1]
	b := sampleResults()[1:]

	var bufA, bufB bytes.Buffer
	encA := NewEncoder(&bufA)
	for _, r := range a {
		require.NoError(t, encA.Encode(r))
	}
	require.NoError(t, encA.Flush())

	encB := NewEncoder(&bufB)
	for _, r := range b {
		require.NoError(t, encB.Encode(r))
	}
	require.NoError(t, encB.Flush())

	combined := append(append([]byte{}, bufA.Bytes()...), bufB.Bytes()...)
	dec := NewDecoder(bytes.NewReader(combined))
	got, err := dec.All()
	require.NoError(t, err)
	require.Len(t, got, len(a)+len(b))
	require.Equal(t, a[0].Seq, got[0].Seq)
	require.Equal(t, b[0].Seq, got[1].Seq)
	require.Equal(t, b[1].Seq, got[2].Seq)
}

func TestTruncatedRecordIsError(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(sampleResults()[0]))
	require.NoError(t, enc.Flush())

	truncated := buf.Bytes()[:len(buf.Bytes())-3]
	dec := NewDecoder(bytes.NewReader(truncated))
	_, err := dec.Decode()
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)
}

func TestEmptyStreamIsEOF(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(nil))
	_, err := dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestSequenceNumbersUniqueAndContiguous(t *testing.T) {
	results := sampleResults()
	for i, r := range results {
		require.Equal(t, uint64(i), r.Seq)
	}
}
