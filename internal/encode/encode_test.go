package encode

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culverin/internal/result"
)

func sample() *result.Result {
	return &result.Result{
		AttackName: "run,with,commas",
		Seq:        7,
		Timestamp:  time.Unix(0, 1000),
		Latency:    5 * time.Millisecond,
		BytesIn:    100,
		BytesOut:   50,
		Code:       200,
		URL:        "http://example.test/",
		Method:     "GET",
	}
}

func TestJSONEncoderWritesOnePerLine(t *testing.T) {
	var buf bytes.Buffer
	enc := NewJSONEncoder(&buf)
	require.NoError(t, enc.Encode(sample()))
	require.NoError(t, enc.Encode(sample()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"sequence_number":7`)
}

func TestCSVEncoderQuotesFieldsWithCommas(t *testing.T) {
	var buf bytes.Buffer
	enc := NewCSVEncoder(&buf)
	require.NoError(t, enc.Encode(sample()))
	require.NoError(t, enc.Flush())

	r := csv.NewReader(strings.NewReader(buf.String()))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "run,with,commas", rows[1][8])
}
