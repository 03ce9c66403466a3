// Package report renders a Metrics snapshot (or a raw Result stream, for
// the histogram type) into one of the four output formats from §6: text,
// json, hist[edges], hdrplot. Grounded on the teacher's internal/stats
// summary-printing code for the text layout, generalized from its fixed
// percentile list into the full field set, and using json-iterator for
// the json type per the domain stack (§11).
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"culverin/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type selects a report renderer.
type Type int

const (
	TypeText Type = iota
	TypeJSON
	TypeHist
	TypeHDRPlot
)

// ParseType parses a `--type` flag value, including the hist[edges] form,
// returning the Type and, for TypeHist, the parsed edges.
func ParseType(spec string) (Type, []time.Duration, error) {
	switch {
	case spec == "text" || spec == "":
		return TypeText, nil, nil
	case spec == "json":
		return TypeJSON, nil, nil
	case spec == "hdrplot":
		return TypeHDRPlot, nil, nil
	case strings.HasPrefix(spec, "hist[") && strings.HasSuffix(spec, "]"):
		edges, err := parseEdges(spec[len("hist[") : len(spec)-1])
		if err != nil {
			return 0, nil, fmt.Errorf("report: parsing hist edges: %w", err)
		}
		return TypeHist, edges, nil
	default:
		return 0, nil, fmt.Errorf("report: unknown type %q", spec)
	}
}

func parseEdges(body string) ([]time.Duration, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("hist requires at least one edge")
	}
	parts := strings.Split(body, ",")
	edges := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		d, err := parseDurationOrNumber(p)
		if err != nil {
			return nil, err
		}
		edges = append(edges, d)
	}
	return edges, nil
}

// parseDurationOrNumber accepts both Go duration syntax ("10ms") and a bare
// integer, which is interpreted as nanoseconds, matching Vegeta-family
// tools' historical bucket-edge syntax.
func parseDurationOrNumber(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration or nanosecond count %q", s)
	}
	return time.Duration(n), nil
}

// Text writes the human-readable summary report.
func Text(w io.Writer, m metrics.Metrics) error {
	l := m.Latencies
	_, err := fmt.Fprintf(w,
		"Requests\t[total, rate]\t%d, %.2f/s\n"+
			"Duration\t[total]\t%s\n"+
			"Latencies\t[mean, 50, 90, 95, 99, max]\t%s, %s, %s, %s, %s, %s\n"+
			"Bytes In\t[total]\t%d\n"+
			"Bytes Out\t[total]\t%d\n"+
			"Success\t[ratio]\t%.2f%%\n"+
			"Status Codes\t%s\n"+
			"Errors:\n%s",
		m.TotalRequests, m.Rate,
		m.Wait,
		l.Mean, l.P50, l.P90, l.P95, l.P99, l.Max,
		m.BytesInTotal,
		m.BytesOutTotal,
		m.SuccessRate*100,
		formatStatusCodes(m.StatusCodes),
		formatErrors(m.Errors),
	)
	return err
}

func formatStatusCodes(codes map[uint16]uint64) string {
	if len(codes) == 0 {
		return "[none]"
	}
	keys := make([]int, 0, len(codes))
	for k := range codes {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d:%d", k, codes[uint16(k)])
	}
	return b.String()
}

func formatErrors(errs map[string]uint64) string {
	if len(errs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%d\t%s\n", errs[k], k)
	}
	return b.String()
}

// JSON writes m as a single JSON object. Its keys are the Metrics struct's
// Go field names (e.g. "TotalRequests"), not snake_case names.
func JSON(w io.Writer, m metrics.Metrics) error {
	enc := json.NewEncoder(w)
	return enc.Encode(m)
}

// Hist writes bucket counts and fractions for the given BucketCounter, one
// row per bucket including the final unbounded one (labeled "+Inf"), so
// the row count always matches the number of edges requested.
func Hist(w io.Writer, b *metrics.BucketCounter) error {
	for _, bucket := range b.Buckets() {
		label := bucket.Upper.String()
		if bucket.Overflow {
			label = "+Inf"
		}
		if _, err := fmt.Fprintf(w, "[0,\t%s]\t%d\t%.4f\n", label, bucket.Count, bucket.Fraction); err != nil {
			return err
		}
	}
	return nil
}

// HDRPlot writes the quantile/value/count table an HdrHistogram plotting
// tool expects: one row per percentile step.
func HDRPlot(w io.Writer, distribution []metrics.QuantilePoint) error {
	if _, err := fmt.Fprintln(w, "Value\tPercentile\tTotalCount\t1/(1-Percentile)"); err != nil {
		return err
	}
	for _, b := range distribution {
		inv := "Inf"
		if b.Quantile < 100 {
			inv = fmt.Sprintf("%.2f", 1/(1-b.Quantile/100))
		}
		if _, err := fmt.Fprintf(w, "%d\t%.4f\t%d\t%s\n", b.ValueNs, b.Quantile, b.Count, inv); err != nil {
			return err
		}
	}
	return nil
}
