// Package encode converts a decoded Result stream to JSON-lines or CSV for
// the `encode` subcommand, per §6. JSON uses json-iterator (the domain
// stack's fast-JSON choice, §11); CSV uses the standard library's writer,
// which already RFC 4180-quotes any field containing a comma, quote, or
// newline — no ecosystem package in the pack offers a distinct CSV
// implementation, so this is the one place stdlib is simply what everyone
// uses.
package encode

import (
	"encoding/csv"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"culverin/internal/result"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonRecord names every field explicitly rather than reusing result.Result
// directly, so the wire JSON shape is decoupled from the Go struct's field
// order and any future internal-only fields.
type jsonRecord struct {
	SequenceNumber uint64 `json:"sequence_number"`
	Timestamp      int64  `json:"timestamp"`
	StatusCode     uint16 `json:"status_code"`
	LatencyNs      int64  `json:"latency_ns"`
	BytesIn        uint64 `json:"bytes_in"`
	BytesOut       uint64 `json:"bytes_out"`
	Method         string `json:"method"`
	URL            string `json:"url"`
	Error          string `json:"error"`
	AttackName     string `json:"attack_name"`
}

func toRecord(r *result.Result) jsonRecord {
	return jsonRecord{
		SequenceNumber: r.Seq,
		Timestamp:      r.Timestamp.UnixNano(),
		StatusCode:     r.Code,
		LatencyNs:      r.Latency.Nanoseconds(),
		BytesIn:        r.BytesIn,
		BytesOut:       r.BytesOut,
		Method:         r.Method,
		URL:            r.URL,
		Error:          r.Error,
		AttackName:     r.AttackName,
	}
}

// JSONEncoder writes one JSON object per line, matching the wire codec's
// forward-only, appendable stream style.
type JSONEncoder struct {
	w io.Writer
}

// NewJSONEncoder builds a JSONEncoder writing to w.
func NewJSONEncoder(w io.Writer) *JSONEncoder { return &JSONEncoder{w: w} }

// Encode writes one line for r.
func (e *JSONEncoder) Encode(r *result.Result) error {
	data, err := json.Marshal(toRecord(r))
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = e.w.Write(data)
	return err
}

// CSVEncoder writes the columns from §6: timestamp, status_code,
// latency_ns, bytes_in, bytes_out, method, url, error, attack_name,
// sequence_number.
type CSVEncoder struct {
	w     *csv.Writer
	wrote bool
}

// NewCSVEncoder builds a CSVEncoder writing to w. Flush must be called
// once all records are written.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return &CSVEncoder{w: csv.NewWriter(w)}
}

var csvHeader = []string{
	"timestamp", "status_code", "latency_ns", "bytes_in", "bytes_out",
	"method", "url", "error", "attack_name", "sequence_number",
}

// Encode writes one CSV row for r, writing the header first if this is the
// first call.
func (e *CSVEncoder) Encode(r *result.Result) error {
	if !e.wrote {
		if err := e.w.Write(csvHeader); err != nil {
			return err
		}
		e.wrote = true
	}
	row := []string{
		strconv.FormatInt(r.Timestamp.UnixNano(), 10),
		strconv.FormatUint(uint64(r.Code), 10),
		strconv.FormatInt(r.Latency.Nanoseconds(), 10),
		strconv.FormatUint(r.BytesIn, 10),
		strconv.FormatUint(r.BytesOut, 10),
		r.Method,
		r.URL,
		r.Error,
		r.AttackName,
		strconv.FormatUint(r.Seq, 10),
	}
	return e.w.Write(row)
}

// Flush flushes any buffered CSV output.
func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}
