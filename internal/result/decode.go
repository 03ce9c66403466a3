package result

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrTruncated is returned when a stream ends partway through a record. A
// truncated final record is a decoding error, never a silent end-of-stream.
var ErrTruncated = errors.New("result: truncated record")

// Decoder reads a stream of Results written by Encoder.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads the next Result from the stream. It returns io.EOF only when
// the stream ends exactly on a record boundary; any other truncation yields
// ErrTruncated wrapped with context.
func (d *Decoder) Decode() (*Result, error) {
	magic, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("result: unexpected magic byte 0x%02x", magic)
	}

	r := &Result{}

	r.AttackName, err = d.readString16()
	if err != nil {
		return nil, d.truncated("attack_name", err)
	}
	seq, err := d.readUint64()
	if err != nil {
		return nil, d.truncated("sequence_number", err)
	}
	r.Seq = seq

	ts, err := d.readInt64()
	if err != nil {
		return nil, d.truncated("timestamp_ns", err)
	}
	r.Timestamp = time.Unix(0, ts).UTC()

	lat, err := d.readUint64()
	if err != nil {
		return nil, d.truncated("latency_ns", err)
	}
	r.Latency = time.Duration(lat)

	r.BytesIn, err = d.readUint64()
	if err != nil {
		return nil, d.truncated("bytes_in", err)
	}
	r.BytesOut, err = d.readUint64()
	if err != nil {
		return nil, d.truncated("bytes_out", err)
	}
	r.Code, err = d.readUint16()
	if err != nil {
		return nil, d.truncated("status_code", err)
	}
	r.URL, err = d.readString16()
	if err != nil {
		return nil, d.truncated("url", err)
	}
	r.Method, err = d.readString8()
	if err != nil {
		return nil, d.truncated("method", err)
	}
	r.Error, err = d.readString16()
	if err != nil {
		return nil, d.truncated("error", err)
	}
	bodyLen, err := d.readUint32()
	if err != nil {
		return nil, d.truncated("body_len", err)
	}
	if bodyLen > 0 {
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(d.r, body); err != nil {
			return nil, d.truncated("body", err)
		}
		r.Body = body
	}

	return r, nil
}

// All decodes every Result remaining in the stream.
func (d *Decoder) All() ([]*Result, error) {
	var out []*Result
	for {
		r, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}

func (d *Decoder) truncated(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: field %q: %v", ErrTruncated, field, err)
	}
	return fmt.Errorf("result: decoding field %q: %w", field, err)
}

func (d *Decoder) readUint16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (d *Decoder) readUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (d *Decoder) readInt64() (int64, error) {
	v, err := d.readUint64()
	return int64(v), err
}

func (d *Decoder) readString8() (string, error) {
	n, err := d.r.ReadByte()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *Decoder) readString16() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
