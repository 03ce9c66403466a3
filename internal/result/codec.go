package result

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the single-byte record marker at the head of every encoded
// Result. It exists so a future wire revision can introduce a different
// layout without breaking readers of the current one mid-stream.
const Magic byte = 0x01

// Encoder writes a forward-only stream of Results. Concatenating the output
// of two Encoders writing to the same stream produces a valid stream.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w. Callers must call Flush to guarantee buffered records
// reach w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes one Result record in wire order: magic, attack_name, seq,
// timestamp_ns, latency_ns, bytes_in, bytes_out, status_code, url, method,
// error, body_len+body. A write failure here is treated as fatal by the
// attack subcommand: we refuse to keep generating load we cannot record.
func (e *Encoder) Encode(r *Result) error {
	var hdr [1]byte
	hdr[0] = Magic
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}
	if err := e.writeString16(r.AttackName); err != nil {
		return err
	}
	if err := e.writeUint64(r.Seq); err != nil {
		return err
	}
	if err := e.writeInt64(r.Timestamp.UnixNano()); err != nil {
		return err
	}
	if err := e.writeUint64(uint64(r.Latency.Nanoseconds())); err != nil {
		return err
	}
	if err := e.writeUint64(r.BytesIn); err != nil {
		return err
	}
	if err := e.writeUint64(r.BytesOut); err != nil {
		return err
	}
	if err := e.writeUint16(r.Code); err != nil {
		return err
	}
	if err := e.writeString16(r.URL); err != nil {
		return err
	}
	if err := e.writeString8(r.Method); err != nil {
		return err
	}
	if err := e.writeString16(r.Error); err != nil {
		return err
	}
	if err := e.writeUint32(uint32(len(r.Body))); err != nil {
		return err
	}
	if len(r.Body) > 0 {
		if _, err := e.w.Write(r.Body); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces any buffered records to the underlying writer.
func (e *Encoder) Flush() error { return e.w.Flush() }

func (e *Encoder) writeUint16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := e.w.Write(b[:])
	return err
}

func (e *Encoder) writeUint32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := e.w.Write(b[:])
	return err
}

func (e *Encoder) writeUint64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := e.w.Write(b[:])
	return err
}

func (e *Encoder) writeInt64(v int64) error {
	return e.writeUint64(uint64(v))
}

func (e *Encoder) writeString8(s string) error {
	if len(s) > 0xff {
		return fmt.Errorf("result: method %q exceeds 255 bytes", s)
	}
	if err := e.w.WriteByte(byte(len(s))); err != nil {
		return err
	}
	_, err := e.w.WriteString(s)
	return err
}

func (e *Encoder) writeString16(s string) error {
	if len(s) > 0xffff {
		return fmt.Errorf("result: field exceeds 65535 bytes")
	}
	if err := e.writeUint16(uint16(len(s))); err != nil {
		return err
	}
	_, err := e.w.WriteString(s)
	return err
}
