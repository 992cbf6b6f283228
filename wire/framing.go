package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrFrameTooLarge is returned when a decoded length exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ErrInvalidVarint is returned once 10 bytes are buffered without a
// terminating varint byte, or when the 10th byte overflows 64 bits.
var ErrInvalidVarint = errors.New("wire: invalid varint in frame header")

const maxVarintBytes = 10

func putUvarint(buf *bytes.Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}

// decodeUvarint reads a varint from the front of data. It returns the
// value, the number of bytes consumed, and false if data doesn't yet
// contain a complete varint (and isn't definitively invalid).
func decodeUvarint(data []byte) (v uint64, n int, ok bool, err error) {
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if shift >= 63 && b > 1 {
			return 0, 0, false, ErrInvalidVarint
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, i + 1, true, nil
		}
		shift += 7
		if i+1 >= maxVarintBytes {
			return 0, 0, false, ErrInvalidVarint
		}
	}
	if len(data) >= maxVarintBytes {
		return 0, 0, false, ErrInvalidVarint
	}
	return 0, 0, false, nil
}

// WriteFrame writes varint(len(payload)) ∥ payload to w — the stream wire
// format for ZRP's reliable control channel (spec §4.7).
func WriteFrame(w io.Writer, payload []byte) error {
	buf := new(bytes.Buffer)
	putUvarint(buf, uint64(len(payload)))
	buf.Write(payload)
	_, err := w.Write(buf.Bytes())
	return err
}

// DecodeResult mirrors the original decoder's Complete/Incomplete outcome.
type DecodeResult struct {
	Complete bool
	Payload  []byte
}

// Decoder accumulates bytes read from a stream and yields complete frame
// payloads as they become available — the incremental decode state
// machine described in spec §4.7 ("accept one byte at a time").
type Decoder struct {
	buf bytes.Buffer
}

// Feed appends data to the internal buffer. Caller should then call
// Next repeatedly until it reports Incomplete.
func (d *Decoder) Feed(data []byte) { d.buf.Write(data) }

// Next attempts to decode one frame from the buffered bytes. If the
// buffer doesn't yet hold a complete frame it returns (DecodeResult{},
// false, nil) — not an error, just "keep reading". A corrupt/oversized
// varint or frame length returns a non-nil error.
func (d *Decoder) Next() (DecodeResult, bool, error) {
	raw := d.buf.Bytes()
	if len(raw) == 0 {
		return DecodeResult{}, false, nil
	}
	length, n, ok, err := decodeUvarint(raw)
	if err != nil {
		return DecodeResult{}, false, err
	}
	if !ok {
		return DecodeResult{}, false, nil
	}
	if length > MaxFrameSize {
		return DecodeResult{}, false, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	total := n + int(length)
	if len(raw) < total {
		return DecodeResult{}, false, nil
	}
	payload := make([]byte, length)
	copy(payload, raw[n:total])
	d.buf.Next(total)
	return DecodeResult{Complete: true, Payload: payload}, true, nil
}

// ReadFrame performs a single blocking read of one frame from r: it reads
// until a full varint-prefixed payload is available. Intended for use
// atop a QUIC bidirectional stream, where each Read may return a partial
// chunk.
func ReadFrame(r io.Reader) ([]byte, error) {
	var d Decoder
	tmp := make([]byte, 4096)
	for {
		if res, ok, err := d.Next(); err != nil {
			return nil, err
		} else if ok {
			return res.Payload, nil
		}
		n, err := r.Read(tmp)
		if n > 0 {
			d.Feed(tmp[:n])
		}
		if err != nil {
			if n > 0 {
				if res, ok, nerr := d.Next(); nerr == nil && ok {
					return res.Payload, nil
				}
			}
			return nil, err
		}
	}
}

// EncodeDatagramPayload is a thin alias documenting that datagrams carry
// the encoded envelope with no length prefix — the transport itself
// preserves message boundaries.
func EncodeDatagramPayload(envelope []byte) []byte { return envelope }
