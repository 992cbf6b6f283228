package wire

import (
	"bytes"
	"testing"
)

func TestWriteFrameThenDecoderRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteFrame(&buf, []byte("world!")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var d Decoder
	d.Feed(buf.Bytes())

	res1, ok, err := d.Next()
	if err != nil || !ok || string(res1.Payload) != "hello" {
		t.Fatalf("expected first frame %q, got %+v ok=%v err=%v", "hello", res1, ok, err)
	}
	res2, ok, err := d.Next()
	if err != nil || !ok || string(res2.Payload) != "world!" {
		t.Fatalf("expected second frame %q, got %+v ok=%v err=%v", "world!", res2, ok, err)
	}
	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("expected Incomplete (not Complete, not error) once the buffer is drained")
	}
}

func TestDecoderIncompleteOnPartialPayload(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte("0123456789"))

	var d Decoder
	full := buf.Bytes()
	d.Feed(full[:3]) // varint + a couple payload bytes, not the whole frame
	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("expected incomplete frame to report not-ok, no error, got ok=%v err=%v", ok, err)
	}

	d.Feed(full[3:])
	res, ok, err := d.Next()
	if err != nil || !ok || string(res.Payload) != "0123456789" {
		t.Fatalf("expected full payload once all bytes arrive, got %+v ok=%v err=%v", res, ok, err)
	}
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	putUvarint(&buf, MaxFrameSize+1)

	var d Decoder
	d.Feed(buf.Bytes())
	if _, _, err := d.Next(); err == nil {
		t.Fatalf("expected an error for a frame length exceeding MaxFrameSize")
	}
}

func TestDecoderIncompleteVarintUnderTenBytes(t *testing.T) {
	var d Decoder
	d.Feed([]byte{0x80, 0x80, 0x80}) // continuation bytes, no terminator yet
	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("expected an incomplete (not erroring) varint with <10 buffered bytes, got ok=%v err=%v", ok, err)
	}
}

func TestDecoderRejectsMalformedVarintPastTenBytes(t *testing.T) {
	var d Decoder
	malformed := make([]byte, 11)
	for i := range malformed {
		malformed[i] = 0x80
	}
	d.Feed(malformed)
	if _, _, err := d.Next(); err == nil {
		t.Fatalf("expected an error for a varint with no terminator within 10 bytes")
	}
}

func TestEncodeDatagramPayloadCarriesNoLengthPrefix(t *testing.T) {
	envelope := []byte{1, 2, 3}
	if got := EncodeDatagramPayload(envelope); !bytes.Equal(got, envelope) {
		t.Fatalf("expected datagram payload to pass through unprefixed, got %v", got)
	}
}
