package wire

import "testing"

func TestStreamEnvelopeClientHelloRoundTrips(t *testing.T) {
	in := StreamEnvelope{
		Kind: StreamClientHello,
		ClientHello: ClientHello{
			Version:      ProtocolVersion{Major: 1, Minor: 0},
			Capabilities: Capabilities{SupportsDatagrams: true, MaxDatagramBytes: 1200, SupportsPrediction: true},
			ClientName:   "t",
			BearerToken:  []byte(""),
			ResumeToken:  []byte(""),
		},
	}
	encoded, err := EncodeStreamEnvelope(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := DecodeStreamEnvelope(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.Kind != StreamClientHello {
		t.Fatalf("expected kind StreamClientHello, got %d", out.Kind)
	}
	if out.ClientHello.ClientName != "t" || !out.ClientHello.Capabilities.SupportsDatagrams {
		t.Fatalf("expected round-tripped ClientHello fields, got %+v", out.ClientHello)
	}
	if out.ClientHello.Version != in.ClientHello.Version {
		t.Fatalf("expected version round trip, got %+v", out.ClientHello.Version)
	}
}

func TestStreamEnvelopeInputEventRoundTrips(t *testing.T) {
	in := StreamEnvelope{
		Kind: StreamInputEvent,
		InputEvent: InputEvent{
			InputSeq:     7,
			ClientTimeMs: 1234,
			PayloadKind:  InputTextUTF8,
			Text:         "abc",
		},
	}
	encoded, err := EncodeStreamEnvelope(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := DecodeStreamEnvelope(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.InputEvent.InputSeq != 7 || out.InputEvent.ClientTimeMs != 1234 || out.InputEvent.Text != "abc" {
		t.Fatalf("expected round-tripped InputEvent, got %+v", out.InputEvent)
	}
}

func TestStreamEnvelopePingRoundTrips(t *testing.T) {
	in := StreamEnvelope{Kind: StreamPing, Ping: Ping{Nonce: 0xDEADBEEF}}
	encoded, err := EncodeStreamEnvelope(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := DecodeStreamEnvelope(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.Ping.Nonce != 0xDEADBEEF {
		t.Fatalf("expected nonce round trip, got %d", out.Ping.Nonce)
	}
}

func TestStreamEnvelopeUnknownKindErrors(t *testing.T) {
	if _, err := EncodeStreamEnvelope(StreamEnvelope{Kind: StreamKind(255)}); err == nil {
		t.Fatalf("expected an error encoding an unknown stream kind")
	}
}

func TestDatagramEnvelopeScreenDeltaRoundTrips(t *testing.T) {
	in := DatagramEnvelope{
		Kind: DatagramScreenDelta,
		ScreenDelta: ScreenDelta{
			BaseStateID: 3,
			StateID:     4,
			RowPatches: []RowPatch{
				{Row: 0, Runs: []CellRun{{ColStart: 2, Codepoints: []rune{'a', 'b'}, Widths: []uint8{1, 1}, StyleIDs: []uint16{0, 0}}}},
			},
		},
	}
	encoded, err := EncodeDatagramEnvelope(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := DecodeDatagramEnvelope(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.ScreenDelta.BaseStateID != 3 || out.ScreenDelta.StateID != 4 {
		t.Fatalf("expected state ids to round trip, got %+v", out.ScreenDelta)
	}
	if len(out.ScreenDelta.RowPatches) != 1 || len(out.ScreenDelta.RowPatches[0].Runs) != 1 {
		t.Fatalf("expected one row patch with one run, got %+v", out.ScreenDelta.RowPatches)
	}
	run := out.ScreenDelta.RowPatches[0].Runs[0]
	if run.ColStart != 2 || string(run.Codepoints) != "ab" {
		t.Fatalf("expected run col_start=2 codepoints=ab, got %+v", run)
	}
}

func TestDatagramEnvelopeStateAckRoundTrips(t *testing.T) {
	in := DatagramEnvelope{
		Kind: DatagramStateAck,
		StateAck: StateAck{
			LastAppliedStateID:  10,
			LastReceivedStateID: 11,
			ClientTimeMs:        5,
			EstimatedLossPPM:    200,
			SrttMs:              42,
		},
	}
	encoded, err := EncodeDatagramEnvelope(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := DecodeDatagramEnvelope(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.StateAck != in.StateAck {
		t.Fatalf("expected StateAck to round trip exactly, got %+v want %+v", out.StateAck, in.StateAck)
	}
}

func TestDatagramEnvelopeUnknownKindErrors(t *testing.T) {
	if _, err := EncodeDatagramEnvelope(DatagramEnvelope{Kind: DatagramKind(255)}); err == nil {
		t.Fatalf("expected an error encoding an unknown datagram kind")
	}
}
