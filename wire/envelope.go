package wire

import (
	"bytes"
	"fmt"
	"io"
)

// EncodeStreamEnvelope encodes the one-of payload selected by e.Kind.
func EncodeStreamEnvelope(e StreamEnvelope) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU8(buf, uint8(e.Kind)); err != nil {
		return nil, err
	}
	var payload []byte
	var err error
	switch e.Kind {
	case StreamClientHello:
		payload, err = EncodeClientHello(e.ClientHello)
	case StreamServerHello:
		payload, err = EncodeServerHello(e.ServerHello)
	case StreamLeaseRequest:
		payload, err = EncodeLeaseRequest(e.LeaseRequest)
	case StreamLeaseGrant:
		payload, err = encodeLeaseOnly(e.LeaseGrant)
	case StreamLeaseDeny:
		payload, err = EncodeProtocolError(e.LeaseDeny)
	case StreamLeaseRelease:
		payload, err = EncodeLeaseRelease(e.LeaseRelease)
	case StreamLeaseSetSize:
		payload, err = EncodeLeaseSetSize(e.LeaseSetSize)
	case StreamLeaseKeepAlive:
		payload, err = EncodeLeaseKeepAlive(e.LeaseKeepAlive)
	case StreamLeaseRevoked:
		payload, err = EncodeLeaseRevoked(e.LeaseRevoked)
	case StreamScreenSnapshot:
		payload, err = EncodeScreenSnapshot(e.ScreenSnapshot)
	case StreamScreenDelta:
		payload, err = EncodeScreenDelta(e.ScreenDelta)
	case StreamInputEvent:
		payload, err = EncodeInputEvent(e.InputEvent)
	case StreamInputAck:
		payload, err = EncodeInputAck(e.InputAck)
	case StreamRequestSnapshot:
		payload, err = EncodeRequestSnapshot(e.RequestSnapshot)
	case StreamPing:
		payload, err = EncodePing(e.Ping)
	case StreamPong:
		payload, err = EncodePong(e.Pong)
	case StreamProtocolError:
		payload, err = EncodeProtocolError(e.ProtocolError)
	case StreamUnsupportedFeature:
		payload, err = EncodeUnsupportedFeatureNotice(e.UnsupportedFeatureNotice)
	default:
		return nil, fmt.Errorf("wire: unknown stream envelope kind %d", e.Kind)
	}
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeLeaseOnly(l ControllerLease) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeLease(buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeLeaseOnly(r io.Reader) (ControllerLease, error) { return readLease(r) }

// DecodeStreamEnvelope decodes a length-delimited frame body into a
// StreamEnvelope (the caller is responsible for having already stripped
// the varint length prefix — see framing.go).
func DecodeStreamEnvelope(data []byte) (StreamEnvelope, error) {
	r := bytes.NewReader(data)
	kind, err := readU8(r)
	if err != nil {
		return StreamEnvelope{}, err
	}
	e := StreamEnvelope{Kind: StreamKind(kind)}
	switch e.Kind {
	case StreamClientHello:
		e.ClientHello, err = DecodeClientHello(r)
	case StreamServerHello:
		e.ServerHello, err = DecodeServerHello(r)
	case StreamLeaseRequest:
		e.LeaseRequest, err = DecodeLeaseRequest(r)
	case StreamLeaseGrant:
		e.LeaseGrant, err = decodeLeaseOnly(r)
	case StreamLeaseDeny:
		e.LeaseDeny, err = DecodeProtocolError(r)
	case StreamLeaseRelease:
		e.LeaseRelease, err = DecodeLeaseRelease(r)
	case StreamLeaseSetSize:
		e.LeaseSetSize, err = DecodeLeaseSetSize(r)
	case StreamLeaseKeepAlive:
		e.LeaseKeepAlive, err = DecodeLeaseKeepAlive(r)
	case StreamLeaseRevoked:
		e.LeaseRevoked, err = DecodeLeaseRevoked(r)
	case StreamScreenSnapshot:
		e.ScreenSnapshot, err = DecodeScreenSnapshot(r)
	case StreamScreenDelta:
		e.ScreenDelta, err = DecodeScreenDelta(r)
	case StreamInputEvent:
		e.InputEvent, err = DecodeInputEvent(r)
	case StreamInputAck:
		e.InputAck, err = DecodeInputAck(r)
	case StreamRequestSnapshot:
		e.RequestSnapshot, err = DecodeRequestSnapshot(r)
	case StreamPing:
		e.Ping, err = DecodePing(r)
	case StreamPong:
		e.Pong, err = DecodePong(r)
	case StreamProtocolError:
		e.ProtocolError, err = DecodeProtocolError(r)
	case StreamUnsupportedFeature:
		e.UnsupportedFeatureNotice, err = DecodeUnsupportedFeatureNotice(r)
	default:
		return e, fmt.Errorf("wire: unknown stream envelope kind %d", e.Kind)
	}
	return e, err
}

// EncodeDatagramEnvelope encodes the one-of payload selected by e.Kind.
// Datagrams carry no length prefix: the transport preserves boundaries.
func EncodeDatagramEnvelope(e DatagramEnvelope) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU8(buf, uint8(e.Kind)); err != nil {
		return nil, err
	}
	var payload []byte
	var err error
	switch e.Kind {
	case DatagramScreenDelta:
		payload, err = EncodeScreenDelta(e.ScreenDelta)
	case DatagramStateAck:
		payload, err = EncodeStateAck(e.StateAck)
	case DatagramPing:
		payload, err = EncodePing(e.Ping)
	case DatagramPong:
		payload, err = EncodePong(e.Pong)
	default:
		return nil, fmt.Errorf("wire: unknown datagram envelope kind %d", e.Kind)
	}
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDatagramEnvelope decodes a raw datagram payload.
func DecodeDatagramEnvelope(data []byte) (DatagramEnvelope, error) {
	r := bytes.NewReader(data)
	kind, err := readU8(r)
	if err != nil {
		return DatagramEnvelope{}, err
	}
	e := DatagramEnvelope{Kind: DatagramKind(kind)}
	switch e.Kind {
	case DatagramScreenDelta:
		e.ScreenDelta, err = DecodeScreenDelta(r)
	case DatagramStateAck:
		e.StateAck, err = DecodeStateAck(r)
	case DatagramPing:
		e.Ping, err = DecodePing(r)
	case DatagramPong:
		e.Pong, err = DecodePong(r)
	default:
		return e, fmt.Errorf("wire: unknown datagram envelope kind %d", e.Kind)
	}
	return e, err
}
