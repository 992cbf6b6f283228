package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zrp-project/zrp/style"
)

// --- primitive helpers, in the style of protocol/messages.go's
// encodeString/decodeString: explicit length prefixes, LittleEndian
// throughout, no reflection-based codec.

func writeU8(buf *bytes.Buffer, v uint8) error  { return buf.WriteByte(v) }
func writeU16(buf *bytes.Buffer, v uint16) error { return binary.Write(buf, binary.LittleEndian, v) }
func writeU32(buf *bytes.Buffer, v uint32) error { return binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) error { return binary.Write(buf, binary.LittleEndian, v) }
func writeI32(buf *bytes.Buffer, v int32) error  { return binary.Write(buf, binary.LittleEndian, v) }

func writeBool(buf *bytes.Buffer, v bool) error {
	if v {
		return writeU8(buf, 1)
	}
	return writeU8(buf, 0)
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("wire: string too long (%d bytes)", len(s))
	}
	if err := writeU16(buf, uint16(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if err := writeU32(buf, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func writeRunes(buf *bytes.Buffer, rs []rune) error {
	if err := writeU32(buf, uint32(len(rs))); err != nil {
		return err
	}
	for _, r := range rs {
		if err := writeU32(buf, uint32(r)); err != nil {
			return err
		}
	}
	return nil
}

func writeU8Slice(buf *bytes.Buffer, xs []uint8) error {
	if err := writeU32(buf, uint32(len(xs))); err != nil {
		return err
	}
	_, err := buf.Write(xs)
	return err
}

func writeU16Slice(buf *bytes.Buffer, xs []uint16) error {
	if err := writeU32(buf, uint32(len(xs))); err != nil {
		return err
	}
	for _, x := range xs {
		if err := writeU16(buf, x); err != nil {
			return err
		}
	}
	return nil
}

func readU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readI32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readBool(r io.Reader) (bool, error) {
	v, err := readU8(r)
	return v != 0, err
}

func readString(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: byte slice length %d exceeds frame cap", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readRunes(r io.Reader) ([]rune, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: rune slice length %d exceeds frame cap", n)
	}
	out := make([]rune, n)
	for i := range out {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = rune(v)
	}
	return out, nil
}

func readU8Slice(r io.Reader) ([]uint8, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: byte slice length %d exceeds frame cap", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readU16Slice(r io.Reader) ([]uint16, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: uint16 slice length %d exceeds frame cap", n)
	}
	out := make([]uint16, n)
	for i := range out {
		v, err := readU16(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// --- composite field helpers

func writeColor(buf *bytes.Buffer, c style.Color) error {
	if err := writeU8(buf, uint8(c.Kind)); err != nil {
		return err
	}
	if err := writeU8(buf, c.ANSI256); err != nil {
		return err
	}
	if err := writeU8(buf, c.R); err != nil {
		return err
	}
	if err := writeU8(buf, c.G); err != nil {
		return err
	}
	return writeU8(buf, c.B)
}

func readColor(r io.Reader) (style.Color, error) {
	var c style.Color
	kind, err := readU8(r)
	if err != nil {
		return c, err
	}
	c.Kind = style.ColorKind(kind)
	if c.ANSI256, err = readU8(r); err != nil {
		return c, err
	}
	if c.R, err = readU8(r); err != nil {
		return c, err
	}
	if c.G, err = readU8(r); err != nil {
		return c, err
	}
	if c.B, err = readU8(r); err != nil {
		return c, err
	}
	return c, nil
}

func writeStyle(buf *bytes.Buffer, s style.Style) error {
	if err := writeColor(buf, s.Fg); err != nil {
		return err
	}
	if err := writeColor(buf, s.Bg); err != nil {
		return err
	}
	flags := uint8(0)
	bits := []bool{s.Bold, s.Dim, s.Italic, s.Reverse, s.Hidden, s.Strike, s.BlinkSlow, s.BlinkFast}
	for i, b := range bits {
		if b {
			flags |= 1 << uint(i)
		}
	}
	if err := writeU8(buf, flags); err != nil {
		return err
	}
	if err := writeU8(buf, uint8(s.Underline)); err != nil {
		return err
	}
	if err := writeBool(buf, s.HasUnderlineColor); err != nil {
		return err
	}
	return writeColor(buf, s.UnderlineColor)
}

func readStyle(r io.Reader) (style.Style, error) {
	var s style.Style
	var err error
	if s.Fg, err = readColor(r); err != nil {
		return s, err
	}
	if s.Bg, err = readColor(r); err != nil {
		return s, err
	}
	flags, err := readU8(r)
	if err != nil {
		return s, err
	}
	s.Bold = flags&(1<<0) != 0
	s.Dim = flags&(1<<1) != 0
	s.Italic = flags&(1<<2) != 0
	s.Reverse = flags&(1<<3) != 0
	s.Hidden = flags&(1<<4) != 0
	s.Strike = flags&(1<<5) != 0
	s.BlinkSlow = flags&(1<<6) != 0
	s.BlinkFast = flags&(1<<7) != 0
	ul, err := readU8(r)
	if err != nil {
		return s, err
	}
	s.Underline = style.UnderlineStyle(ul)
	if s.HasUnderlineColor, err = readBool(r); err != nil {
		return s, err
	}
	if s.UnderlineColor, err = readColor(r); err != nil {
		return s, err
	}
	return s, nil
}

func writeStyleDefs(buf *bytes.Buffer, defs []StyleDef) error {
	if err := writeU32(buf, uint32(len(defs))); err != nil {
		return err
	}
	for _, d := range defs {
		if err := writeU16(buf, d.ID); err != nil {
			return err
		}
		if err := writeStyle(buf, d.Style); err != nil {
			return err
		}
	}
	return nil
}

func readStyleDefs(r io.Reader) ([]StyleDef, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: style def count %d exceeds frame cap", n)
	}
	out := make([]StyleDef, n)
	for i := range out {
		id, err := readU16(r)
		if err != nil {
			return nil, err
		}
		s, err := readStyle(r)
		if err != nil {
			return nil, err
		}
		out[i] = StyleDef{ID: id, Style: s}
	}
	return out, nil
}

func writeCapabilities(buf *bytes.Buffer, c Capabilities) error {
	flags := uint8(0)
	bits := []bool{c.SupportsDatagrams, c.SupportsStyleDictionary, c.SupportsStyledUnderlines,
		c.SupportsPrediction, c.SupportsImages, c.SupportsClipboard, c.SupportsHyperlinks}
	for i, b := range bits {
		if b {
			flags |= 1 << uint(i)
		}
	}
	if err := writeU8(buf, flags); err != nil {
		return err
	}
	return writeU32(buf, c.MaxDatagramBytes)
}

func readCapabilities(r io.Reader) (Capabilities, error) {
	var c Capabilities
	flags, err := readU8(r)
	if err != nil {
		return c, err
	}
	c.SupportsDatagrams = flags&(1<<0) != 0
	c.SupportsStyleDictionary = flags&(1<<1) != 0
	c.SupportsStyledUnderlines = flags&(1<<2) != 0
	c.SupportsPrediction = flags&(1<<3) != 0
	c.SupportsImages = flags&(1<<4) != 0
	c.SupportsClipboard = flags&(1<<5) != 0
	c.SupportsHyperlinks = flags&(1<<6) != 0
	if c.MaxDatagramBytes, err = readU32(r); err != nil {
		return c, err
	}
	return c, nil
}

func writeVersion(buf *bytes.Buffer, v ProtocolVersion) error {
	if err := writeU16(buf, v.Major); err != nil {
		return err
	}
	return writeU16(buf, v.Minor)
}

func readVersion(r io.Reader) (ProtocolVersion, error) {
	var v ProtocolVersion
	var err error
	if v.Major, err = readU16(r); err != nil {
		return v, err
	}
	if v.Minor, err = readU16(r); err != nil {
		return v, err
	}
	return v, nil
}

func writeCursor(buf *bytes.Buffer, c WireCursor) error {
	if err := writeI32(buf, c.Row); err != nil {
		return err
	}
	if err := writeI32(buf, c.Col); err != nil {
		return err
	}
	if err := writeBool(buf, c.Visible); err != nil {
		return err
	}
	if err := writeBool(buf, c.Blink); err != nil {
		return err
	}
	return writeU8(buf, uint8(c.Shape))
}

func readCursor(r io.Reader) (WireCursor, error) {
	var c WireCursor
	var err error
	if c.Row, err = readI32(r); err != nil {
		return c, err
	}
	if c.Col, err = readI32(r); err != nil {
		return c, err
	}
	if c.Visible, err = readBool(r); err != nil {
		return c, err
	}
	if c.Blink, err = readBool(r); err != nil {
		return c, err
	}
	shape, err := readU8(r)
	if err != nil {
		return c, err
	}
	c.Shape = CursorShape(shape)
	return c, nil
}

func writeLease(buf *bytes.Buffer, l ControllerLease) error {
	if err := writeU64(buf, l.LeaseID); err != nil {
		return err
	}
	if err := writeU64(buf, l.OwnerClientID); err != nil {
		return err
	}
	if err := writeU8(buf, uint8(l.Policy)); err != nil {
		return err
	}
	if err := writeBool(buf, l.HasSize); err != nil {
		return err
	}
	if err := writeU32(buf, l.Cols); err != nil {
		return err
	}
	if err := writeU32(buf, l.Rows); err != nil {
		return err
	}
	if err := writeU32(buf, l.RemainingMs); err != nil {
		return err
	}
	return writeU32(buf, l.DurationMs)
}

func readLease(r io.Reader) (ControllerLease, error) {
	var l ControllerLease
	var err error
	if l.LeaseID, err = readU64(r); err != nil {
		return l, err
	}
	if l.OwnerClientID, err = readU64(r); err != nil {
		return l, err
	}
	policy, err := readU8(r)
	if err != nil {
		return l, err
	}
	l.Policy = ControllerPolicy(policy)
	if l.HasSize, err = readBool(r); err != nil {
		return l, err
	}
	if l.Cols, err = readU32(r); err != nil {
		return l, err
	}
	if l.Rows, err = readU32(r); err != nil {
		return l, err
	}
	if l.RemainingMs, err = readU32(r); err != nil {
		return l, err
	}
	if l.DurationMs, err = readU32(r); err != nil {
		return l, err
	}
	return l, nil
}

func writeRowData(buf *bytes.Buffer, rows []RowData) error {
	if err := writeU32(buf, uint32(len(rows))); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeU16(buf, row.Row); err != nil {
			return err
		}
		if err := writeRunes(buf, row.Codepoints); err != nil {
			return err
		}
		if err := writeU8Slice(buf, row.Widths); err != nil {
			return err
		}
		if err := writeU16Slice(buf, row.StyleIDs); err != nil {
			return err
		}
	}
	return nil
}

func readRowData(r io.Reader) ([]RowData, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: row count %d exceeds frame cap", n)
	}
	out := make([]RowData, n)
	for i := range out {
		row, err := readU16(r)
		if err != nil {
			return nil, err
		}
		cps, err := readRunes(r)
		if err != nil {
			return nil, err
		}
		widths, err := readU8Slice(r)
		if err != nil {
			return nil, err
		}
		ids, err := readU16Slice(r)
		if err != nil {
			return nil, err
		}
		out[i] = RowData{Row: row, Codepoints: cps, Widths: widths, StyleIDs: ids}
	}
	return out, nil
}

func writeCellRuns(buf *bytes.Buffer, runs []CellRun) error {
	if err := writeU32(buf, uint32(len(runs))); err != nil {
		return err
	}
	for _, run := range runs {
		if err := writeU16(buf, run.ColStart); err != nil {
			return err
		}
		if err := writeRunes(buf, run.Codepoints); err != nil {
			return err
		}
		if err := writeU8Slice(buf, run.Widths); err != nil {
			return err
		}
		if err := writeU16Slice(buf, run.StyleIDs); err != nil {
			return err
		}
	}
	return nil
}

func readCellRuns(r io.Reader) ([]CellRun, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: run count %d exceeds frame cap", n)
	}
	out := make([]CellRun, n)
	for i := range out {
		colStart, err := readU16(r)
		if err != nil {
			return nil, err
		}
		cps, err := readRunes(r)
		if err != nil {
			return nil, err
		}
		widths, err := readU8Slice(r)
		if err != nil {
			return nil, err
		}
		ids, err := readU16Slice(r)
		if err != nil {
			return nil, err
		}
		out[i] = CellRun{ColStart: colStart, Codepoints: cps, Widths: widths, StyleIDs: ids}
	}
	return out, nil
}

func writeRowPatches(buf *bytes.Buffer, patches []RowPatch) error {
	if err := writeU32(buf, uint32(len(patches))); err != nil {
		return err
	}
	for _, p := range patches {
		if err := writeU16(buf, p.Row); err != nil {
			return err
		}
		if err := writeCellRuns(buf, p.Runs); err != nil {
			return err
		}
	}
	return nil
}

func readRowPatches(r io.Reader) ([]RowPatch, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: patch count %d exceeds frame cap", n)
	}
	out := make([]RowPatch, n)
	for i := range out {
		row, err := readU16(r)
		if err != nil {
			return nil, err
		}
		runs, err := readCellRuns(r)
		if err != nil {
			return nil, err
		}
		out[i] = RowPatch{Row: row, Runs: runs}
	}
	return out, nil
}

// --- message-level encode/decode

func EncodeClientHello(m ClientHello) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeVersion(buf, m.Version); err != nil {
		return nil, err
	}
	if err := writeCapabilities(buf, m.Capabilities); err != nil {
		return nil, err
	}
	if err := writeString(buf, m.ClientName); err != nil {
		return nil, err
	}
	if err := writeBytes(buf, m.BearerToken); err != nil {
		return nil, err
	}
	if err := writeBytes(buf, m.ResumeToken); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeClientHello(r io.Reader) (ClientHello, error) {
	var m ClientHello
	var err error
	if m.Version, err = readVersion(r); err != nil {
		return m, err
	}
	if m.Capabilities, err = readCapabilities(r); err != nil {
		return m, err
	}
	if m.ClientName, err = readString(r); err != nil {
		return m, err
	}
	if m.BearerToken, err = readBytes(r); err != nil {
		return m, err
	}
	if m.ResumeToken, err = readBytes(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeServerHello(m ServerHello) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeVersion(buf, m.NegotiatedVersion); err != nil {
		return nil, err
	}
	if err := writeCapabilities(buf, m.NegotiatedCapabilities); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.ClientID); err != nil {
		return nil, err
	}
	if err := writeString(buf, m.SessionName); err != nil {
		return nil, err
	}
	if err := writeU8(buf, uint8(m.SessionState)); err != nil {
		return nil, err
	}
	if err := writeBool(buf, m.HasLease); err != nil {
		return nil, err
	}
	if err := writeLease(buf, m.Lease); err != nil {
		return nil, err
	}
	if err := writeBytes(buf, m.ResumeToken); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.SnapshotIntervalMs); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.MaxInflightInputs); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.RenderWindow); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeServerHello(r io.Reader) (ServerHello, error) {
	var m ServerHello
	var err error
	if m.NegotiatedVersion, err = readVersion(r); err != nil {
		return m, err
	}
	if m.NegotiatedCapabilities, err = readCapabilities(r); err != nil {
		return m, err
	}
	if m.ClientID, err = readU64(r); err != nil {
		return m, err
	}
	if m.SessionName, err = readString(r); err != nil {
		return m, err
	}
	state, err := readU8(r)
	if err != nil {
		return m, err
	}
	m.SessionState = SessionState(state)
	if m.HasLease, err = readBool(r); err != nil {
		return m, err
	}
	if m.Lease, err = readLease(r); err != nil {
		return m, err
	}
	if m.ResumeToken, err = readBytes(r); err != nil {
		return m, err
	}
	if m.SnapshotIntervalMs, err = readU32(r); err != nil {
		return m, err
	}
	if m.MaxInflightInputs, err = readU32(r); err != nil {
		return m, err
	}
	if m.RenderWindow, err = readU32(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeScreenSnapshot(m ScreenSnapshot) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.StateID); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.Cols); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.Rows); err != nil {
		return nil, err
	}
	if err := writeBool(buf, m.StyleTableReset); err != nil {
		return nil, err
	}
	if err := writeStyleDefs(buf, m.Styles); err != nil {
		return nil, err
	}
	if err := writeRowData(buf, m.RowData); err != nil {
		return nil, err
	}
	if err := writeCursor(buf, m.Cursor); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.DeliveredInputWatermark); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeScreenSnapshot(r io.Reader) (ScreenSnapshot, error) {
	var m ScreenSnapshot
	var err error
	if m.StateID, err = readU64(r); err != nil {
		return m, err
	}
	if m.Cols, err = readU32(r); err != nil {
		return m, err
	}
	if m.Rows, err = readU32(r); err != nil {
		return m, err
	}
	if m.StyleTableReset, err = readBool(r); err != nil {
		return m, err
	}
	if m.Styles, err = readStyleDefs(r); err != nil {
		return m, err
	}
	if m.RowData, err = readRowData(r); err != nil {
		return m, err
	}
	if m.Cursor, err = readCursor(r); err != nil {
		return m, err
	}
	if m.DeliveredInputWatermark, err = readU64(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeScreenDelta(m ScreenDelta) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.BaseStateID); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.StateID); err != nil {
		return nil, err
	}
	if err := writeStyleDefs(buf, m.StylesAdded); err != nil {
		return nil, err
	}
	if err := writeRowPatches(buf, m.RowPatches); err != nil {
		return nil, err
	}
	if err := writeBool(buf, m.HasCursor); err != nil {
		return nil, err
	}
	if err := writeCursor(buf, m.Cursor); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.DeliveredInputWatermark); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeScreenDelta(r io.Reader) (ScreenDelta, error) {
	var m ScreenDelta
	var err error
	if m.BaseStateID, err = readU64(r); err != nil {
		return m, err
	}
	if m.StateID, err = readU64(r); err != nil {
		return m, err
	}
	if m.StylesAdded, err = readStyleDefs(r); err != nil {
		return m, err
	}
	if m.RowPatches, err = readRowPatches(r); err != nil {
		return m, err
	}
	if m.HasCursor, err = readBool(r); err != nil {
		return m, err
	}
	if m.Cursor, err = readCursor(r); err != nil {
		return m, err
	}
	if m.DeliveredInputWatermark, err = readU64(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeStateAck(m StateAck) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.LastAppliedStateID); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.LastReceivedStateID); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.ClientTimeMs); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.EstimatedLossPPM); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.SrttMs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeStateAck(r io.Reader) (StateAck, error) {
	var m StateAck
	var err error
	if m.LastAppliedStateID, err = readU64(r); err != nil {
		return m, err
	}
	if m.LastReceivedStateID, err = readU64(r); err != nil {
		return m, err
	}
	if m.ClientTimeMs, err = readU64(r); err != nil {
		return m, err
	}
	if m.EstimatedLossPPM, err = readU32(r); err != nil {
		return m, err
	}
	if m.SrttMs, err = readU32(r); err != nil {
		return m, err
	}
	return m, nil
}

func writeKeyEvent(buf *bytes.Buffer, k KeyEvent) error {
	if err := writeU8(buf, uint8(k.Modifiers)); err != nil {
		return err
	}
	if err := writeU8(buf, uint8(k.Special)); err != nil {
		return err
	}
	return writeU32(buf, uint32(k.Rune))
}

func readKeyEvent(r io.Reader) (KeyEvent, error) {
	var k KeyEvent
	mods, err := readU8(r)
	if err != nil {
		return k, err
	}
	k.Modifiers = KeyModifiers(mods)
	special, err := readU8(r)
	if err != nil {
		return k, err
	}
	k.Special = SpecialKey(special)
	ru, err := readU32(r)
	if err != nil {
		return k, err
	}
	k.Rune = rune(ru)
	return k, nil
}

func writeMouseEvent(buf *bytes.Buffer, m MouseEvent) error {
	if err := writeI32(buf, m.Row); err != nil {
		return err
	}
	if err := writeI32(buf, m.Col); err != nil {
		return err
	}
	if err := writeU8(buf, m.Button); err != nil {
		return err
	}
	return writeBool(buf, m.Pressed)
}

func readMouseEvent(r io.Reader) (MouseEvent, error) {
	var m MouseEvent
	var err error
	if m.Row, err = readI32(r); err != nil {
		return m, err
	}
	if m.Col, err = readI32(r); err != nil {
		return m, err
	}
	if m.Button, err = readU8(r); err != nil {
		return m, err
	}
	if m.Pressed, err = readBool(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeInputEvent(m InputEvent) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.InputSeq); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.ClientTimeMs); err != nil {
		return nil, err
	}
	if err := writeU8(buf, uint8(m.PayloadKind)); err != nil {
		return nil, err
	}
	switch m.PayloadKind {
	case InputTextUTF8:
		if err := writeString(buf, m.Text); err != nil {
			return nil, err
		}
	case InputRawBytes:
		if err := writeBytes(buf, m.Raw); err != nil {
			return nil, err
		}
	case InputKey:
		if err := writeKeyEvent(buf, m.Key); err != nil {
			return nil, err
		}
	case InputMouse:
		if err := writeMouseEvent(buf, m.Mouse); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("wire: unknown input payload kind %d", m.PayloadKind)
	}
	return buf.Bytes(), nil
}

func DecodeInputEvent(r io.Reader) (InputEvent, error) {
	var m InputEvent
	var err error
	if m.InputSeq, err = readU64(r); err != nil {
		return m, err
	}
	if m.ClientTimeMs, err = readU64(r); err != nil {
		return m, err
	}
	kind, err := readU8(r)
	if err != nil {
		return m, err
	}
	m.PayloadKind = InputPayloadKind(kind)
	switch m.PayloadKind {
	case InputTextUTF8:
		if m.Text, err = readString(r); err != nil {
			return m, err
		}
	case InputRawBytes:
		if m.Raw, err = readBytes(r); err != nil {
			return m, err
		}
	case InputKey:
		if m.Key, err = readKeyEvent(r); err != nil {
			return m, err
		}
	case InputMouse:
		if m.Mouse, err = readMouseEvent(r); err != nil {
			return m, err
		}
	default:
		return m, fmt.Errorf("wire: unknown input payload kind %d", m.PayloadKind)
	}
	return m, nil
}

func EncodeInputAck(m InputAck) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.AckedSeq); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.RTTSampleSeq); err != nil {
		return nil, err
	}
	if err := writeU64(buf, m.EchoedClientTimeMs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeInputAck(r io.Reader) (InputAck, error) {
	var m InputAck
	var err error
	if m.AckedSeq, err = readU64(r); err != nil {
		return m, err
	}
	if m.RTTSampleSeq, err = readU64(r); err != nil {
		return m, err
	}
	if m.EchoedClientTimeMs, err = readU64(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeProtocolError(m ProtocolError) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU8(buf, uint8(m.Code)); err != nil {
		return nil, err
	}
	if err := writeBool(buf, m.Fatal); err != nil {
		return nil, err
	}
	if err := writeString(buf, m.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeProtocolError(r io.Reader) (ProtocolError, error) {
	var m ProtocolError
	code, err := readU8(r)
	if err != nil {
		return m, err
	}
	m.Code = ProtocolErrorCode(code)
	if m.Fatal, err = readBool(r); err != nil {
		return m, err
	}
	if m.Message, err = readString(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeRequestSnapshot(m RequestSnapshot) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU8(buf, uint8(m.Reason)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRequestSnapshot(r io.Reader) (RequestSnapshot, error) {
	var m RequestSnapshot
	reason, err := readU8(r)
	m.Reason = RequestSnapshotReason(reason)
	return m, err
}

func EncodeLeaseRequest(m LeaseRequest) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeBool(buf, m.HasSize); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.Cols); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.Rows); err != nil {
		return nil, err
	}
	if err := writeBool(buf, m.Force); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeLeaseRequest(r io.Reader) (LeaseRequest, error) {
	var m LeaseRequest
	var err error
	if m.HasSize, err = readBool(r); err != nil {
		return m, err
	}
	if m.Cols, err = readU32(r); err != nil {
		return m, err
	}
	if m.Rows, err = readU32(r); err != nil {
		return m, err
	}
	if m.Force, err = readBool(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeLeaseRelease(m LeaseRelease) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.LeaseID); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeLeaseRelease(r io.Reader) (LeaseRelease, error) {
	id, err := readU64(r)
	return LeaseRelease{LeaseID: id}, err
}

func EncodeLeaseKeepAlive(m LeaseKeepAlive) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.LeaseID); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeLeaseKeepAlive(r io.Reader) (LeaseKeepAlive, error) {
	id, err := readU64(r)
	return LeaseKeepAlive{LeaseID: id}, err
}

func EncodeLeaseSetSize(m LeaseSetSize) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.LeaseID); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.Cols); err != nil {
		return nil, err
	}
	if err := writeU32(buf, m.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeLeaseSetSize(r io.Reader) (LeaseSetSize, error) {
	var m LeaseSetSize
	var err error
	if m.LeaseID, err = readU64(r); err != nil {
		return m, err
	}
	if m.Cols, err = readU32(r); err != nil {
		return m, err
	}
	if m.Rows, err = readU32(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodeLeaseRevoked(m LeaseRevoked) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.LeaseID); err != nil {
		return nil, err
	}
	if err := writeString(buf, m.Reason); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeLeaseRevoked(r io.Reader) (LeaseRevoked, error) {
	var m LeaseRevoked
	var err error
	if m.LeaseID, err = readU64(r); err != nil {
		return m, err
	}
	if m.Reason, err = readString(r); err != nil {
		return m, err
	}
	return m, nil
}

func EncodePing(m Ping) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func DecodePing(r io.Reader) (Ping, error) { n, err := readU64(r); return Ping{Nonce: n}, err }

func EncodePong(m Pong) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeU64(buf, m.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func DecodePong(r io.Reader) (Pong, error) { n, err := readU64(r); return Pong{Nonce: n}, err }

func EncodeUnsupportedFeatureNotice(m UnsupportedFeatureNotice) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeString(buf, m.Feature); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeUnsupportedFeatureNotice(r io.Reader) (UnsupportedFeatureNotice, error) {
	s, err := readString(r)
	return UnsupportedFeatureNotice{Feature: s}, err
}
