// Package inputtr translates wire InputEvents into the raw bytes a
// controller pane's pseudo-terminal expects (spec §4.9 "Input
// Translation").
package inputtr

import "github.com/zrp-project/zrp/wire"

// Translate converts an InputEvent's payload into the bytes that should be
// written to the controller pane, or (nil, false) if the event carries no
// translatable effect (e.g. an unset key, or a reserved mouse event).
func Translate(event wire.InputEvent) ([]byte, bool) {
	switch event.PayloadKind {
	case wire.InputTextUTF8:
		return []byte(event.Text), true
	case wire.InputRawBytes:
		return event.Raw, true
	case wire.InputKey:
		return translateKey(event.Key)
	case wire.InputMouse:
		// Reserved; not required for v1 correctness.
		return nil, false
	default:
		return nil, false
	}
}

func translateKey(key wire.KeyEvent) ([]byte, bool) {
	hasCtrl := key.Modifiers&wire.ModCtrl != 0

	if key.Special == wire.KeyNone {
		if key.Rune == 0 {
			return nil, false
		}
		if hasCtrl && isASCIILetter(key.Rune) {
			lower := key.Rune | 0x20
			return []byte{byte(lower-'a') + 1}, true
		}
		return []byte(string(key.Rune)), true
	}

	if bytes, ok := specialKeyBytes(key.Special); ok {
		return bytes, true
	}
	return nil, false
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func specialKeyBytes(k wire.SpecialKey) ([]byte, bool) {
	switch k {
	case wire.KeyEnter:
		return []byte{'\r'}, true
	case wire.KeyTab:
		return []byte{'\t'}, true
	case wire.KeyBackspace:
		return []byte{0x7f}, true
	case wire.KeyEscape:
		return []byte{0x1b}, true
	case wire.KeyArrowLeft:
		return []byte("\x1b[D"), true
	case wire.KeyArrowRight:
		return []byte("\x1b[C"), true
	case wire.KeyArrowUp:
		return []byte("\x1b[A"), true
	case wire.KeyArrowDown:
		return []byte("\x1b[B"), true
	case wire.KeyHome:
		return []byte("\x1b[H"), true
	case wire.KeyEnd:
		return []byte("\x1b[F"), true
	case wire.KeyPageUp:
		return []byte("\x1b[5~"), true
	case wire.KeyPageDown:
		return []byte("\x1b[6~"), true
	case wire.KeyInsert:
		return []byte("\x1b[2~"), true
	case wire.KeyDelete:
		return []byte("\x1b[3~"), true
	case wire.KeyF1:
		return []byte("\x1bOP"), true
	case wire.KeyF2:
		return []byte("\x1bOQ"), true
	case wire.KeyF3:
		return []byte("\x1bOR"), true
	case wire.KeyF4:
		return []byte("\x1bOS"), true
	case wire.KeyF5:
		return []byte("\x1b[15~"), true
	case wire.KeyF6:
		return []byte("\x1b[17~"), true
	case wire.KeyF7:
		return []byte("\x1b[18~"), true
	case wire.KeyF8:
		return []byte("\x1b[19~"), true
	case wire.KeyF9:
		return []byte("\x1b[20~"), true
	case wire.KeyF10:
		return []byte("\x1b[21~"), true
	case wire.KeyF11:
		return []byte("\x1b[23~"), true
	case wire.KeyF12:
		return []byte("\x1b[24~"), true
	default:
		return nil, false
	}
}
