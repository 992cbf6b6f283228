package inputtr

import (
	"bytes"
	"testing"

	"github.com/zrp-project/zrp/wire"
)

func TestTranslateTextUTF8(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputTextUTF8, Text: "hello"}
	out, ok := Translate(event)
	if !ok || string(out) != "hello" {
		t.Fatalf("expected hello, got %q ok=%v", out, ok)
	}
}

func TestTranslateRawBytes(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputRawBytes, Raw: []byte{1, 2, 3}}
	out, ok := Translate(event)
	if !ok || !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("expected raw bytes passthrough, got %v ok=%v", out, ok)
	}
}

func TestTranslateUnicodeKey(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{Rune: 'a'}}
	out, ok := Translate(event)
	if !ok || string(out) != "a" {
		t.Fatalf("expected 'a', got %q ok=%v", out, ok)
	}
}

func TestTranslateSpecialKeyEnter(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{Special: wire.KeyEnter}}
	out, ok := Translate(event)
	if !ok || !bytes.Equal(out, []byte{'\r'}) {
		t.Fatalf("expected CR, got %v ok=%v", out, ok)
	}
}

func TestTranslateCtrlC(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{Modifiers: wire.ModCtrl, Rune: 'c'}}
	out, ok := Translate(event)
	if !ok || !bytes.Equal(out, []byte{0x03}) {
		t.Fatalf("expected 0x03, got %v ok=%v", out, ok)
	}
}

func TestTranslateCtrlUppercaseLetter(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{Modifiers: wire.ModCtrl, Rune: 'C'}}
	out, ok := Translate(event)
	if !ok || !bytes.Equal(out, []byte{0x03}) {
		t.Fatalf("expected 0x03 for Ctrl+Shift+C, got %v ok=%v", out, ok)
	}
}

func TestTranslateArrowKeys(t *testing.T) {
	cases := []struct {
		key  wire.SpecialKey
		want string
	}{
		{wire.KeyArrowUp, "\x1b[A"},
		{wire.KeyArrowDown, "\x1b[B"},
		{wire.KeyArrowRight, "\x1b[C"},
		{wire.KeyArrowLeft, "\x1b[D"},
	}
	for _, c := range cases {
		event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{Special: c.key}}
		out, ok := Translate(event)
		if !ok || string(out) != c.want {
			t.Fatalf("key %v: expected %q, got %q ok=%v", c.key, c.want, out, ok)
		}
	}
}

func TestTranslateFunctionKeys(t *testing.T) {
	cases := []struct {
		key  wire.SpecialKey
		want string
	}{
		{wire.KeyF1, "\x1bOP"},
		{wire.KeyF4, "\x1bOS"},
		{wire.KeyF5, "\x1b[15~"},
		{wire.KeyF12, "\x1b[24~"},
	}
	for _, c := range cases {
		event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{Special: c.key}}
		out, ok := Translate(event)
		if !ok || string(out) != c.want {
			t.Fatalf("key %v: expected %q, got %q ok=%v", c.key, c.want, out, ok)
		}
	}
}

func TestTranslateUnsetKeyFails(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputKey, Key: wire.KeyEvent{}}
	if _, ok := Translate(event); ok {
		t.Fatalf("expected unset key (no rune, no special) to fail translation")
	}
}

func TestTranslateMouseReserved(t *testing.T) {
	event := wire.InputEvent{PayloadKind: wire.InputMouse}
	if _, ok := Translate(event); ok {
		t.Fatalf("expected mouse events to be untranslated in v1")
	}
}
