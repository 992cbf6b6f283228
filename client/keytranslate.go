package client

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zrp-project/zrp/wire"
)

// TranslateKey converts a tcell key event into the wire KeyEvent this
// client sends upstream, the reverse direction of package inputtr's
// server-side escape-sequence translation.
func TranslateKey(ev *tcell.EventKey) (wire.KeyEvent, bool) {
	var mods wire.KeyModifiers
	m := ev.Modifiers()
	if m&tcell.ModShift != 0 {
		mods |= wire.ModShift
	}
	if m&tcell.ModAlt != 0 {
		mods |= wire.ModAlt
	}
	if m&tcell.ModCtrl != 0 {
		mods |= wire.ModCtrl
	}
	if m&tcell.ModMeta != 0 {
		mods |= wire.ModSuper
	}

	if special, ok := specialFromTcell(ev.Key()); ok {
		return wire.KeyEvent{Modifiers: mods, Special: special}, true
	}

	if ev.Key() == tcell.KeyRune {
		return wire.KeyEvent{Modifiers: mods, Rune: ev.Rune()}, true
	}

	if ev.Key() >= tcell.KeyCtrlA && ev.Key() <= tcell.KeyCtrlZ {
		r := rune(ev.Key()-tcell.KeyCtrlA) + 'a'
		return wire.KeyEvent{Modifiers: mods | wire.ModCtrl, Rune: r}, true
	}

	return wire.KeyEvent{}, false
}

func specialFromTcell(k tcell.Key) (wire.SpecialKey, bool) {
	switch k {
	case tcell.KeyEnter:
		return wire.KeyEnter, true
	case tcell.KeyEscape:
		return wire.KeyEscape, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return wire.KeyBackspace, true
	case tcell.KeyTab:
		return wire.KeyTab, true
	case tcell.KeyUp:
		return wire.KeyArrowUp, true
	case tcell.KeyDown:
		return wire.KeyArrowDown, true
	case tcell.KeyRight:
		return wire.KeyArrowRight, true
	case tcell.KeyLeft:
		return wire.KeyArrowLeft, true
	case tcell.KeyHome:
		return wire.KeyHome, true
	case tcell.KeyEnd:
		return wire.KeyEnd, true
	case tcell.KeyPgUp:
		return wire.KeyPageUp, true
	case tcell.KeyPgDn:
		return wire.KeyPageDown, true
	case tcell.KeyInsert:
		return wire.KeyInsert, true
	case tcell.KeyDelete:
		return wire.KeyDelete, true
	case tcell.KeyF1:
		return wire.KeyF1, true
	case tcell.KeyF2:
		return wire.KeyF2, true
	case tcell.KeyF3:
		return wire.KeyF3, true
	case tcell.KeyF4:
		return wire.KeyF4, true
	case tcell.KeyF5:
		return wire.KeyF5, true
	case tcell.KeyF6:
		return wire.KeyF6, true
	case tcell.KeyF7:
		return wire.KeyF7, true
	case tcell.KeyF8:
		return wire.KeyF8, true
	case tcell.KeyF9:
		return wire.KeyF9, true
	case tcell.KeyF10:
		return wire.KeyF10, true
	case tcell.KeyF11:
		return wire.KeyF11, true
	case tcell.KeyF12:
		return wire.KeyF12, true
	default:
		return wire.KeyNone, false
	}
}
