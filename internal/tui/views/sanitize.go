package views

import (
	"strings"
	"unicode"

	"github.com/rivo/tview"
)

// joiners are code points tcell draws as stray cells: skin tone
// modifiers, zero width joiners and variation selectors. Dropping them
// leaves the base emoji, which renders at a stable width.
var joiners = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200D, Hi: 0x200D, Stride: 1},
		{Lo: 0xFE00, Hi: 0xFE0F, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F3FB, Hi: 0x1F3FF, Stride: 1},
		{Lo: 0xE0100, Hi: 0xE01EF, Stride: 1},
	},
}

// sanitize prepares user text for a tview cell: joiners are dropped,
// newlines become spaces when oneLine is set, and color tags are escaped.
func sanitize(s string, oneLine bool) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(joiners, r):
			return -1
		case oneLine && (r == '\n' || r == '\r'):
			return ' '
		}
		return r
	}, s)
	return tview.Escape(s)
}
