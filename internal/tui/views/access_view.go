package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/tui/ui"
)

// AccessView explains the macOS permissions imsg needs to drive
// Messages.app.
type AccessView struct {
	*tview.TextView
	theme *ui.Theme
}

func NewAccessView(theme *ui.Theme) *AccessView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Permissions ")
	tv.SetTitleColor(theme.TitleColor)
	return &AccessView{TextView: tv, theme: theme}
}

func (av *AccessView) Name() string { return "Access" }

func (av *AccessView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "o", Description: "Open Settings"},
		{Key: "Esc", Description: "Continue"},
	}
}

// Update shows which permissions are missing.
func (av *AccessView) Update(assistive, keyboard bool) {
	av.Clear()
	ok, missing := ui.Color(av.theme.SenderColor), ui.Color(av.theme.FlashErrColor)
	mark := func(granted bool) string {
		if granted {
			return fmt.Sprintf("[%s]granted[-]", ok)
		}
		return fmt.Sprintf("[%s]missing[-]", missing)
	}
	_, _ = fmt.Fprintf(av, `
 [::b]Accessibility[-:-:-]         %s
 [::b]Full keyboard access[-:-:-]  %s

 Reading messages only needs Full Disk Access. Sending them goes through
 Messages.app, and pressing Return there (key e) uses System Events, which
 needs your terminal listed under
 System Settings > Privacy & Security > Accessibility.

 Full keyboard access (System Settings > Keyboard > Keyboard navigation)
 lets Return reach the send button.

 Press o to open the Accessibility settings, Esc to continue without them.
`, mark(assistive), mark(keyboard))
}
