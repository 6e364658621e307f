package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/status"
	"github.com/matheus3301/imsg/internal/tui/ui"
)

// StatusBar is the bottom line: sync state, services, send state, clock.
type StatusBar struct {
	*tview.TextView
	theme    *ui.Theme
	state    status.State
	services bool
	sending  bool
	now      func() time.Time
}

func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, theme: theme, state: status.Booting, now: time.Now}
}

func (sb *StatusBar) Update(state status.State, otherServices, sending bool) {
	sb.state, sb.services, sb.sending = state, otherServices, sending
	sb.render()
}

// Tick redraws the clock.
func (sb *StatusBar) Tick() { sb.render() }

func (sb *StatusBar) render() {
	sb.Clear()
	color := sb.theme.SenderColor
	switch sb.state {
	case status.Degraded, status.Syncing, status.Booting:
		color = sb.theme.FlashWarnColor
	case status.Error:
		color = sb.theme.FlashErrColor
	}
	services := "iMessage"
	if sb.services {
		services = "all services"
	}
	line := fmt.Sprintf(" [%s::b]%s[-:-:-] | %s", ui.Color(color), sb.state, services)
	if sb.sending {
		line += " | sending…"
	}
	line += " | " + sb.now().Format("15:04")
	_, _ = fmt.Fprint(sb, line)
}
