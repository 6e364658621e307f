package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/tui/ui"
)

// HelpView lists keys and commands.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{TextView: tv, theme: theme}
	hv.render()
	return hv
}

func (hv *HelpView) Name() string { return "Help" }

func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}

var helpSections = []struct {
	title string
	rows  [][2]string
}{
	{"Keys", [][2]string{
		{"Enter", "Open the highlighted conversation"},
		{"Tab", "Switch between the list and the composer"},
		{"n", "Start a conversation with a phone number or email"},
		{"r", "Toggle SMS and other services"},
		{", .", "Scroll the thread up and down"},
		{"e", "Press Return in Messages.app"},
		{"/", "Filter the conversation list"},
		{"d", "Conversation details"},
		{":", "Command prompt"},
		{"?", "This help"},
		{"Esc", "Back"},
		{"q", "Quit"},
	}},
	{"Commands", [][2]string{
		{":new <to>", "Open a conversation"},
		{":services", "Toggle SMS and other services"},
		{":refresh", "Reload everything now"},
		{":details", "Conversation details"},
		{":help", "This help"},
		{":quit", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.Color(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-12s[-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
