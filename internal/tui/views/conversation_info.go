package views

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/tui/ui"
)

// ConversationInfo is the details page of one conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Details ")
	tv.SetTitleColor(theme.TitleColor)
	return &ConversationInfo{TextView: tv, theme: theme}
}

func (ci *ConversationInfo) Name() string { return "Details" }

func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}

// Update shows e with the number of lines currently loaded for it.
func (ci *ConversationInfo) Update(e conversation.Entry, loaded int) {
	ci.Clear()
	ci.ScrollToBeginning()
	if e.ID.IsZero() {
		_, _ = fmt.Fprint(ci, "\n No conversation selected.")
		return
	}

	kind := "Direct"
	if e.ID.IsGroup() {
		kind = "Group chat"
	}
	last := "-"
	if !e.LastActivity.IsZero() {
		last = humanize.Time(e.LastActivity)
	}

	fg, val := ui.Color(ci.theme.FgColor), ui.Color(ci.theme.CounterColor)
	rows := [][2]string{
		{"Name", sanitize(e.Label, true)},
		{"Key", tview.Escape(e.ID.Key())},
		{"Type", kind},
		{"Address", tview.Escape(e.ID.Target())},
		{"Last received", last},
		{"Loaded", humanize.Comma(int64(loaded)) + " lines"},
	}
	var b strings.Builder
	b.WriteByte('\n')
	for _, r := range rows {
		fmt.Fprintf(&b, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, r[0]+":", val, r[1])
	}

	if uri := ContactURI(e.ID.Target(), e.ID.IsGroup()); uri != "" {
		if art, err := renderQR(uri); err == nil {
			fmt.Fprintf(&b, "\n [%s]Scan to message %s[-]\n\n%s", val, tview.Escape(uri), art)
		}
	}
	_, _ = fmt.Fprint(ci, b.String())
	ci.SetTitle(" " + sanitize(e.Label, true) + " ")
}
