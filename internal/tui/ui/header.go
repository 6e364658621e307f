package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// InfoData is what the header's info panel shows.
type InfoData struct {
	ChatDB        string
	Status        string
	Conversations int
	LastRowID     int64
	OtherServices bool
	Names         int
}

// InfoPanel is the left part of the header.
type InfoPanel struct {
	*tview.TextView
	theme *Theme
}

func NewInfoPanel(theme *Theme) *InfoPanel {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &InfoPanel{TextView: tv, theme: theme}
}

func (p *InfoPanel) Update(d InfoData) {
	p.Clear()
	services := "iMessage"
	if d.OtherServices {
		services = "all"
	}
	fg, val := Color(p.theme.FgColor), Color(p.theme.CounterColor)
	rows := [][2]string{
		{"Store", tview.Escape(d.ChatDB)},
		{"Status", d.Status},
		{"Services", services},
		{"Chats", fmt.Sprint(d.Conversations)},
		{"Names", fmt.Sprint(d.Names)},
		{"Row", fmt.Sprint(d.LastRowID)},
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("[%s::b]%-9s[-:-:-][%s]%s[-]", fg, r[0]+":", val, r[1])
	}
	_, _ = fmt.Fprint(p, strings.Join(lines, "\n"))
}

// Menu lists the key hints of the current page.
type Menu struct {
	*tview.TextView
	theme *Theme
}

func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update lays hints out in columns of six.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	const perColumn = 6
	kc := Color(m.theme.MenuKeyColor)
	cols := (len(hints) + perColumn - 1) / perColumn
	for row := range perColumn {
		var b strings.Builder
		for col := range cols {
			i := col*perColumn + row
			if i >= len(hints) {
				break
			}
			h := hints[i]
			fmt.Fprintf(&b, "[%s::b]%-8s[-:-:-]%-14s", kc, "<"+h.Key+">", h.Description)
		}
		_, _ = fmt.Fprintln(m, b.String())
	}
}

// Logo is the right part of the header.
type Logo struct {
	*tview.TextView
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tc := Color(theme.BorderColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]▀█▀ █▀▄▀█ █▀ █▀▀[-:-:-]\n"+
			"[%s::b] █  █ ▀ █ ▄█ █▄█[-:-:-]\n"+
			"[%s]messages in a terminal[-]",
		tc, tc, Color(theme.FgColor))
	return &Logo{TextView: tv}
}
