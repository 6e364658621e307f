package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/tui/ui"
)

// labelWidth is the widest label the list shows before truncating.
const labelWidth = 28

// ConversationList is the left column.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	entries []conversation.Entry
}

func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)
	return &ConversationList{Table: table, theme: theme}
}

func (cl *ConversationList) Name() string { return "Conversations" }

func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
	}
}

// Update redraws the list, keeping the cursor on the same conversation
// when it is still listed. total is the unfiltered count.
func (cl *ConversationList) Update(entries []conversation.Entry, total int, filter string) {
	keep := cl.Selected()
	cl.entries = entries
	cl.Clear()

	cursor := 0
	for row, e := range entries {
		marker := " "
		if e.ID.IsGroup() {
			marker = "#"
		}
		cl.SetCell(row, 0, tview.NewTableCell(marker).SetTextColor(cl.theme.CounterColor))
		cl.SetCell(row, 1, tview.NewTableCell(sanitize(TruncateLabel(e.Label, labelWidth), true)).
			SetExpansion(1).
			SetTextColor(cl.theme.FgColor))
		if e.ID == keep {
			cursor = row
		}
	}
	if len(entries) > 0 {
		cl.Select(cursor, 0)
	}

	if filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) /%s ", len(entries), total, tview.Escape(filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", total))
	}
}

// Selected returns the conversation under the cursor, or the zero ID.
func (cl *ConversationList) Selected() conversation.ID {
	row, _ := cl.GetSelection()
	if row < 0 || row >= len(cl.entries) {
		return conversation.ID{}
	}
	return cl.entries[row].ID
}

// TruncateLabel cuts s to at most width terminal cells.
func TruncateLabel(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
