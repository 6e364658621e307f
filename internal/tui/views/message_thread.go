package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/tui/model"
	"github.com/matheus3301/imsg/internal/tui/ui"
)

// MessageThread is the right column: a header line, the messages and the
// composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	header   *tview.TextView
	messages *tview.TextView
	composer *Composer
	title    string

	// follow pins the view to the newest message. It holds while the
	// user is at the bottom and resets when another conversation opens.
	follow bool
	shown  conversation.ID
}

func NewMessageThread(theme *ui.Theme, composer *Composer) *MessageThread {
	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBackgroundColor(theme.BgColor)

	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(messages, 0, 1, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		header:   header,
		messages: messages,
		composer: composer,
		follow:   true,
	}
	mt.SetConversation(conversation.Entry{})
	return mt
}

func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Thread"
}

func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Compose"},
		{Key: ",/.", Description: "Scroll"},
		{Key: "e", Description: "Press Return"},
	}
}

// SetConversation updates the header for e. A zero entry shows a hint.
func (mt *MessageThread) SetConversation(e conversation.Entry) {
	if e.ID != mt.shown {
		mt.shown = e.ID
		mt.follow = true
	}
	mt.header.Clear()
	if e.ID.IsZero() {
		mt.title = ""
		mt.messages.SetTitle(" Messages ")
		_, _ = fmt.Fprintf(mt.header, " [%s]Select a conversation or press n to start one[-]", ui.Color(mt.theme.TimeColor))
		return
	}
	mt.title = e.Label
	kind := "direct"
	if e.ID.IsGroup() {
		kind = "group"
	}
	mt.messages.SetTitle(" " + sanitize(e.Label, true) + " ")
	_, _ = fmt.Fprintf(mt.header, " [%s::b]%s[-:-:-] [%s]%s · %s[-]",
		ui.Color(mt.theme.TitleColor), sanitize(e.Label, true),
		ui.Color(mt.theme.TimeColor), tview.Escape(e.ID.Target()), kind)
}

// Update renders lines. The view stays on the newest message when it was
// already there, otherwise the scroll position is kept.
func (mt *MessageThread) Update(lines []conversation.Line) {
	row, col := mt.messages.GetScrollOffset()
	mt.messages.Clear()
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(FormatLine(l, mt.theme))
		b.WriteByte('\n')
	}
	_, _ = fmt.Fprint(mt.messages, b.String())
	if mt.follow {
		mt.messages.ScrollToEnd()
		return
	}
	mt.messages.ScrollTo(row, col)
}

// Scroll moves the message view by delta rows; negative scrolls up.
// Reaching the bottom resumes following new messages.
func (mt *MessageThread) Scroll(delta int) {
	row, col := mt.messages.GetScrollOffset()
	row += delta
	if row < 0 {
		row = 0
	}
	_, _, width, height := mt.messages.GetInnerRect()
	if width > 0 && height > 0 && row+height >= mt.messages.GetWrappedLineCount() {
		mt.follow = true
		mt.messages.ScrollToEnd()
		return
	}
	mt.follow = false
	mt.messages.ScrollTo(row, col)
}

func (mt *MessageThread) Composer() *Composer { return mt.composer }

// FormatLine renders one line with color tags: time, sender, body.
// Inline send errors render in the error color.
func FormatLine(l conversation.Line, theme *ui.Theme) string {
	body := sanitize(l.Body, false)
	if l.Sender == "" {
		color := theme.TimeColor
		if strings.HasPrefix(l.Body, model.SendErrorPrefix) {
			color = theme.FlashErrColor
		}
		return fmt.Sprintf("[%s]%s[-]", ui.Color(color), body)
	}

	senderColor := theme.SenderColor
	if l.Sender == "me" {
		senderColor = theme.MeColor
	}
	ts := ""
	if !l.Time.IsZero() {
		ts = fmt.Sprintf("[%s]%s[-] ", ui.Color(theme.TimeColor), l.Time.Local().Format("Jan 02 15:04"))
	}
	return fmt.Sprintf("%s[%s::b]%s[-:-:-]: %s", ts, ui.Color(senderColor), sanitize(l.Sender, true), body)
}
