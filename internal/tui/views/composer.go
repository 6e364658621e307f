package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/imsg/internal/tui/ui"
)

// Composer is the message input under the thread.
type Composer struct {
	*tview.InputField
	onSend func(text string) bool
}

func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitle(" Message (Tab) ")
	input.SetTitleColor(theme.TitleColor)

	c := &Composer{InputField: input}
	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		if text := c.GetText(); text != "" && c.onSend(text) {
			c.SetText("")
		}
	})
	return c
}

// SetOnSend sets fn to receive the text on Enter. The text is cleared
// only when fn accepts it.
func (c *Composer) SetOnSend(fn func(text string) bool) {
	c.onSend = fn
}
