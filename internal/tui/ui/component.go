package ui

// MenuHint is one key shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
}

// Component is implemented by every page so the header and breadcrumbs
// can describe it.
type Component interface {
	Name() string
	Hints() []MenuHint
}
