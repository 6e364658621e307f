package tui

import "strings"

// Command is a parsed ":" prompt line.
type Command struct {
	Name string
	Args string
}

// commandAliases maps short forms to command names.
var commandAliases = map[string]string{
	"n": "new",
	"s": "services",
	"r": "refresh",
	"d": "details",
	"h": "help",
	"?": "help",
	"q": "quit",
}

// ParseCommand parses a command line without its leading ':'. Names are
// lowercased and aliases expanded.
func ParseCommand(input string) Command {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	if full, ok := commandAliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}
