package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.imsg.
func BaseDir() string {
	return filepath.Join(home(), ".imsg")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// SocketPath returns the control socket path.
func SocketPath() string {
	return filepath.Join(BaseDir(), "imsg.sock")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the client log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "imsg.log")
}

// ChatDBPath returns the default Messages database path.
func ChatDBPath() string {
	return filepath.Join(home(), "Library", "Messages", "chat.db")
}

// AddressBookDir returns the directory searched for address-book stores.
func AddressBookDir() string {
	return filepath.Join(home(), "Library", "Application Support", "AddressBook")
}

// ExpandHome replaces a leading "~" with the user's home directory.
// Any other input is returned unchanged.
func ExpandHome(p string) string {
	if p == "~" {
		return home()
	}
	if len(p) > 1 && p[0] == '~' && p[1] == '/' {
		return filepath.Join(home(), p[2:])
	}
	return p
}

// EnsureDir creates the base directory tree with owner-only permissions.
func EnsureDir() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

func home() string {
	h, _ := os.UserHomeDir()
	return h
}
