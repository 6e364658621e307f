// Package bridge drives Messages.app and reads system preferences through
// osascript and defaults.
package bridge

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"howett.net/plist"

	"github.com/matheus3301/imsg/internal/conversation"
)

//go:embed scripts/*.applescript
var scripts embed.FS

// Script names.
const (
	ScriptSend       = "send_message"
	ScriptAssistive  = "assistive"
	ScriptSendReturn = "send_return"
)

// Runner executes an external command with stdin and returns its stdout.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// ScriptError wraps a failed script run.
type ScriptError struct {
	Script string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Script, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Bridge runs the embedded AppleScripts.
type Bridge struct {
	run    Runner
	logger *zap.Logger
}

func New(r Runner, logger *zap.Logger) *Bridge {
	if r == nil {
		r = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{run: r, logger: logger}
}

// RunScript runs an embedded script by name with argv and returns its
// trimmed output.
func (b *Bridge) RunScript(ctx context.Context, name string, args ...string) (string, error) {
	src, err := scripts.ReadFile("scripts/" + name + ".applescript")
	if err != nil {
		return "", fmt.Errorf("unknown script %q: %w", name, err)
	}
	out, err := b.run.Run(ctx, src, "osascript", append([]string{"-"}, args...)...)
	if err != nil {
		return "", &ScriptError{Script: name, Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// Send delivers body to a handle or a group chat through Messages.app.
func (b *Bridge) Send(ctx context.Context, to conversation.ID, body string) error {
	if to.IsZero() {
		return errors.New("no recipient")
	}
	kind := "buddy"
	if to.IsGroup() {
		kind = "chat"
	}
	_, err := b.RunScript(ctx, ScriptSend, kind, to.Target(), body)
	if err == nil {
		b.logger.Info("message handed to Messages", zap.String("to", to.Key()), zap.Int("len", len(body)))
	}
	return err
}

// CheckAccessibility reports whether this terminal may script UI elements.
func (b *Bridge) CheckAccessibility(ctx context.Context) (bool, error) {
	out, err := b.RunScript(ctx, ScriptAssistive)
	return out == "true", err
}

// OpenAccessibility opens the Accessibility privacy pane when access is
// missing, and reports whether access is already granted.
func (b *Bridge) OpenAccessibility(ctx context.Context) (bool, error) {
	out, err := b.RunScript(ctx, ScriptAssistive, "open")
	return out == "true", err
}

// SendReturn focuses Messages.app and presses Return, which sends whatever
// is typed in its compose field.
func (b *Bridge) SendReturn(ctx context.Context) error {
	_, err := b.RunScript(ctx, ScriptSendReturn)
	return err
}

// KeyboardAccess reports whether full keyboard access is on, from
// AppleKeyboardUIMode in the global domain.
func (b *Bridge) KeyboardAccess(ctx context.Context) (bool, error) {
	out, err := b.run.Run(ctx, nil, "defaults", "export", "NSGlobalDomain", "-")
	if err != nil {
		return false, fmt.Errorf("read global defaults: %w", err)
	}
	return keyboardAccess(out)
}

func keyboardAccess(data []byte) (bool, error) {
	var prefs map[string]any
	if _, err := plist.Unmarshal(data, &prefs); err != nil {
		return false, fmt.Errorf("decode global defaults: %w", err)
	}
	switch v := prefs["AppleKeyboardUIMode"].(type) {
	case uint64:
		return v > 1, nil
	case int64:
		return v > 1, nil
	case float64:
		return v > 1, nil
	default:
		return false, nil
	}
}
