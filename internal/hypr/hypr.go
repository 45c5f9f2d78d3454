// Package hypr wraps the hyprctl calls used by the recording indicator.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon selects the glyph hyprctl shows next to a notification.
type Icon int

const (
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconHint    Icon = 2
	IconError   Icon = 3
	IconOK      Icon = 5
)

const defaultColor = "rgb(89b4fa)"

// Notification is one `hyprctl dispatch notify` payload.
type Notification struct {
	Icon      Icon
	TimeoutMS int
	Color     string
	Text      string
}

func (n Notification) args() ([]string, error) {
	text := strings.TrimSpace(n.Text)
	if text == "" {
		return nil, errors.New("notification text must not be empty")
	}
	if n.TimeoutMS <= 0 {
		return nil, fmt.Errorf("notification timeout must be > 0, got %d", n.TimeoutMS)
	}
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = defaultColor
	}
	return []string{
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(int(n.Icon)),
		strconv.Itoa(n.TimeoutMS),
		color,
		text,
	}, nil
}

// Notify shows n as a Hyprland notification.
func Notify(ctx context.Context, n Notification) error {
	args, err := n.args()
	if err != nil {
		return err
	}
	return runHyprctl(ctx, args...)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

func runHyprctl(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return nil
}
