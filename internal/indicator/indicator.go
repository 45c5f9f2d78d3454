// Package indicator shows session state through desktop notifications and audio cues.
package indicator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/listend/internal/config"
	"github.com/rbright/listend/internal/hypr"
	"github.com/rbright/listend/internal/session"
)

const (
	colorRecording  = "rgb(89b4fa)"
	colorFinalizing = "rgb(cba6f7)"
	colorError      = "rgb(f38ba8)"

	// stickyTimeoutMS keeps a notification up until Hide dismisses it.
	stickyTimeoutMS = 300000
)

// Notifier is the indicator used by the daemon. It routes notifications through
// Hyprland or the freedesktop notification service based on config backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	cues     cuePlayer

	mu                    sync.Mutex
	shown                 bool
	desktopNotificationID uint32
	soundMu               sync.Mutex
}

var _ session.Indicator = (*Notifier)(nil)

// New creates an indicator from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{
		cfg:      cfg,
		logger:   logger.With("component", "indicator"),
		messages: indicatorMessagesFromEnv(),
		cues:     emitCue,
	}
}

// ShowRecording signals that the session went live and emits the start cue.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.playCue(cueStart)
	n.setShown(true)
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconInfo, stickyTimeoutMS, colorRecording, n.messages.recording)
	})
}

// ShowFinalizing signals that the backend is flushing the last results.
func (n *Notifier) ShowFinalizing(ctx context.Context) {
	n.playCue(cueStop)
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconInfo, stickyTimeoutMS, colorFinalizing, n.messages.finalizing)
	})
}

// ShowError displays an error-state message and emits the error cue.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(cueError)
	n.setShown(false)
	if !n.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconError, timeout, colorError, text)
	})
}

// Hide dismisses the indicator. The completion cue plays only when a session was shown.
func (n *Notifier) Hide(ctx context.Context) {
	if n.setShown(false) {
		n.playCue(cueComplete)
	}
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// setShown records the new visibility and returns the previous one.
func (n *Notifier) setShown(shown bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	prev := n.shown
	n.shown = shown
	return prev
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

func (n *Notifier) notify(ctx context.Context, icon hypr.Icon, timeoutMS int, color string, text string) error {
	if n.desktop() {
		return n.notifyDesktop(ctx, timeoutMS, text)
	}
	return hypr.Notify(ctx, hypr.Notification{Icon: icon, TimeoutMS: timeoutMS, Color: color, Text: text})
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktop() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "listend-indicator"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := n.cues(ctx, kind, n.cfg); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}
