package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/listend/internal/audio"
	"github.com/rbright/listend/internal/backend"
	"github.com/rbright/listend/internal/config"
	"github.com/rbright/listend/internal/events"
	"github.com/rbright/listend/internal/hooks"
	"github.com/rbright/listend/internal/indicator"
	"github.com/rbright/listend/internal/ipc"
	"github.com/rbright/listend/internal/logging"
	"github.com/rbright/listend/internal/session"
	"github.com/rbright/listend/internal/store"
	"github.com/rbright/listend/internal/transcript"
)

const shutdownTimeout = 5 * time.Second

// daemon owns the long-lived collaborators behind `listend serve`.
type daemon struct {
	logger    *slog.Logger
	bus       *events.Bus
	client    *backend.Client
	store     *store.Store
	engine    *session.Engine
	eventDump io.Closer
}

// startDaemon opens the store, connects to the backend, and builds the engine.
func startDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{logger: logger, bus: events.NewBus()}

	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	d.store = st

	var dump io.Writer
	if cfg.Debug.EventDump {
		f, err := logging.OpenEventDump()
		if err != nil {
			d.close()
			return nil, fmt.Errorf("open event dump: %w", err)
		}
		d.eventDump = f
		dump = f
		logger.Info("dumping backend events", "path", f.Name())
	}

	client, err := backend.Dial(ctx, logger, backend.Config{
		Endpoint:    cfg.Backend.GRPC,
		Provider:    cfg.Backend.Provider,
		DialTimeout: time.Duration(cfg.Backend.DialTimeoutMS) * time.Millisecond,
		CallTimeout: time.Duration(cfg.Backend.CallTimeoutMS) * time.Millisecond,
		EventDump:   dump,
	}, d.bus)
	if err != nil {
		d.close()
		return nil, err
	}
	d.client = client

	keywords, warnings, err := config.BuildKeywords(cfg)
	if err != nil {
		d.close()
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn("vocab warning", "message", w.Message)
	}

	d.engine = session.NewEngine(
		logger,
		client,
		d.bus,
		hooks.NewRunner(cfg, logger),
		indicator.New(cfg.Indicator, logger),
	)
	d.engine.ConfigureCommands(session.Commands{
		Session: session.SessionParams{
			Languages:     cfg.Session.Languages,
			Model:         cfg.Session.Model,
			Keywords:      keywords,
			RecordEnabled: cfg.Session.RecordEnabled,
			InputDevice:   selectInputDevice(ctx, cfg, logger),
		},
		Batch: session.BatchParams{
			Languages: cfg.Session.Languages,
			Model:     cfg.Session.Model,
			Keywords:  keywords,
		},
		OpenSink: d.sinkOpener(cfg),
	})

	logger.Info("daemon ready",
		"backend", cfg.Backend.GRPC,
		"provider", cfg.Backend.Provider,
		"store", cfg.Store.Path,
		"keywords", len(keywords),
	)
	return d, nil
}

// selectInputDevice resolves the configured input once at startup. An unresolvable
// input leaves the choice to the backend.
func selectInputDevice(ctx context.Context, cfg config.Config, logger *slog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		logger.Warn("audio input not resolved; backend default applies", "error", err.Error())
		return ""
	}
	if selection.Warning != "" {
		logger.Warn("audio input fallback", "warning", selection.Warning)
	}
	logger.Info("audio input selected", "device", selection.Device.ID)
	return selection.Device.ID
}

// sinkOpener creates one transcript row per run and returns its persistence sink.
func (d *daemon) sinkOpener(cfg config.Config) session.SinkOpener {
	userID := cfg.Session.UserID
	provider := cfg.Backend.Provider
	return func(ctx context.Context, sessionID, source string) (transcript.Sink, error) {
		t, err := d.store.CreateTranscript(ctx, sessionID, userID, source)
		if err != nil {
			return nil, err
		}
		d.logger.Info("transcript created", "transcript_id", t.ID, "session_id", sessionID, "source", source)
		return d.store.Sink(t.ID, userID, provider), nil
	}
}

// shutdown stops a live session so its final words are flushed before the backend goes away.
func (d *daemon) shutdown() {
	if d.engine == nil || d.engine.Live().SessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.engine.Stop(ctx); err != nil {
		d.logger.Warn("stop live session on shutdown", "error", err.Error())
		return
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for d.engine.Live().SessionID != "" {
		select {
		case <-ctx.Done():
			d.logger.Warn("live session did not finish before shutdown")
			return
		case <-ticker.C:
		}
	}
}

func (d *daemon) close() {
	if d.client != nil {
		_ = d.client.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.eventDump != nil {
		_ = d.eventDump.Close()
	}
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{Retries: 8})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	d, err := startDaemon(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon startup failed", "error", err.Error())
		return 1
	}
	defer d.close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		srv := ipc.Server{Handler: d.engine, Logger: logger}
		serverErrCh <- srv.Serve(serverCtx, listener)
	}()
	logger.Info("listening", "socket", socketPath)

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
	case <-d.client.Done():
		exitCode = 1
		if err := d.client.Err(); err != nil {
			fmt.Fprintf(r.Stderr, "error: backend event stream: %v\n", err)
		} else {
			fmt.Fprintln(r.Stderr, "error: backend closed the event stream")
		}
	case err := <-serverErrCh:
		serverErrCh <- err
	}

	d.shutdown()
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return exitCode
}
