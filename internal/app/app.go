// Package app wires the CLI commands to the daemon, the IPC client, and the store.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rbright/listend/internal/audio"
	"github.com/rbright/listend/internal/cli"
	"github.com/rbright/listend/internal/config"
	"github.com/rbright/listend/internal/doctor"
	"github.com/rbright/listend/internal/logging"
	"github.com/rbright/listend/internal/version"
)

const binaryName = "listend"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Probes overrides the doctor's live checks; zero means the real ones.
	Probes doctor.Probes
	// ListDevices overrides the PulseAudio device listing.
	ListDevices audio.Lister
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	opts := logging.Options{Level: logging.LevelFromEnv()}
	if parsed.Command == cli.CommandServe {
		opts.Mirror = r.Stderr
	}
	logRuntime, err := logging.New(opts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		// A missing file is normal for client commands; only the daemon and doctor mention it.
		if !cfgLoaded.Exists && parsed.Command != cli.CommandServe && parsed.Command != cli.CommandDoctor {
			continue
		}
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Debug("command start",
		"command", parsed.Command,
		"args", parsed.Args,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandServe:
		return r.commandServe(ctx, cfgLoaded.Config, logger)
	case cli.CommandDoctor:
		probes := r.Probes
		if probes.Audio == nil || probes.Backend == nil {
			probes = doctor.DefaultProbes()
		}
		report := doctor.Run(ctx, cfgLoaded, probes)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStart:
		return r.commandStart(ctx, parsed.SessionID())
	case cli.CommandStop, cli.CommandMute, cli.CommandUnmute:
		return r.commandSimple(ctx, string(parsed.Command))
	case cli.CommandMode:
		return r.commandMode(ctx, parsed.SessionID())
	case cli.CommandBatch:
		return r.commandBatch(ctx, parsed.Args[0], parsed.Args[1])
	case cli.CommandTranscript:
		return r.commandTranscript(ctx, cfgLoaded.Config, parsed.SessionID(), parsed.Format)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	list := r.ListDevices
	if list == nil {
		list = audio.ListDevices
	}
	devices, err := list(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprint(r.Stdout, audio.FormatDevices(devices))
	if len(devices) == 0 {
		return 1
	}
	return 0
}
