// Package doctor runs runtime readiness diagnostics for config, tools, audio, storage,
// and the recognition backend.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/listend/internal/audio"
	"github.com/rbright/listend/internal/backend"
	"github.com/rbright/listend/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Probes are the live checks Run performs. Tests replace them.
type Probes struct {
	Audio   func(ctx context.Context, input, fallback string) (audio.Selection, error)
	Backend func(ctx context.Context, endpoint string, timeout time.Duration) error
}

// DefaultProbes talks to PulseAudio and the configured backend.
func DefaultProbes() Probes {
	return Probes{Audio: audio.SelectDevice, Backend: backend.Probe}
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, probes Probes) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the daemon socket", "XDG_RUNTIME_DIR is empty"))

	if cfg.Indicator.Enable {
		switch cfg.Indicator.Backend {
		case "desktop":
			checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
		default:
			checks = append(checks, checkBinary("hyprctl", "hypr notifications use hyprctl"))
		}
	}
	if cfg.Indicator.SoundEnable {
		for _, file := range []string{
			cfg.Indicator.SoundStartFile,
			cfg.Indicator.SoundStopFile,
			cfg.Indicator.SoundCompleteFile,
			cfg.Indicator.SoundErrorFile,
		} {
			if strings.TrimSpace(file) != "" {
				checks = append(checks, checkFile(file, "indicator sound"))
			}
		}
	}

	if cfg.Hooks.BeforeListening.Raw != "" {
		checks = append(checks, checkCommand(cfg.Hooks.BeforeListening.Argv, "hooks.before_listening"))
	}
	if cfg.Hooks.AfterListening.Raw != "" {
		checks = append(checks, checkCommand(cfg.Hooks.AfterListening.Argv, "hooks.after_listening"))
	}

	checks = append(checks, checkKeywords(cfg))
	checks = append(checks, checkStore(cfg.Store))
	checks = append(checks, checkAudioSelection(ctx, cfg, probes.Audio))
	checks = append(checks, checkBackendReady(ctx, cfg, probes.Backend))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
	check.Name = name
	return check
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkFile(path string, what string) Check {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return Check{Name: path, Pass: false, Message: fmt.Sprintf("%s unreadable: %v", what, err)}
	case info.IsDir():
		return Check{Name: path, Pass: false, Message: fmt.Sprintf("%s is a directory", what)}
	default:
		return Check{Name: path, Pass: true, Message: what + " present"}
	}
}

func checkKeywords(cfg config.Config) Check {
	keywords, warnings, err := config.BuildKeywords(cfg)
	if err != nil {
		return Check{Name: "vocab", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("%d keyword(s)", len(keywords))
	if len(warnings) > 0 {
		message = fmt.Sprintf("%s, %d warning(s)", message, len(warnings))
	}
	return Check{Name: "vocab", Pass: true, Message: message}
}

// checkStore confirms the transcript database directory is writable.
func checkStore(cfg config.StoreConfig) Check {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "store", Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".listend-doctor-*")
	if err != nil {
		return Check{Name: "store", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Check{Name: "store", Pass: true, Message: fmt.Sprintf("writable at %s", cfg.Path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	selection, err := selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkBackendReady dials the backend and waits for the gRPC channel to become ready.
func checkBackendReady(
	ctx context.Context,
	cfg config.Config,
	probe func(context.Context, string, time.Duration) error,
) Check {
	endpoint := strings.TrimSpace(cfg.Backend.GRPC)
	if endpoint == "" {
		return Check{Name: "backend.ready", Pass: false, Message: "backend.grpc is empty"}
	}
	timeout := time.Duration(cfg.Backend.DialTimeoutMS) * time.Millisecond
	if err := probe(ctx, endpoint, timeout); err != nil {
		return Check{Name: "backend.ready", Pass: false, Message: err.Error()}
	}
	return Check{Name: "backend.ready", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}
