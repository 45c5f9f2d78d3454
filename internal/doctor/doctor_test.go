package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/listend/internal/audio"
	"github.com/rbright/listend/internal/backend"
	"github.com/rbright/listend/internal/config"
	"github.com/stretchr/testify/require"
)

func fakeProbes(audioErr, backendErr error) Probes {
	return Probes{
		Audio: func(context.Context, string, string) (audio.Selection, error) {
			if audioErr != nil {
				return audio.Selection{}, audioErr
			}
			return audio.Selection{Device: audio.Device{ID: "alsa_input.usb"}, Warning: "fell back to default"}, nil
		},
		Backend: func(context.Context, string, time.Duration) error { return backendErr },
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "data", "listend.db")
	cfg.Indicator.Enable = false
	cfg.Indicator.SoundEnable = false
	return cfg
}

func findCheck(t *testing.T, report Report, name string) Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q not in report:\n%s", name, report.String())
	return Check{}
}

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.HasPrefix(v, "/run") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "hooks.before_listening")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-hook")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-hook", "--arg"}, "hooks.before_listening")
	require.True(t, check.Pass)
	require.Equal(t, "hooks.before_listening", check.Name)
	require.Contains(t, check.Message, "hooks.before_listening command is available")
}

func TestCheckStore(t *testing.T) {
	dir := t.TempDir()
	check := checkStore(config.StoreConfig{Path: filepath.Join(dir, "nested", "listend.db")})
	require.True(t, check.Pass, check.Message)

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Empty(t, entries)

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	check = checkStore(config.StoreConfig{Path: filepath.Join(blocker, "listend.db")})
	require.False(t, check.Pass)
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "start.wav")
	require.NoError(t, os.WriteFile(wav, []byte("RIFF"), 0o600))

	require.True(t, checkFile(wav, "indicator sound").Pass)
	require.False(t, checkFile(dir, "indicator sound").Pass)
	require.False(t, checkFile(filepath.Join(dir, "missing.wav"), "indicator sound").Pass)
}

func TestCheckKeywords(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Keywords = []string{"listend"}
	check := checkKeywords(cfg)
	require.True(t, check.Pass)
	require.Equal(t, "1 keyword(s)", check.Message)

	cfg.Vocab.GlobalSets = []string{"missing"}
	check = checkKeywords(cfg)
	require.False(t, check.Pass)
}

func TestCheckBackendReady(t *testing.T) {
	cfg := config.Default()
	var gotEndpoint string
	var gotTimeout time.Duration
	check := checkBackendReady(context.Background(), cfg, func(_ context.Context, endpoint string, timeout time.Duration) error {
		gotEndpoint, gotTimeout = endpoint, timeout
		return nil
	})
	require.True(t, check.Pass)
	require.Equal(t, cfg.Backend.GRPC, gotEndpoint)
	require.Equal(t, time.Duration(cfg.Backend.DialTimeoutMS)*time.Millisecond, gotTimeout)

	check = checkBackendReady(context.Background(), cfg, func(context.Context, string, time.Duration) error {
		return errors.New("wait for backend grpc readiness: deadline exceeded")
	})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "readiness")

	cfg.Backend.GRPC = " "
	check = checkBackendReady(context.Background(), cfg, nil)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "backend.grpc is empty")
}

func TestCheckBackendReadyAgainstUnreachableEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.GRPC = "127.0.0.1:1"
	cfg.Backend.DialTimeoutMS = 100

	check := checkBackendReady(context.Background(), cfg, backend.Probe)
	require.False(t, check.Pass)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default(), audio.SelectDevice)
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestRunAllPassing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	cfg := testConfig(t)

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg, Exists: true}, fakeProbes(nil, nil))
	require.True(t, report.OK(), report.String())
	require.Contains(t, findCheck(t, report, "config").Message, `loaded "/tmp/config.jsonc"`)
	require.Equal(t, `selected "alsa_input.usb" (fell back to default)`, findCheck(t, report, "audio.device").Message)
	require.True(t, findCheck(t, report, "backend.ready").Pass)
}

func TestRunReportsFailures(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	cfg := testConfig(t)

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg}, fakeProbes(
		errors.New("no audio input devices found"),
		errors.New("backend not ready"),
	))
	require.False(t, report.OK())
	require.Contains(t, findCheck(t, report, "config").Message, "using defaults")
	require.False(t, findCheck(t, report, "XDG_RUNTIME_DIR").Pass)
	require.False(t, findCheck(t, report, "audio.device").Pass)
	require.Equal(t, "backend not ready", findCheck(t, report, "backend.ready").Message)
}

func TestRunChecksIndicatorAndHookTools(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"hyprctl", "fake-hook"} {
		require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := testConfig(t)
	cfg.Indicator.Enable = true
	cfg.Indicator.Backend = "hypr"
	cfg.Indicator.SoundEnable = true
	cfg.Indicator.SoundStartFile = filepath.Join(binDir, "missing-start.wav")
	cfg.Hooks.BeforeListening = config.CommandConfig{Raw: "fake-hook --flag", Argv: []string{"fake-hook", "--flag"}}

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg}, fakeProbes(nil, nil))
	require.True(t, findCheck(t, report, "hyprctl").Pass)
	require.True(t, findCheck(t, report, "hooks.before_listening").Pass)
	require.False(t, findCheck(t, report, cfg.Indicator.SoundStartFile).Pass)
	require.False(t, report.OK())

	for _, check := range report.Checks {
		require.NotEqual(t, "hooks.after_listening", check.Name)
		require.NotEqual(t, "busctl", check.Name)
	}
}

func TestDefaultProbesAreWired(t *testing.T) {
	probes := DefaultProbes()
	require.NotNil(t, probes.Audio)
	require.NotNil(t, probes.Backend)
}
