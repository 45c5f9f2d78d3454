// Package cli parses the listend command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe      Command = "serve"
	CommandStart      Command = "start"
	CommandStop       Command = "stop"
	CommandMute       Command = "mute"
	CommandUnmute     Command = "unmute"
	CommandBatch      Command = "batch"
	CommandMode       Command = "mode"
	CommandStatus     Command = "status"
	CommandTranscript Command = "transcript"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// Transcript output formats.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// positional lists the argument names each command requires, in order.
var positional = map[Command][]string{
	CommandServe:      nil,
	CommandStart:      {"SESSION_ID"},
	CommandStop:       nil,
	CommandMute:       nil,
	CommandUnmute:     nil,
	CommandBatch:      {"SESSION_ID", "FILE"},
	CommandMode:       {"SESSION_ID"},
	CommandStatus:     nil,
	CommandTranscript: {"SESSION_ID"},
	CommandDevices:    nil,
	CommandDoctor:     nil,
	CommandVersion:    nil,
	CommandHelp:       nil,
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	Format     string
	ShowHelp   bool
}

// SessionID returns the first positional argument, if any.
func (p Parsed) SessionID() string {
	if len(p.Args) == 0 {
		return ""
	}
	return p.Args[0]
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true, Format: FormatText}
	haveCommand := false
	formatSet := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			return parsed, nil
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config", "--format":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			if arg == "--config" {
				parsed.ConfigPath = args[i]
				continue
			}
			format := strings.ToLower(strings.TrimSpace(args[i]))
			if format != FormatText && format != FormatYAML {
				return Parsed{}, fmt.Errorf("unsupported --format %q (want text or yaml)", args[i])
			}
			parsed.Format = format
			formatSet = true
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			if haveCommand {
				parsed.Args = append(parsed.Args, arg)
				continue
			}

			cmd := Command(arg)
			if _, ok := positional[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			haveCommand = true
		}
	}

	if formatSet && parsed.Command != CommandTranscript {
		return Parsed{}, errors.New("--format only applies to the transcript command")
	}
	if err := checkArgs(parsed); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

func checkArgs(parsed Parsed) error {
	want := positional[parsed.Command]
	if len(parsed.Args) > len(want) {
		return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	if len(parsed.Args) < len(want) {
		return fmt.Errorf("%s requires %s", parsed.Command, strings.Join(want, " "))
	}
	for i, name := range want {
		if strings.TrimSpace(parsed.Args[i]) == "" {
			return fmt.Errorf("%s: %s is empty", parsed.Command, name)
		}
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  serve                    Run the daemon in the foreground
  start SESSION_ID         Start a live transcription session
  stop                     Stop the live session
  mute                     Mute the microphone
  unmute                   Unmute the microphone
  batch SESSION_ID FILE    Transcribe an audio file and wait for it to finish
  mode SESSION_ID          Print the session mode (inactive, active, finalizing, running_batch)
  status                   Print the live session state
  transcript SESSION_ID    Print the latest stored transcript for a session
  devices                  List available input devices
  doctor                   Run configuration and environment checks
  version                  Print version information
  help                     Show this help

Flags:
  --config PATH     Config file path (default: $XDG_CONFIG_HOME/listend/config.jsonc)
  --format FORMAT   transcript output: text or yaml (default: text)
  -h, --help        Show help
  --version         Show version
`, binaryName)
}
