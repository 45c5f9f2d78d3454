package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "hyprctl dispatch submap reset", want: []string{"hyprctl", "dispatch", "submap", "reset"}},
		{name: "quoted spaces", input: `mycmd --name "hello world"`, want: []string{"mycmd", "--name", "hello world"}},
		{name: "single quote", input: `mycmd --name 'hello world'`, want: []string{"mycmd", "--name", "hello world"}},
		{name: "escaped space", input: `mycmd hello\ world`, want: []string{"mycmd", "hello world"}},
		{name: "leading comment", input: `# hyprctl dispatch submap reset`, want: nil},
		{name: "empty quoted word", input: `notify-send "" body`, want: []string{"notify-send", "", "body"}},
		{name: "literal backslash in single quotes", input: `printf 'a\nb'`, want: []string{"printf", `a\nb`}},
		{name: "escaped quote in double quotes", input: `echo "say \"hi\""`, want: []string{"echo", `say "hi"`}},
		{name: "adjacent quoted parts", input: `--tag=meeting' notes'`, want: []string{"--tag=meeting notes"}},
		{name: "unterminated quote", input: `mycmd "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `mycmd hello\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseCommandNamesKeyOnError(t *testing.T) {
	_, err := parseCommand("hooks.before_listening", `mycmd "unterminated`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid hooks.before_listening")

	command, err := parseCommand("hooks.after_listening", `notify-send "done listening"`)
	require.NoError(t, err)
	require.Equal(t, []string{"notify-send", "done listening"}, command.Argv)
	require.Equal(t, `notify-send "done listening"`, command.Raw)
}
