package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape shared by the JSONC and YAML formats. Nil fields
// keep the base value.
type fileConfig struct {
	Backend   *fileBackend   `json:"backend" yaml:"backend"`
	Store     *fileStore     `json:"store" yaml:"store"`
	Audio     *fileAudio     `json:"audio" yaml:"audio"`
	Session   *fileSession   `json:"session" yaml:"session"`
	Vocab     *fileVocab     `json:"vocab" yaml:"vocab"`
	Hooks     *fileHooks     `json:"hooks" yaml:"hooks"`
	Indicator *fileIndicator `json:"indicator" yaml:"indicator"`
	Debug     *fileDebug     `json:"debug" yaml:"debug"`
}

type fileBackend struct {
	GRPC          *string `json:"grpc" yaml:"grpc"`
	Provider      *string `json:"provider" yaml:"provider"`
	DialTimeoutMS *int    `json:"dial_timeout_ms" yaml:"dial_timeout_ms"`
	CallTimeoutMS *int    `json:"call_timeout_ms" yaml:"call_timeout_ms"`
}

type fileStore struct {
	Path    *string `json:"path" yaml:"path"`
	DataDir *string `json:"data_dir" yaml:"data_dir"`
}

type fileAudio struct {
	Input    *string `json:"input" yaml:"input"`
	Fallback *string `json:"fallback" yaml:"fallback"`
}

type fileSession struct {
	UserID        *string     `json:"user_id" yaml:"user_id"`
	Languages     *stringList `json:"languages" yaml:"languages"`
	Model         *string     `json:"model" yaml:"model"`
	Keywords      *stringList `json:"keywords" yaml:"keywords"`
	RecordEnabled *bool       `json:"record_enabled" yaml:"record_enabled"`
}

type fileVocab struct {
	Global      *stringList             `json:"global" yaml:"global"`
	MaxKeywords *int                    `json:"max_keywords" yaml:"max_keywords"`
	Sets        map[string]fileVocabSet `json:"sets" yaml:"sets"`
}

type fileVocabSet struct {
	Boost    *float64 `json:"boost" yaml:"boost"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

type fileHooks struct {
	BeforeListening *string `json:"before_listening" yaml:"before_listening"`
	AfterListening  *string `json:"after_listening" yaml:"after_listening"`
	TimeoutMS       *int    `json:"timeout_ms" yaml:"timeout_ms"`
	App             *string `json:"app" yaml:"app"`
	AppMeeting      *string `json:"app_meeting" yaml:"app_meeting"`
}

type fileIndicator struct {
	Enable            *bool   `json:"enable" yaml:"enable"`
	Backend           *string `json:"backend" yaml:"backend"`
	DesktopAppName    *string `json:"desktop_app_name" yaml:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable" yaml:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file" yaml:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file" yaml:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file" yaml:"sound_complete_file"`
	SoundErrorFile    *string `json:"sound_error_file" yaml:"sound_error_file"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms" yaml:"error_timeout_ms"`
}

type fileDebug struct {
	EventDump *bool `json:"event_dump" yaml:"event_dump"`
}

// stringList accepts either a list of strings or one comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitCommaList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	case yaml.ScalarNode:
		*l = splitCommaList(node.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected string list or comma-delimited string", node.Line)
	}
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func trimmedList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (payload fileConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if b := payload.Backend; b != nil {
		if b.GRPC != nil {
			cfg.Backend.GRPC = strings.TrimSpace(*b.GRPC)
		}
		if b.Provider != nil {
			cfg.Backend.Provider = strings.TrimSpace(*b.Provider)
		}
		if b.DialTimeoutMS != nil {
			cfg.Backend.DialTimeoutMS = *b.DialTimeoutMS
		}
		if b.CallTimeoutMS != nil {
			cfg.Backend.CallTimeoutMS = *b.CallTimeoutMS
		}
	}

	if s := payload.Store; s != nil {
		if s.Path != nil {
			cfg.Store.Path = strings.TrimSpace(*s.Path)
		}
		if s.DataDir != nil {
			cfg.Store.DataDir = strings.TrimSpace(*s.DataDir)
		}
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
	}

	if s := payload.Session; s != nil {
		if s.UserID != nil {
			cfg.Session.UserID = strings.TrimSpace(*s.UserID)
		}
		if s.Languages != nil {
			cfg.Session.Languages = trimmedList(*s.Languages)
		}
		if s.Model != nil {
			cfg.Session.Model = strings.TrimSpace(*s.Model)
		}
		if s.Keywords != nil {
			cfg.Session.Keywords = trimmedList(*s.Keywords)
		}
		if s.RecordEnabled != nil {
			cfg.Session.RecordEnabled = *s.RecordEnabled
		}
	}

	if v := payload.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = trimmedList(*v.Global)
		}
		if v.MaxKeywords != nil {
			cfg.Vocab.MaxKeywords = *v.MaxKeywords
		}
		if v.Sets != nil {
			sets := make(map[string]VocabSet, len(cfg.Vocab.Sets)+len(v.Sets))
			maps.Copy(sets, cfg.Vocab.Sets)
			for name, set := range v.Sets {
				trimmedName := strings.TrimSpace(name)
				if trimmedName == "" {
					return nil, fmt.Errorf("vocab.sets contains an empty set name")
				}
				entry := VocabSet{Name: trimmedName, Keywords: append([]string(nil), set.Keywords...)}
				if set.Boost != nil {
					entry.Boost = *set.Boost
				}
				sets[trimmedName] = entry
			}
			cfg.Vocab.Sets = sets
		}
	}

	if h := payload.Hooks; h != nil {
		if h.BeforeListening != nil {
			command, err := parseCommand("hooks.before_listening", *h.BeforeListening)
			if err != nil {
				return nil, err
			}
			cfg.Hooks.BeforeListening = command
		}
		if h.AfterListening != nil {
			command, err := parseCommand("hooks.after_listening", *h.AfterListening)
			if err != nil {
				return nil, err
			}
			cfg.Hooks.AfterListening = command
		}
		if h.TimeoutMS != nil {
			cfg.Hooks.TimeoutMS = *h.TimeoutMS
		}
		if h.App != nil {
			cfg.Hooks.App = strings.TrimSpace(*h.App)
		}
		if h.AppMeeting != nil {
			cfg.Hooks.AppMeeting = strings.TrimSpace(*h.AppMeeting)
		}
	}

	if i := payload.Indicator; i != nil {
		if i.Enable != nil {
			cfg.Indicator.Enable = *i.Enable
		}
		if i.Backend != nil {
			cfg.Indicator.Backend = strings.TrimSpace(*i.Backend)
		}
		if i.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*i.DesktopAppName)
		}
		if i.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *i.SoundEnable
		}
		if i.SoundStartFile != nil {
			cfg.Indicator.SoundStartFile = strings.TrimSpace(*i.SoundStartFile)
		}
		if i.SoundStopFile != nil {
			cfg.Indicator.SoundStopFile = strings.TrimSpace(*i.SoundStopFile)
		}
		if i.SoundCompleteFile != nil {
			cfg.Indicator.SoundCompleteFile = strings.TrimSpace(*i.SoundCompleteFile)
		}
		if i.SoundErrorFile != nil {
			cfg.Indicator.SoundErrorFile = strings.TrimSpace(*i.SoundErrorFile)
		}
		if i.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *i.ErrorTimeoutMS
		}
	}

	if payload.Debug != nil && payload.Debug.EventDump != nil {
		cfg.Debug.EventDump = *payload.Debug.EventDump
	}

	return warnings, nil
}

func parseCommand(key, raw string) (CommandConfig, error) {
	argv, err := parseArgv(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}
