package config

import (
	"path/filepath"
	"strings"
)

// Format identifies a config file syntax.
type Format string

const (
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// FormatForPath picks a syntax from the file extension. Unknown extensions return ""
// so the content decides.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// Parse reads configuration content as JSONC or YAML. JSONC is chosen when the first
// non-whitespace character is `{`.
func Parse(content string, base Config) (Config, []Warning, error) {
	return ParseAs("", content, base)
}

// ParseAs parses content in the given format, sniffing it when format is empty.
func ParseAs(format Format, content string, base Config) (Config, []Warning, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if strings.TrimSpace(content) == "" {
		return parseEmpty(base)
	}

	if format == "" {
		format = FormatYAML
		if strings.HasPrefix(strings.TrimSpace(content), "{") {
			format = FormatJSONC
		}
	}
	if format == FormatJSONC {
		return parseJSONC(content, base)
	}
	return parseYAML(content, base)
}

func parseEmpty(base Config) (Config, []Warning, error) {
	warnings, err := Validate(base)
	if err != nil {
		return Config{}, nil, err
	}
	return base, warnings, nil
}
