package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	clean, err := cleanJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(clean))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, locateJSONError(clean, err)
	}
	if err := expectEOF(decoder); err != nil {
		return Config{}, nil, locateJSONError(clean, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	more, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, more...), nil
}

// cleanJSONC blanks comments and trailing commas with spaces. Every byte that
// survives keeps its original offset, so decoder errors point at the user's file.
func cleanJSONC(content string) (string, error) {
	buf := []byte(content)
	comma := -1

	for i := 0; i < len(buf); i++ {
		c := buf[i]
		switch {
		case c == '"':
			i = stringEnd(buf, i)
			comma = -1
		case c == '/' && i+1 < len(buf) && buf[i+1] == '/':
			end := i + 2
			for end < len(buf) && buf[end] != '\n' && buf[end] != '\r' {
				end++
			}
			blankRange(buf, i, end)
			i = end - 1
		case c == '/' && i+1 < len(buf) && buf[i+1] == '*':
			rel := bytes.Index(buf[i+2:], []byte("*/"))
			if rel < 0 {
				line, col := lineCol(content, int64(i+1))
				return "", fmt.Errorf("line %d column %d: unterminated block comment in JSONC", line, col)
			}
			end := i + 2 + rel + 2
			blankRange(buf, i, end)
			i = end - 1
		case c == ',':
			comma = i
		case c == '}' || c == ']':
			if comma >= 0 {
				buf[comma] = ' '
			}
			comma = -1
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			comma = -1
		}
	}
	return string(buf), nil
}

// stringEnd returns the index of the quote closing the string opened at start,
// or the last index when the string never closes.
func stringEnd(buf []byte, start int) int {
	for i := start + 1; i < len(buf); i++ {
		switch buf[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(buf) - 1
}

func blankRange(buf []byte, from, to int) {
	for i := from; i < to; i++ {
		switch buf[i] {
		case '\n', '\r', '\t':
		default:
			buf[i] = ' '
		}
	}
}

func expectEOF(decoder *json.Decoder) error {
	tok, err := decoder.Token()
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return fmt.Errorf("multiple JSON values are not allowed (found %v after the config object)", tok)
	}
}

func locateJSONError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol maps a 1-based byte offset to a 1-based line and column.
func lineCol(content string, offset int64) (int, int) {
	n := len(content)
	if offset < int64(n) {
		n = int(max(offset, 1))
	}
	if n > 0 {
		n--
	}
	prefix := content[:n]
	line := 1 + strings.Count(prefix, "\n")
	col := n - strings.LastIndexByte(prefix, '\n')
	return line, col
}
