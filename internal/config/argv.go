package config

import (
	"fmt"
	"strings"
	"unicode"
)

// parseArgv splits a hook command line into argv words using shell-style quoting.
// Backslashes are literal inside single quotes. A line starting with # disables the
// hook.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || input[0] == '#' {
		return nil, nil
	}

	var s argvSplitter
	for _, r := range input {
		s.feed(r)
	}
	switch {
	case s.escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case s.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	s.endWord()
	return s.words, nil
}

type argvSplitter struct {
	words   []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func (s *argvSplitter) feed(r rune) {
	if s.escaped {
		s.escaped = false
		s.add(r)
		return
	}
	switch s.quote {
	case '\'':
		if r == '\'' {
			s.quote = 0
			return
		}
		s.add(r)
		return
	case '"':
		switch r {
		case '"':
			s.quote = 0
		case '\\':
			s.escaped = true
		default:
			s.add(r)
		}
		return
	}

	switch {
	case r == '\\':
		s.escaped = true
	case r == '\'' || r == '"':
		s.quote = r
		s.inWord = true
	case unicode.IsSpace(r):
		s.endWord()
	default:
		s.add(r)
	}
}

func (s *argvSplitter) add(r rune) {
	s.word.WriteRune(r)
	s.inWord = true
}

func (s *argvSplitter) endWord() {
	if !s.inWord {
		return
	}
	s.words = append(s.words, s.word.String())
	s.word.Reset()
	s.inWord = false
}
