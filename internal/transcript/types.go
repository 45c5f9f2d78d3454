// Package transcript reconciles partial and final recognition frames into committed words.
package transcript

import "context"

// HintTypeProviderSpeakerIndex tags hints carrying a provider-reported speaker index.
const HintTypeProviderSpeakerIndex = "provider_speaker_index"

// Word is one recognized word on one channel. EndMs is always greater than StartMs.
type Word struct {
	Text    string `json:"text" yaml:"text"`
	StartMs int64  `json:"start_ms" yaml:"start_ms"`
	EndMs   int64  `json:"end_ms" yaml:"end_ms"`
	Channel int    `json:"channel" yaml:"channel"`
}

// HintData is the provider payload attached to a speaker hint.
type HintData struct {
	Type         string `json:"type" yaml:"type"`
	SpeakerIndex int    `json:"speaker_index" yaml:"speaker_index"`
	Channel      *int   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Provider     string `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// SpeakerHint points at a word by its position in the word list it travels with.
type SpeakerHint struct {
	WordIndex int      `json:"word_index" yaml:"word_index"`
	Data      HintData `json:"data" yaml:"data"`
}

// Frame is one recognition update for a single channel.
type Frame struct {
	Channel int
	Words   []Word
	Hints   []SpeakerHint
	Final   bool
}

// Commit is the output of a reconciliation step that must be persisted exactly once.
// Hint indices resolve into Words.
type Commit struct {
	Words []Word
	Hints []SpeakerHint
}

// Empty reports whether the commit carries no words.
func (c Commit) Empty() bool {
	return len(c.Words) == 0
}

// Sink receives committed words and hints.
type Sink interface {
	Commit(ctx context.Context, words []Word, hints []SpeakerHint) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(context.Context, []Word, []SpeakerHint) error

func (f SinkFunc) Commit(ctx context.Context, words []Word, hints []SpeakerHint) error {
	return f(ctx, words, hints)
}
