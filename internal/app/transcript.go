package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rbright/listend/internal/cli"
	"github.com/rbright/listend/internal/config"
	"github.com/rbright/listend/internal/store"
	"github.com/rbright/listend/internal/transcript"
	"gopkg.in/yaml.v3"
)

// transcriptExport is the YAML document printed by `transcript --format yaml`.
type transcriptExport struct {
	ID        string                   `yaml:"id"`
	SessionID string                   `yaml:"session_id"`
	UserID    string                   `yaml:"user_id"`
	Source    string                   `yaml:"source"`
	CreatedAt time.Time                `yaml:"created_at"`
	Turns     []turnExport             `yaml:"turns"`
	Words     []transcript.Word        `yaml:"words"`
	Hints     []transcript.SpeakerHint `yaml:"hints,omitempty"`
}

type turnExport struct {
	Channel int    `yaml:"channel"`
	Speaker *int   `yaml:"speaker,omitempty"`
	StartMs int64  `yaml:"start_ms"`
	EndMs   int64  `yaml:"end_ms"`
	Text    string `yaml:"text"`
}

func (r Runner) commandTranscript(ctx context.Context, cfg config.Config, sessionID, format string) int {
	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	t, err := st.LatestTranscript(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(r.Stderr, "error: no transcript for session %q\n", sessionID)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	words, err := st.Words(ctx, t.ID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	hints, err := st.Hints(ctx, t.ID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if format == cli.FormatYAML {
		if err := writeTranscriptYAML(r.Stdout, t, words, hints); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprint(r.Stdout, transcript.Render(words, hints))
	return 0
}

func writeTranscriptYAML(w io.Writer, t store.Transcript, words []transcript.Word, hints []transcript.SpeakerHint) error {
	doc := transcriptExport{
		ID:        t.ID,
		SessionID: t.SessionID,
		UserID:    t.UserID,
		Source:    t.Source,
		CreatedAt: t.CreatedAt,
		Turns:     []turnExport{},
		Words:     words,
		Hints:     hints,
	}
	if doc.Words == nil {
		doc.Words = []transcript.Word{}
	}
	for _, turn := range transcript.Turns(words, hints) {
		out := turnExport{Channel: turn.Channel, StartMs: turn.StartMs, EndMs: turn.EndMs, Text: turn.Text}
		if turn.Speaker >= 0 {
			speaker := turn.Speaker
			out.Speaker = &speaker
		}
		doc.Turns = append(doc.Turns, out)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode transcript yaml: %w", err)
	}
	return enc.Close()
}
