package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rbright/listend/internal/transcript"
)

// Sink returns a transcript.Sink that appends each commit to transcriptID in one
// transaction. Hints whose word index falls outside the commit are dropped.
func (s *Store) Sink(transcriptID, userID, provider string) transcript.Sink {
	return transcript.SinkFunc(func(ctx context.Context, words []transcript.Word, hints []transcript.SpeakerHint) error {
		return s.appendCommit(ctx, transcriptID, userID, provider, words, hints)
	})
}

func (s *Store) appendCommit(ctx context.Context, transcriptID, userID, provider string, words []transcript.Word, hints []transcript.SpeakerHint) error {
	if len(words) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM words WHERE transcript_id = ?`, transcriptID,
	).Scan(&next); err != nil {
		return fmt.Errorf("read word sequence: %w", err)
	}

	wordIDs, err := insertWords(ctx, tx, transcriptID, userID, next, words)
	if err != nil {
		return err
	}
	if err := insertHints(ctx, tx, transcriptID, userID, provider, words, wordIDs, hints); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit words: %w", err)
	}
	return nil
}

func insertWords(ctx context.Context, tx *sql.Tx, transcriptID, userID string, seq int, words []transcript.Word) ([]string, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO words (id, transcript_id, user_id, seq, text, start_ms, end_ms, channel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare word insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(words))
	for i, w := range words {
		ids[i] = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, ids[i], transcriptID, userID, seq+i, w.Text, w.StartMs, w.EndMs, w.Channel); err != nil {
			return nil, fmt.Errorf("insert word %d: %w", i, err)
		}
	}
	return ids, nil
}

func insertHints(ctx context.Context, tx *sql.Tx, transcriptID, userID, provider string, words []transcript.Word, wordIDs []string, hints []transcript.SpeakerHint) error {
	if len(hints) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO speaker_hints (id, transcript_id, user_id, word_id, type, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare speaker hint insert: %w", err)
	}
	defer stmt.Close()

	for _, hint := range hints {
		if hint.WordIndex < 0 || hint.WordIndex >= len(wordIDs) {
			continue
		}
		value := hintValue{
			Provider:     hint.Data.Provider,
			Channel:      words[hint.WordIndex].Channel,
			SpeakerIndex: hint.Data.SpeakerIndex,
		}
		if value.Provider == "" {
			value.Provider = provider
		}
		if hint.Data.Channel != nil {
			value.Channel = *hint.Data.Channel
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode speaker hint: %w", err)
		}
		hintType := hint.Data.Type
		if hintType == "" {
			hintType = transcript.HintTypeProviderSpeakerIndex
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), transcriptID, userID, wordIDs[hint.WordIndex], hintType, string(raw)); err != nil {
			return fmt.Errorf("insert speaker hint: %w", err)
		}
	}
	return nil
}
