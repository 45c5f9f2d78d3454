package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/listend/internal/transcript"
)

// Transcript is one persisted run of a session, live or batch.
type Transcript struct {
	ID        string
	SessionID string
	UserID    string
	Source    string
	CreatedAt time.Time
}

// hintValue is the JSON stored in speaker_hints.value.
type hintValue struct {
	Provider     string `json:"provider,omitempty"`
	Channel      int    `json:"channel"`
	SpeakerIndex int    `json:"speaker_index"`
}

// CreateTranscript records a new transcript for sessionID.
func (s *Store) CreateTranscript(ctx context.Context, sessionID, userID, source string) (Transcript, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Transcript{}, errors.New("transcript requires a session id")
	}

	t := Transcript{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, session_id, user_id, source, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.SessionID, t.UserID, t.Source, t.CreatedAt.UnixNano())
	if err != nil {
		return Transcript{}, fmt.Errorf("insert transcript: %w", err)
	}
	return t, nil
}

// LatestTranscript returns the most recently created transcript of sessionID.
func (s *Store) LatestTranscript(ctx context.Context, sessionID string) (Transcript, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, source, created_at
		FROM transcripts
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, sessionID)

	var t Transcript
	var createdAt int64
	if err := row.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Source, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transcript{}, fmt.Errorf("transcript for session %q: %w", sessionID, ErrNotFound)
		}
		return Transcript{}, fmt.Errorf("scan transcript: %w", err)
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return t, nil
}

// Words returns the committed words of a transcript in commit order.
func (s *Store) Words(ctx context.Context, transcriptID string) ([]transcript.Word, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, start_ms, end_ms, channel
		FROM words
		WHERE transcript_id = ?
		ORDER BY seq ASC
	`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	var words []transcript.Word
	for rows.Next() {
		var w transcript.Word
		if err := rows.Scan(&w.Text, &w.StartMs, &w.EndMs, &w.Channel); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// Hints returns the speaker hints of a transcript. WordIndex refers to the slice
// returned by Words.
func (s *Store) Hints(ctx context.Context, transcriptID string) ([]transcript.SpeakerHint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.seq, h.type, h.value
		FROM speaker_hints h
		JOIN words w ON w.id = h.word_id
		WHERE h.transcript_id = ?
		ORDER BY w.seq ASC, h.rowid ASC
	`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query speaker hints: %w", err)
	}
	defer rows.Close()

	var hints []transcript.SpeakerHint
	for rows.Next() {
		var (
			seq     int
			hintTyp string
			raw     string
		)
		if err := rows.Scan(&seq, &hintTyp, &raw); err != nil {
			return nil, fmt.Errorf("scan speaker hint: %w", err)
		}
		var value hintValue
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode speaker hint value: %w", err)
		}
		channel := value.Channel
		hints = append(hints, transcript.SpeakerHint{
			WordIndex: seq,
			Data: transcript.HintData{
				Type:         hintTyp,
				SpeakerIndex: value.SpeakerIndex,
				Channel:      &channel,
				Provider:     value.Provider,
			},
		})
	}
	return hints, rows.Err()
}
