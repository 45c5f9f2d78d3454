package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	calls [][]Word
	hints [][]SpeakerHint
	err   error
}

func (s *recordingSink) Commit(_ context.Context, words []Word, hints []SpeakerHint) error {
	s.calls = append(s.calls, words)
	s.hints = append(s.hints, hints)
	return s.err
}

func finalResponse(channel int, words ...StreamWord) StreamResponse {
	return StreamResponse{
		Type:         ResponseTypeResults,
		IsFinal:      true,
		ChannelIndex: []int{channel},
		Channel:      StreamChannel{Alternatives: []StreamAlternative{{Words: words}}},
	}
}

func TestReconcilerCommitsFinalOnce(t *testing.T) {
	sink := &recordingSink{}
	r := NewReconciler(nil, sink)

	resp := finalResponse(0,
		StreamWord{Word: "hello", PunctuatedWord: "Hello", Start: 0, End: 0.5, Speaker: intPtr(0)},
		StreamWord{Word: "world", PunctuatedWord: "world", Start: 0.5, End: 1.5},
	)
	r.HandleResponse(context.Background(), resp)
	r.HandleResponse(context.Background(), resp)

	require.Len(t, sink.calls, 1)
	require.Len(t, sink.calls[0], 2)
	require.Equal(t, []SpeakerHint{speaker(0, 0)}, sink.hints[0])
	require.Equal(t, int64(1500), r.State().Channel(0).CommittedEndMs)
}

func TestReconcilerIgnoresNonResultResponses(t *testing.T) {
	sink := &recordingSink{}
	r := NewReconciler(nil, sink)

	commit := r.HandleResponse(context.Background(), StreamResponse{Type: "Metadata"})
	require.True(t, commit.Empty())

	commit = r.HandleResponse(context.Background(), StreamResponse{
		Type:    ResponseTypeResults,
		IsFinal: true,
		Channel: StreamChannel{Alternatives: []StreamAlternative{{
			Words: []StreamWord{{Word: "lost", Start: 0, End: 1}},
		}}},
	})
	require.True(t, commit.Empty())
	require.Empty(t, sink.calls)
	require.True(t, r.State().IsZero())
}

func TestReconcilerFlushCommitsPartials(t *testing.T) {
	sink := &recordingSink{}
	r := NewReconciler(nil, sink)

	r.HandleFrame(context.Background(), Frame{Words: []Word{word("pending", 0, 700)}})
	require.Empty(t, sink.calls)

	commit := r.Flush(context.Background())
	require.Len(t, commit.Words, 1)
	require.Len(t, sink.calls, 1)
	require.True(t, r.State().IsZero())

	r.Flush(context.Background())
	require.Len(t, sink.calls, 1)
}

func TestReconcilerSinkErrorDoesNotRetry(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	r := NewReconciler(nil, sink)

	frame := Frame{Final: true, Words: []Word{word("a", 0, 100)}}
	r.HandleFrame(context.Background(), frame)
	r.HandleFrame(context.Background(), frame)

	require.Len(t, sink.calls, 1)
	require.Equal(t, int64(100), r.State().Channel(0).CommittedEndMs)
}

func TestReconcilerSetSinkRedirectsCommits(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	r := NewReconciler(nil, first)

	r.HandleFrame(context.Background(), Frame{Final: true, Words: []Word{word("a", 0, 100)}})
	r.SetSink(second)
	r.HandleFrame(context.Background(), Frame{Final: true, Words: []Word{word("b", 100, 200)}})

	require.Len(t, first.calls, 1)
	require.Len(t, second.calls, 1)
	require.Equal(t, " b", second.calls[0][0].Text)
}

func TestReconcilerHandleBatchUsesChannelPosition(t *testing.T) {
	sink := &recordingSink{}
	r := NewReconciler(nil, sink)

	commits := r.HandleBatch(context.Background(), BatchResponse{Results: BatchResults{
		Channels: []StreamChannel{
			{Alternatives: []StreamAlternative{{Words: []StreamWord{{Word: "mic", Start: 0, End: 1, Speaker: intPtr(0)}}}}},
			{Alternatives: nil},
			{Alternatives: []StreamAlternative{{Words: []StreamWord{{Word: "system", Start: 0.2, End: 1.4}}}}},
		},
	}})

	require.Len(t, commits, 2)
	require.Equal(t, 0, commits[0].Words[0].Channel)
	require.Equal(t, 2, commits[1].Words[0].Channel)
	require.Equal(t, int64(1400), r.State().Channel(2).CommittedEndMs)
}

func TestFrameFromResponseDropsZeroLengthWords(t *testing.T) {
	frame, ok := FrameFromResponse(finalResponse(3,
		StreamWord{Word: "blip", Start: 1, End: 1, Speaker: intPtr(4)},
		StreamWord{Word: "ok", Start: 1, End: 1.25, Speaker: intPtr(5)},
	))
	require.True(t, ok)
	require.Equal(t, 3, frame.Channel)
	require.Equal(t, []Word{{Text: " ok", StartMs: 1000, EndMs: 1250, Channel: 3}}, frame.Words)
	require.Equal(t, []SpeakerHint{speaker(0, 5)}, frame.Hints)
}

func TestRenderGroupsSpeakerTurns(t *testing.T) {
	words := []Word{
		word("Hi", 0, 400),
		word("there.", 400, 900),
		word("Hello", 1000, 1500),
		{Text: " Background", StartMs: 0, EndMs: 800, Channel: 1},
	}
	hints := []SpeakerHint{speaker(0, 0), speaker(1, 0), speaker(2, 1), speaker(9, 7)}

	out := Render(words, hints)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{
		"[00:00:00 ch0 s0] Hi there.",
		"[00:00:01 ch0 s1] Hello",
		"[00:00:00 ch1 s?] Background",
	}, lines)
}

func TestRenderEmpty(t *testing.T) {
	require.Equal(t, "", Render(nil, nil))
}
