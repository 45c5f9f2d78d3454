package transcript

import (
	"fmt"
	"slices"
	"strings"
)

// Turn is a run of consecutive words on one channel attributed to the same speaker.
// Speaker is -1 when no hint covers the words.
type Turn struct {
	Channel int
	Speaker int
	StartMs int64
	EndMs   int64
	Text    string
}

// Turns groups committed words into speaker turns. Words are ordered by channel, then
// by end time; hint indices resolve into words.
func Turns(words []Word, hints []SpeakerHint) []Turn {
	speakers := make([]int, len(words))
	for i := range speakers {
		speakers[i] = -1
	}
	for _, h := range hints {
		if h.WordIndex < 0 || h.WordIndex >= len(words) {
			continue
		}
		if h.Data.Type != "" && h.Data.Type != HintTypeProviderSpeakerIndex {
			continue
		}
		speakers[h.WordIndex] = h.Data.SpeakerIndex
	}

	order := make([]int, len(words))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if words[a].Channel != words[b].Channel {
			return words[a].Channel - words[b].Channel
		}
		switch {
		case words[a].EndMs < words[b].EndMs:
			return -1
		case words[a].EndMs > words[b].EndMs:
			return 1
		}
		return 0
	})

	var (
		turns []Turn
		text  strings.Builder
	)
	for _, i := range order {
		w := words[i]
		if n := len(turns); n > 0 && turns[n-1].Channel == w.Channel && turns[n-1].Speaker == speakers[i] {
			turns[n-1].EndMs = w.EndMs
			text.WriteString(w.Text)
			continue
		}
		if n := len(turns); n > 0 {
			turns[n-1].Text = normalizeText(text.String())
		}
		text.Reset()
		text.WriteString(w.Text)
		turns = append(turns, Turn{
			Channel: w.Channel,
			Speaker: speakers[i],
			StartMs: w.StartMs,
			EndMs:   w.EndMs,
		})
	}
	if n := len(turns); n > 0 {
		turns[n-1].Text = normalizeText(text.String())
	}
	return turns
}

// Render formats committed words as one line per speaker turn.
func Render(words []Word, hints []SpeakerHint) string {
	turns := Turns(words, hints)
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		speaker := "?"
		if turn.Speaker >= 0 {
			speaker = fmt.Sprintf("%d", turn.Speaker)
		}
		lines = append(lines, fmt.Sprintf("[%s ch%d s%s] %s",
			formatTimestamp(turn.StartMs), turn.Channel, speaker, turn.Text))
	}
	return strings.Join(lines, "\n") + "\n"
}

func formatTimestamp(ms int64) string {
	seconds := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// normalizeText collapses whitespace runs.
func normalizeText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
