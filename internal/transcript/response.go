package transcript

import (
	"math"
	"strings"
)

// ResponseTypeResults marks a stream response that carries recognition results.
const ResponseTypeResults = "Results"

// StreamWord is one word as reported by the recognition provider. Times are seconds.
type StreamWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word,omitempty"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence,omitempty"`
	Speaker        *int    `json:"speaker,omitempty"`
	Language       string  `json:"language,omitempty"`
}

// StreamAlternative is one recognition hypothesis.
type StreamAlternative struct {
	Transcript string       `json:"transcript"`
	Confidence float64      `json:"confidence,omitempty"`
	Words      []StreamWord `json:"words"`
}

// StreamChannel holds the alternatives for one audio channel.
type StreamChannel struct {
	Alternatives []StreamAlternative `json:"alternatives"`
}

// StreamResponse is one provider message on the live stream.
type StreamResponse struct {
	Type         string        `json:"type"`
	Start        float64       `json:"start,omitempty"`
	Duration     float64       `json:"duration,omitempty"`
	IsFinal      bool          `json:"is_final"`
	SpeechFinal  bool          `json:"speech_final,omitempty"`
	FromFinalize bool          `json:"from_finalize,omitempty"`
	ChannelIndex []int         `json:"channel_index"`
	Channel      StreamChannel `json:"channel"`
}

// BatchResults holds one entry per audio channel of a batch job.
type BatchResults struct {
	Channels []StreamChannel `json:"channels"`
}

// BatchResponse is the provider's result for a whole file.
type BatchResponse struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Results  BatchResults   `json:"results"`
}

// FrameFromResponse converts a live stream response into a frame. It reports false for
// non-result messages and for responses without a channel index or alternative.
func FrameFromResponse(resp StreamResponse) (Frame, bool) {
	if resp.Type != ResponseTypeResults {
		return Frame{}, false
	}
	if len(resp.ChannelIndex) == 0 {
		return Frame{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return Frame{}, false
	}

	channel := resp.ChannelIndex[0]
	words, hints := convertWords(resp.Channel.Alternatives[0].Words, channel)
	return Frame{
		Channel: channel,
		Words:   words,
		Hints:   hints,
		Final:   resp.IsFinal,
	}, true
}

// FramesFromBatch converts a batch response into one final frame per channel, in channel
// order. Channels without an alternative are skipped.
func FramesFromBatch(resp BatchResponse) []Frame {
	frames := make([]Frame, 0, len(resp.Results.Channels))
	for channel, result := range resp.Results.Channels {
		if len(result.Alternatives) == 0 {
			continue
		}
		words, hints := convertWords(result.Alternatives[0].Words, channel)
		frames = append(frames, Frame{
			Channel: channel,
			Words:   words,
			Hints:   hints,
			Final:   true,
		})
	}
	return frames
}

// convertWords maps provider words to transcript words. Words with a non-positive
// duration are dropped before hint indices are assigned.
func convertWords(in []StreamWord, channel int) ([]Word, []SpeakerHint) {
	words := make([]Word, 0, len(in))
	var hints []SpeakerHint
	for _, w := range in {
		text := w.PunctuatedWord
		if strings.TrimSpace(text) == "" {
			text = w.Word
		}
		word := Word{
			Text:    " " + text,
			StartMs: secondsToMs(w.Start),
			EndMs:   secondsToMs(w.End),
			Channel: channel,
		}
		if word.EndMs <= word.StartMs {
			continue
		}
		if w.Speaker != nil {
			hints = append(hints, SpeakerHint{
				WordIndex: len(words),
				Data: HintData{
					Type:         HintTypeProviderSpeakerIndex,
					SpeakerIndex: *w.Speaker,
				},
			})
		}
		words = append(words, word)
	}
	return words, hints
}

func secondsToMs(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
