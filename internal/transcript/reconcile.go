package transcript

import (
	"slices"
)

// Apply routes a frame to the final or partial path based on Frame.Final.
func Apply(s State, f Frame) (State, Commit) {
	if f.Final {
		return ApplyFinal(s, f)
	}
	return ApplyPartial(s, f), Commit{}
}

// ApplyFinal commits the suffix of a final frame that ends past the channel high-water
// mark, then prunes partial words superseded by it. Words already covered by an earlier
// commit are dropped, so resubmitting a final frame is a no-op.
func ApplyFinal(s State, f Frame) (State, Commit) {
	if len(f.Words) == 0 {
		return s, Commit{}
	}

	ch := s.channels[f.Channel]
	first := slices.IndexFunc(f.Words, func(w Word) bool {
		return w.EndMs > ch.CommittedEndMs
	})
	if first < 0 {
		return s, Commit{}
	}

	commit := Commit{
		Words: slices.Clone(f.Words[first:]),
		Hints: sliceHints(f.Hints, first, len(f.Words)),
	}
	committedEndMs := commit.Words[len(commit.Words)-1].EndMs

	mapping := make([]int, len(ch.PartialWords))
	retained := make([]Word, 0, len(ch.PartialWords))
	for i, w := range ch.PartialWords {
		if w.StartMs <= committedEndMs {
			mapping[i] = -1
			continue
		}
		mapping[i] = len(retained)
		retained = append(retained, w)
	}

	next := s.with(f.Channel, ChannelState{
		CommittedEndMs: committedEndMs,
		PartialWords:   retained,
		PartialHints:   remapHints(ch.PartialHints, mapping),
	})
	return next, commit
}

// ApplyPartial splices a partial hypothesis into the channel's partial buffer. Buffered
// words overlapping [first start, last end) of the new frame are replaced by it; words
// entirely before or after are kept and their hints are reindexed.
func ApplyPartial(s State, f Frame) State {
	if len(f.Words) == 0 {
		return s
	}

	ch := s.channels[f.Channel]
	firstStartMs := f.Words[0].StartMs
	lastEndMs := f.Words[len(f.Words)-1].EndMs

	const (
		dropped = iota
		inBefore
		inAfter
	)
	placement := make([]int, len(ch.PartialWords))
	var before, after []Word
	for i, w := range ch.PartialWords {
		switch {
		case w.EndMs <= firstStartMs:
			placement[i] = inBefore
			before = append(before, w)
		case w.StartMs >= lastEndMs:
			placement[i] = inAfter
			after = append(after, w)
		default:
			placement[i] = dropped
		}
	}

	words := make([]Word, 0, len(before)+len(f.Words)+len(after))
	words = append(words, before...)
	words = append(words, f.Words...)
	words = append(words, after...)

	mapping := make([]int, len(ch.PartialWords))
	nextBefore, nextAfter := 0, len(before)+len(f.Words)
	for i, p := range placement {
		switch p {
		case inBefore:
			mapping[i] = nextBefore
			nextBefore++
		case inAfter:
			mapping[i] = nextAfter
			nextAfter++
		default:
			mapping[i] = -1
		}
	}

	hints := remapHints(ch.PartialHints, mapping)
	for _, h := range sliceHints(f.Hints, 0, len(f.Words)) {
		h.WordIndex += len(before)
		hints = append(hints, h)
	}
	slices.SortStableFunc(hints, func(a, b SpeakerHint) int {
		return a.WordIndex - b.WordIndex
	})

	return s.with(f.Channel, ChannelState{
		CommittedEndMs: ch.CommittedEndMs,
		PartialWords:   words,
		PartialHints:   hints,
	})
}

// Flush concatenates every channel's partial words in ascending channel order and
// returns them as one commit, together with an empty State.
func Flush(s State) (State, Commit) {
	var commit Commit
	for _, channel := range s.Channels() {
		ch := s.channels[channel]
		offset := len(commit.Words)
		commit.Words = append(commit.Words, ch.PartialWords...)
		for _, h := range ch.PartialHints {
			if h.WordIndex < 0 || h.WordIndex >= len(ch.PartialWords) {
				continue
			}
			h.WordIndex += offset
			commit.Hints = append(commit.Hints, h)
		}
	}
	if commit.Empty() {
		commit.Hints = nil
	}
	return State{}, commit
}

// sliceHints keeps hints indexing into [from, to) and rebases them to from.
func sliceHints(hints []SpeakerHint, from, to int) []SpeakerHint {
	out := make([]SpeakerHint, 0, len(hints))
	for _, h := range hints {
		if h.WordIndex < from || h.WordIndex >= to {
			continue
		}
		h.WordIndex -= from
		out = append(out, h)
	}
	return out
}

// remapHints rewrites hint indices through mapping; -1 or out-of-range entries drop the hint.
func remapHints(hints []SpeakerHint, mapping []int) []SpeakerHint {
	out := make([]SpeakerHint, 0, len(hints))
	for _, h := range hints {
		if h.WordIndex < 0 || h.WordIndex >= len(mapping) {
			continue
		}
		next := mapping[h.WordIndex]
		if next < 0 {
			continue
		}
		h.WordIndex = next
		out = append(out, h)
	}
	return out
}
