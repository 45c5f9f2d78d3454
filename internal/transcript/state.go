package transcript

import (
	"maps"
	"slices"
)

// ChannelState is the reconciliation state of one channel.
type ChannelState struct {
	CommittedEndMs int64
	PartialWords   []Word
	PartialHints   []SpeakerHint
}

// State is the per-session reconciliation state. Values are never mutated in place;
// every transition returns a new State.
type State struct {
	channels map[int]ChannelState
}

// Channel returns a copy of one channel's state. Unknown channels report the zero state.
func (s State) Channel(channel int) ChannelState {
	ch := s.channels[channel]
	return ChannelState{
		CommittedEndMs: ch.CommittedEndMs,
		PartialWords:   slices.Clone(ch.PartialWords),
		PartialHints:   slices.Clone(ch.PartialHints),
	}
}

// Channels lists known channel ids in ascending order.
func (s State) Channels() []int {
	return slices.Sorted(maps.Keys(s.channels))
}

// IsZero reports whether no channel holds any state.
func (s State) IsZero() bool {
	return len(s.channels) == 0
}

// with returns a copy of s whose channel entry is replaced by ch.
func (s State) with(channel int, ch ChannelState) State {
	next := make(map[int]ChannelState, len(s.channels)+1)
	maps.Copy(next, s.channels)
	next[channel] = ch
	return State{channels: next}
}
