package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionLiveHappyPath(t *testing.T) {
	s := StateInactive

	next, err := Transition(s, EventActivate)
	require.NoError(t, err)
	require.Equal(t, StateActive, next)

	next, err = Transition(next, EventFinalize)
	require.NoError(t, err)
	require.Equal(t, StateFinalizing, next)

	next, err = Transition(next, EventDeactivate)
	require.NoError(t, err)
	require.Equal(t, StateInactive, next)
}

func TestTransitionBatchHappyPath(t *testing.T) {
	next, err := Transition(StateInactive, EventBatchStart)
	require.NoError(t, err)
	require.Equal(t, StateRunningBatch, next)

	next, err = Transition(next, EventBatchEnd)
	require.NoError(t, err)
	require.Equal(t, StateInactive, next)
}

func TestTransitionBatchRejectedWhileLive(t *testing.T) {
	for _, state := range []State{StateActive, StateFinalizing} {
		next, err := Transition(state, EventBatchStart)
		require.Error(t, err)
		require.Contains(t, err.Error(), "session is live")
		require.Equal(t, state, next)
	}

	next, err := Transition(StateRunningBatch, EventBatchStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already running batch")
	require.Equal(t, StateRunningBatch, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "inactive batch end invalid", state: StateInactive, event: EventBatchEnd, want: StateInactive, wantErr: true},
		{name: "inactive deactivate is a no-op", state: StateInactive, event: EventDeactivate, want: StateInactive},
		{name: "inactive finalize valid", state: StateInactive, event: EventFinalize, want: StateFinalizing},
		{name: "active repeated activate valid", state: StateActive, event: EventActivate, want: StateActive},
		{name: "active batch end invalid", state: StateActive, event: EventBatchEnd, want: StateActive, wantErr: true},
		{name: "finalizing activate invalid", state: StateFinalizing, event: EventActivate, want: StateFinalizing, wantErr: true},
		{name: "finalizing batch end invalid", state: StateFinalizing, event: EventBatchEnd, want: StateFinalizing, wantErr: true},
		{name: "batch activate invalid", state: StateRunningBatch, event: EventActivate, want: StateRunningBatch, wantErr: true},
		{name: "batch finalize invalid", state: StateRunningBatch, event: EventFinalize, want: StateRunningBatch, wantErr: true},
		{name: "batch deactivate invalid", state: StateRunningBatch, event: EventDeactivate, want: StateRunningBatch, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStateIsLive(t *testing.T) {
	require.True(t, StateActive.IsLive())
	require.True(t, StateFinalizing.IsLive())
	require.False(t, StateInactive.IsLive())
	require.False(t, StateRunningBatch.IsLive())
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventActivate)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
