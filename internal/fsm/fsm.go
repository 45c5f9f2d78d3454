// Package fsm holds the session mode transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateInactive     State = "inactive"
	StateActive       State = "active"
	StateFinalizing   State = "finalizing"
	StateRunningBatch State = "running_batch"
)

const (
	EventActivate   Event = "activate"
	EventFinalize   Event = "finalize"
	EventDeactivate Event = "deactivate"
	EventBatchStart Event = "batch_start"
	EventBatchEnd   Event = "batch_end"
)

// IsLive reports whether the state belongs to the live capture path.
func (s State) IsLive() bool {
	return s == StateActive || s == StateFinalizing
}

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateInactive:
		switch event {
		case EventActivate:
			return StateActive, nil
		case EventFinalize:
			return StateFinalizing, nil
		case EventDeactivate:
			return StateInactive, nil
		case EventBatchStart:
			return StateRunningBatch, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActive:
		switch event {
		case EventActivate:
			return StateActive, nil
		case EventFinalize:
			return StateFinalizing, nil
		case EventDeactivate:
			return StateInactive, nil
		case EventBatchStart:
			return current, fmt.Errorf("cannot start batch: session is live (%s)", current)
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinalizing:
		switch event {
		case EventFinalize:
			return StateFinalizing, nil
		case EventDeactivate:
			return StateInactive, nil
		case EventBatchStart:
			return current, fmt.Errorf("cannot start batch: session is live (%s)", current)
		default:
			return current, invalidTransition(current, event)
		}
	case StateRunningBatch:
		switch event {
		case EventBatchEnd:
			return StateInactive, nil
		case EventBatchStart:
			return current, fmt.Errorf("cannot start batch: already running batch")
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
