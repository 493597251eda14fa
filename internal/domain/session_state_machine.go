package domain

import (
	"fmt"

	"github.com/preceptly/backend/pkg/constants"
)

// SessionTransition represents an action that can change session status
type SessionTransition string

const (
	// TransitionPause records an explicit "save and exit"
	TransitionPause SessionTransition = "Pause"
	// TransitionResume reactivates a paused or abandoned session
	TransitionResume SessionTransition = "Resume"
	// TransitionExpire retires a session past its expiry
	TransitionExpire SessionTransition = "Expire"
	// TransitionComplete marks the session finished via the finalizer
	TransitionComplete SessionTransition = "Complete"
	// TransitionAbandon flags inactivity inferred by the analytics layer
	TransitionAbandon SessionTransition = "Abandon"
)

// SessionStateMachine enforces valid status transitions for onboarding
// sessions. Invalid transitions return an error (fail-fast approach).
// Completed and expired are terminal; paused and abandoned are advisory
// and resume freely before expiry.
type SessionStateMachine struct {
	// transitions maps (current status, transition) -> next status
	transitions map[statusTransitionKey]constants.SessionStatus
}

type statusTransitionKey struct {
	status     constants.SessionStatus
	transition SessionTransition
}

// NewSessionStateMachine creates a state machine with the session lifecycle rules.
// Status diagram:
//
//	     ┌──Pause────► [paused] ───┐
//	[active] ◄──Resume─────────────┤
//	     │ ◄──Resume── [abandoned]─┤
//	  Complete                  Expire
//	     │                         │
//	     ▼                         ▼
//	[completed]               [expired]
func NewSessionStateMachine() *SessionStateMachine {
	sm := &SessionStateMachine{
		transitions: make(map[statusTransitionKey]constants.SessionStatus),
	}

	sm.addTransition(constants.SessionStatusActive, TransitionPause, constants.SessionStatusPaused)
	sm.addTransition(constants.SessionStatusActive, TransitionAbandon, constants.SessionStatusAbandoned)
	sm.addTransition(constants.SessionStatusActive, TransitionComplete, constants.SessionStatusCompleted)
	sm.addTransition(constants.SessionStatusActive, TransitionExpire, constants.SessionStatusExpired)
	sm.addTransition(constants.SessionStatusPaused, TransitionResume, constants.SessionStatusActive)
	sm.addTransition(constants.SessionStatusPaused, TransitionExpire, constants.SessionStatusExpired)
	sm.addTransition(constants.SessionStatusPaused, TransitionAbandon, constants.SessionStatusAbandoned)
	sm.addTransition(constants.SessionStatusAbandoned, TransitionResume, constants.SessionStatusActive)
	sm.addTransition(constants.SessionStatusAbandoned, TransitionExpire, constants.SessionStatusExpired)

	return sm
}

func (sm *SessionStateMachine) addTransition(from constants.SessionStatus, via SessionTransition, to constants.SessionStatus) {
	key := statusTransitionKey{status: from, transition: via}
	sm.transitions[key] = to
}

// Transition attempts to transition from the current status using the given
// action. Returns the new status or an error if the transition is invalid.
func (sm *SessionStateMachine) Transition(current constants.SessionStatus, action SessionTransition) (constants.SessionStatus, error) {
	key := statusTransitionKey{status: current, transition: action}
	next, ok := sm.transitions[key]
	if !ok {
		return current, fmt.Errorf("invalid session transition: cannot %s from %s", action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it
func (sm *SessionStateMachine) CanTransition(current constants.SessionStatus, action SessionTransition) bool {
	key := statusTransitionKey{status: current, transition: action}
	_, ok := sm.transitions[key]
	return ok
}

// ValidTransitions returns all valid transitions from the given status
func (sm *SessionStateMachine) ValidTransitions(status constants.SessionStatus) []SessionTransition {
	var result []SessionTransition
	for key := range sm.transitions {
		if key.status == status {
			result = append(result, key.transition)
		}
	}
	return result
}

// IsTerminal returns true if the status permits no further transitions
func (sm *SessionStateMachine) IsTerminal(status constants.SessionStatus) bool {
	return status == constants.SessionStatusCompleted || status == constants.SessionStatusExpired
}
