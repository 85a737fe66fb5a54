package domain

import "go.trai.ch/zerr"

// EntryState is the lifecycle state of one matrix entry.
type EntryState int

const (
	// StatePending means the entry has not started.
	StatePending EntryState = iota
	// StateProvisioning means the environment is being created.
	StateProvisioning
	// StateCacheBinding means cache volumes are being attached.
	StateCacheBinding
	// StateExecuting means pipeline steps are running.
	StateExecuting
	// StateSucceeded means every step exited with code 0.
	StateSucceeded
	// StateFailed means provisioning, binding or a step failed, or the entry was cancelled.
	StateFailed
)

var stateNames = [...]string{
	StatePending:      "pending",
	StateProvisioning: "provisioning",
	StateCacheBinding: "cache_binding",
	StateExecuting:    "executing",
	StateSucceeded:    "succeeded",
	StateFailed:       "failed",
}

func (s EntryState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s EntryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *EntryState) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = EntryState(i)
			return nil
		}
	}
	return zerr.With(zerr.New("unknown entry state"), "state", string(text))
}

// Terminal reports whether no further transition is possible.
func (s EntryState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanTransition reports whether the entry may move from s to next.
func (s EntryState) CanTransition(next EntryState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	switch s {
	case StatePending:
		return next == StateProvisioning
	case StateProvisioning:
		return next == StateCacheBinding
	case StateCacheBinding:
		return next == StateExecuting
	case StateExecuting:
		return next == StateSucceeded
	default:
		return false
	}
}

// Transition returns next if the move is allowed.
func (s EntryState) Transition(next EntryState) (EntryState, error) {
	if !s.CanTransition(next) {
		err := zerr.With(zerr.Wrap(ErrInvalidTransition, ""), "from", s.String())
		return s, zerr.With(err, "to", next.String())
	}
	return next, nil
}
