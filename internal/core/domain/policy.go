package domain

import "go.trai.ch/zerr"

// FailurePolicy decides what happens to sibling entries when one fails.
type FailurePolicy string

const (
	// FailAtEnd runs every entry to completion and fails the matrix afterwards.
	FailAtEnd FailurePolicy = "fail-at-end"
	// FailFast cancels unfinished entries on the first failure.
	FailFast FailurePolicy = "fail-fast"
)

// ParsePolicy converts a policy name. An empty name selects FailAtEnd.
func ParsePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(name) {
	case "", FailAtEnd:
		return FailAtEnd, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrInvalidPolicy, ""), "policy", name)
	}
}
