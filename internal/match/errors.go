package match

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by tick context queries for an unknown agent.
	ErrNotFound = errors.New("agent not found")

	// ErrAlreadyEnded is returned by Tick once the match reached full time.
	ErrAlreadyEnded = errors.New("match already ended")

	// ErrInternalConsistency aborts a match whose committed state broke an invariant.
	ErrInternalConsistency = errors.New("internal consistency violation")

	// ErrInvalidRoster is returned by New for rosters the engine cannot play.
	ErrInvalidRoster = errors.New("invalid roster")

	// ErrStopped is returned by Tick after Stop was requested.
	ErrStopped = errors.New("match stopped")

	// ErrNoProgress ends a match in which no agent could decide for too long.
	ErrNoProgress = errors.New("match cannot progress")
)

// NotFoundError names the agent a query could not resolve.
type NotFoundError struct {
	AgentID AgentID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("agent %d: %v", e.AgentID, ErrNotFound)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func consistencyError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInternalConsistency, fmt.Sprintf(format, args...))
}

func rosterError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRoster, fmt.Sprintf(format, args...))
}
