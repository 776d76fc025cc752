package league

import "errors"

// Service-level sentinel errors, mapped to structured ERROR payloads at the
// handler boundary.
var (
	ErrInsufficientParticipants = errors.New("need at least 2 players and 1 referee to create a schedule")
	ErrInvalidRounds            = errors.New("rounds must be at least 1")
	ErrScheduleExists           = errors.New("schedule already exists")
	ErrMatchNotFound            = errors.New("match not found")
	ErrMatchAlreadyCompleted    = errors.New("match already completed")
)
