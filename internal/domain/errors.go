package domain

import "errors"

// Validation failures reject the whole operation atomically with no state
// change. Solvency failures do the same; they are never partial payouts.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidOutcome    = errors.New("invalid outcome")
	ErrInvalidEvidence   = errors.New("invalid evidence")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrWrongPhase        = errors.New("market in wrong phase")
	ErrWindowClosed      = errors.New("window closed")
	ErrWindowNotOpen     = errors.New("window not open")
	ErrCooldownActive    = errors.New("commit cooldown active")
	ErrCommitMismatch    = errors.New("reveal does not match commitment")
	ErrCommitConsumed    = errors.New("commitment already consumed")
	ErrStakeWithdrawn    = errors.New("stake already withdrawn")
	ErrNotDelegate       = errors.New("not in delegate snapshot")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrChallengeCap      = errors.New("evidence challenge cap reached")
	ErrChallengesPending = errors.New("unresolved evidence challenges")
	ErrAlreadyFinalized  = errors.New("resolution already finalized")
	ErrNotFinalized      = errors.New("resolution not finalized")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsolvent         = errors.New("treasury insolvent")
	ErrLockHeld          = errors.New("lock already held")
)
