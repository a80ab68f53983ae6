package errors

import "errors"

// User-facing messages are part of the external contract; do not reword.
var (
	ErrInvalidDelegationInput = errors.New("invalid delegation input")
	ErrSelfDelegation         = errors.New("Cannot delegate to self.")
	ErrCyclicDelegation       = errors.New("Sorry, you cannot delegate your vote to this person.")
	ErrDelegateNoAccess       = errors.New("the selected user has no access to this topic")
	ErrDelegationNotAllowed   = errors.New("vote does not allow delegation")
	ErrVoteNotFound           = errors.New("vote not found")
	ErrVoteNotOpen            = errors.New("vote is not open")
	ErrDelegationNotFound     = errors.New("delegation not found")

	// ErrDelegationDepthExceeded means a chain walk crossed the eligible
	// voter bound. A cycle escaped write-time prevention; tallies built on
	// this graph must be withheld.
	ErrDelegationDepthExceeded = errors.New("delegation chain exceeded the eligible voter bound")
)
