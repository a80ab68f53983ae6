package errors

import "errors"

// User-facing messages are part of the external contract; do not reword.
var (
	ErrInvalidVoteInput   = errors.New("invalid vote input")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrVoteNotOpen        = errors.New("vote is not open")
	ErrNoTopicAccess      = errors.New("user has no access to this topic")
	ErrTooFewOptions      = errors.New("At least 2 vote options are required")
	ErrOptionsTooSimilar  = errors.New("Vote options are too similar")
	ErrInvalidOptionValue = errors.New("vote option value must be 1-100 characters and must not use the reserved prefix")
	ErrInvalidChoiceCount = errors.New("number of chosen options is outside the allowed range")
	ErrUnknownOption      = errors.New("chosen option does not belong to this vote")
	ErrHardAuthRequired   = errors.New("vote requires a digitally signed ballot")

	// ErrTallyIntegrity means delegation resolution crossed its safety bound
	// while tallying. The tally is withheld instead of returning a wrong
	// number; this needs operator attention.
	ErrTallyIntegrity = errors.New("tally withheld: delegation graph integrity violation")
)
