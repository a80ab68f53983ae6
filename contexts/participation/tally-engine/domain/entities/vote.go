package entities

import "time"

type AuthType string

const (
	AuthTypeSoft AuthType = "soft"
	AuthTypeHard AuthType = "hard"
)

type VoteStatus string

const (
	VoteStatusOpen   VoteStatus = "open"
	VoteStatusClosed VoteStatus = "closed"
)

// ReservedOptionPrefix marks system-generated option values; user options
// must not start with it.
const ReservedOptionPrefix = "__"

// Vote is a ballot definition attached to a topic. Everything except EndsAt
// and Status is immutable after creation.
type Vote struct {
	VoteID            string
	TopicID           string
	MinChoices        int
	MaxChoices        int
	DelegationAllowed bool
	AuthType          AuthType
	EndsAt            *time.Time
	Description       string
	Status            VoteStatus
	Options           []VoteOption
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AcceptsVotes reports whether ballots and delegations may still change.
func (v Vote) AcceptsVotes(now time.Time) bool {
	if v.Status != VoteStatusOpen {
		return false
	}
	if v.EndsAt != nil && v.EndsAt.UTC().Before(now.UTC()) {
		return false
	}
	return true
}

// HasOption reports whether the option id belongs to this vote.
func (v Vote) HasOption(optionID string) bool {
	for _, option := range v.Options {
		if option.OptionID == optionID {
			return true
		}
	}
	return false
}

type VoteOption struct {
	OptionID string
	VoteID   string
	Value    string
}

// Ballot is a voter's current choice set for a vote. A new cast replaces the
// prior ballot in place; there is never more than one per (vote, voter).
type Ballot struct {
	BallotID  string
	VoteID    string
	VoterID   string
	OptionIDs []string
	AuthType  AuthType
	CastAt    time.Time
	UpdatedAt time.Time
}

type OptionResult struct {
	OptionID string
	Value    string
	Count    int
}

// VoteResults is one idempotent tally snapshot.
type VoteResults struct {
	VoteID         string
	EligibleVoters int
	BallotsCounted int
	Options        []OptionResult
}
