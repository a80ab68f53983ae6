package entities

import "time"

// Delegation is the single outgoing edge a voter may hold per vote.
// Replacing a delegation overwrites the previous edge in place.
type Delegation struct {
	VoteID    string
	ByUserID  string
	ToUserID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type VoteStatus string

const (
	VoteStatusOpen   VoteStatus = "open"
	VoteStatusClosed VoteStatus = "closed"
)

// VoteProjection is the read model of a vote this module needs for edge
// validation. The tally engine owns the authoritative vote rows.
type VoteProjection struct {
	VoteID            string
	TopicID           string
	Status            VoteStatus
	EndsAt            *time.Time
	DelegationAllowed bool
}

// AcceptsWrites reports whether delegation edges may still change.
func (v VoteProjection) AcceptsWrites(now time.Time) bool {
	if v.Status != VoteStatusOpen {
		return false
	}
	if v.EndsAt != nil && v.EndsAt.UTC().Before(now.UTC()) {
		return false
	}
	return true
}
