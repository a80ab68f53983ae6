package entities

import (
	"time"
)

type SigningMethod string

const (
	MethodIDCard   SigningMethod = "idcard"
	MethodMobileID SigningMethod = "mobileid"
)

type SessionStatus string

const (
	StatusInit              SessionStatus = "init"
	StatusAwaitingSignature SessionStatus = "awaiting_signature"
	StatusChallengeIssued   SessionStatus = "challenge_issued"
	StatusPolling           SessionStatus = "polling"
	StatusComplete          SessionStatus = "complete"
	StatusFailed            SessionStatus = "failed"
)

// SigningSession is the single source of truth for one in-flight hard-auth
// cast. Exactly one pending session exists per (vote, user); a newer init
// supersedes the prior one.
type SigningSession struct {
	SessionID         string
	VoteID            string
	TopicID           string
	UserID            string
	Method            SigningMethod
	Status            SessionStatus
	OptionIDs         []string
	Token             string
	Certificate       string
	PID               string
	ChallengeCode     string
	SignedInfoDigest  string
	ExternalSessionID string
	ContainerRef      string
	FailureCode       string
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Pending reports whether the session still accepts provider progress.
func (s SigningSession) Pending() bool {
	switch s.Status {
	case StatusInit, StatusAwaitingSignature, StatusChallengeIssued, StatusPolling:
		return true
	default:
		return false
	}
}

func (s SigningSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// IdentityLink binds a verified national personal ID to exactly one
// platform account, permanently.
type IdentityLink struct {
	PID       string
	UserID    string
	CreatedAt time.Time
}

// VoteProjection is the slice of the vote catalog the orchestrator needs:
// enough to authorize an init and to scope the signed container.
type VoteProjection struct {
	VoteID   string
	TopicID  string
	Status   string
	AuthType string
	EndsAt   *time.Time
}

func (v VoteProjection) AcceptsSignatures(now time.Time) bool {
	if v.Status != "open" {
		return false
	}
	if v.EndsAt != nil && now.After(*v.EndsAt) {
		return false
	}
	return true
}
