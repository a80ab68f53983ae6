package ports

import (
	"context"
	"errors"
	"time"

	"agora/contexts/participation/tally-engine/domain/entities"

	contractsv1 "agora/contracts/gen/events/v1"
)

// VoteRepository persists vote definitions with their options.
type VoteRepository interface {
	SaveVote(ctx context.Context, vote entities.Vote) error
	GetVote(ctx context.Context, voteID string) (entities.Vote, error)
	// CloseVotesPastDeadline transitions open votes whose ends_at crossed
	// now and returns the closed votes for event emission.
	CloseVotesPastDeadline(ctx context.Context, now time.Time) ([]entities.Vote, error)
}

// BallotRepository persists the one-ballot-per-voter relation.
type BallotRepository interface {
	SaveBallot(ctx context.Context, ballot entities.Ballot) error
	GetBallot(ctx context.Context, voteID string, voterID string) (entities.Ballot, bool, error)
	ListBallotsByVote(ctx context.Context, voteID string) ([]entities.Ballot, error)
}

// MembershipOracle answers topic access questions and enumerates the
// eligible voter population for result computation.
type MembershipOracle interface {
	HasTopicAccess(ctx context.Context, topicID string, userID string) (bool, error)
	ListEligibleVoters(ctx context.Context, topicID string) ([]string, error)
}

// DelegationResolver resolves a user's effective voter through the
// delegation graph. Implemented by the delegation-graph module.
type DelegationResolver interface {
	ResolveFinalVoter(ctx context.Context, voteID string, userID string) (string, error)
}

// ErrDelegationDepthExceeded is the contract error resolver implementations
// return when a chain walk crossed the eligible voter bound.
var ErrDelegationDepthExceeded = errors.New("delegation chain exceeded the eligible voter bound")

// EventEnvelope aliases the canonical versioned contract so modules stay
// structurally aligned without importing each other.
type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
