package ports

import (
	"context"
	"time"

	"agora/contexts/participation/delegation-graph/domain/entities"

	contractsv1 "agora/contracts/gen/events/v1"
)

// DelegationRepository persists the adjacency mapping
// (vote_id, by_user_id) -> to_user_id.
type DelegationRepository interface {
	// ReplaceDelegation atomically re-validates acyclicity under the
	// per-vote write serialization and upserts the edge. maxDepth is the
	// eligible voter bound for the commit-time chain walk.
	ReplaceDelegation(ctx context.Context, delegation entities.Delegation, maxDepth int) error
	RemoveDelegation(ctx context.Context, voteID string, byUserID string) (bool, error)
	// RemoveDelegationsToUser drops every edge in the topic's votes whose
	// target is the given user. Used when a delegate loses topic access.
	RemoveDelegationsToUser(ctx context.Context, topicID string, userID string, updatedAt time.Time) ([]entities.Delegation, error)
	GetDelegation(ctx context.Context, voteID string, byUserID string) (entities.Delegation, bool, error)
	ListDelegationsByVote(ctx context.Context, voteID string) ([]entities.Delegation, error)
}

// VoteCatalog reads the vote projection owned by the tally engine.
type VoteCatalog interface {
	GetVote(ctx context.Context, voteID string) (entities.VoteProjection, error)
}

// MembershipOracle answers topic access questions. Group and membership
// management is an external collaborator; only this contract is consumed.
type MembershipOracle interface {
	HasTopicAccess(ctx context.Context, topicID string, userID string) (bool, error)
	CountEligibleVoters(ctx context.Context, topicID string) (int, error)
}

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

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

// EventDedupStore reserves consumed event IDs so replayed deliveries become
// no-ops within the dedup TTL.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
