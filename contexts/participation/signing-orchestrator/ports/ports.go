package ports

import (
	"context"
	"time"

	"agora/contexts/participation/signing-orchestrator/domain/entities"

	contractsv1 "agora/contracts/gen/events/v1"
)

// SessionRepository persists signing sessions. Writes are atomic
// read-modify-write per session; ReplacePending atomically supersedes any
// pending session for the same (vote, user) pair.
type SessionRepository interface {
	ReplacePending(ctx context.Context, session entities.SigningSession) error
	UpdateSession(ctx context.Context, session entities.SigningSession) error
	GetSessionByToken(ctx context.Context, token string) (entities.SigningSession, error)
	GetPendingSession(ctx context.Context, voteID string, userID string) (entities.SigningSession, bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]entities.SigningSession, error)
}

// IdentityLinkRepository enforces the permanent one-PID-one-account bind.
type IdentityLinkRepository interface {
	GetLinkByPID(ctx context.Context, pid string) (entities.IdentityLink, bool, error)
	GetLinkByUser(ctx context.Context, userID string) (entities.IdentityLink, bool, error)
	SaveLink(ctx context.Context, link entities.IdentityLink) error
}

type VoteCatalog interface {
	GetVote(ctx context.Context, voteID string) (entities.VoteProjection, error)
}

type MembershipOracle interface {
	HasTopicAccess(ctx context.Context, topicID string, userID string) (bool, error)
}

// IDCardProvider is the external certificate collaborator for the
// synchronous digest/signature exchange.
type IDCardProvider interface {
	// PrepareDigest returns the to-be-signed digest for the container
	// payload under the supplied client certificate.
	PrepareDigest(ctx context.Context, certificate string, payload []byte) (string, error)
	// VerifySignature checks the signature against the digest and the
	// certificate chain. It returns the verified PID on success or a
	// provider status code on failure.
	VerifySignature(ctx context.Context, certificate string, digest string, signatureValue string) (IDCardVerification, error)
}

type IDCardVerification struct {
	OK           bool
	PID          string
	ProviderCode string
}

// MobileIDProvider issues challenges and reports asynchronous session
// progress with provider-specific status codes.
type MobileIDProvider interface {
	StartSession(ctx context.Context, phoneNumber string, pid string, payload []byte) (MobileIDChallenge, error)
	PollSession(ctx context.Context, externalSessionID string) (MobileIDPoll, error)
}

type MobileIDChallenge struct {
	ExternalSessionID string
	ChallengeCode     string
}

type MobileIDPollState string

const (
	MobileIDPollPending  MobileIDPollState = "pending"
	MobileIDPollComplete MobileIDPollState = "complete"
	MobileIDPollFailed   MobileIDPollState = "failed"
)

type MobileIDPoll struct {
	State          MobileIDPollState
	PID            string
	SignatureValue string
	ProviderCode   string
}

// ContainerBuilder assembles, finalizes and exposes signed ballot
// containers. The download URL embeds a scoped bearer token bound to the
// (topic, vote, user, path) tuple with an expiry.
type ContainerBuilder interface {
	BuildUnsigned(ctx context.Context, req ContainerRequest) ([]byte, error)
	FinalizeSigned(ctx context.Context, req ContainerRequest, signatureValue string) (string, error)
	SignedDownloadURL(ctx context.Context, containerRef string, req ContainerRequest, expiresAt time.Time) (string, error)
}

type ContainerRequest struct {
	TopicID   string
	VoteID    string
	UserID    string
	OptionIDs []string
}

// BallotCaster writes the hard ballot through the tally engine's cast path
// once a session completes.
type BallotCaster interface {
	CastHardBallot(ctx context.Context, voteID string, voterID string, optionIDs []string, containerRef string) error
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

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
