package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	"agora/contexts/participation/signing-orchestrator/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter backing tests and local development. One
// mutex serializes every operation, which also gives ReplacePending its
// atomic supersede semantics.
type Store struct {
	mu              sync.Mutex
	sessionsByToken map[string]entities.SigningSession
	pendingByOwner  map[string]string
	linksByPID      map[string]entities.IdentityLink
	linksByUser     map[string]entities.IdentityLink
	votes           map[string]entities.VoteProjection
	members         map[string]map[string]bool
	outbox          []outboxRecord
}

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore() *Store {
	return &Store{
		sessionsByToken: make(map[string]entities.SigningSession),
		pendingByOwner:  make(map[string]string),
		linksByPID:      make(map[string]entities.IdentityLink),
		linksByUser:     make(map[string]entities.IdentityLink),
		votes:           make(map[string]entities.VoteProjection),
		members:         make(map[string]map[string]bool),
	}
}

func ownerKey(voteID string, userID string) string {
	return voteID + "|" + userID
}

func (s *Store) ReplacePending(_ context.Context, session entities.SigningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey(session.VoteID, session.UserID)
	if priorToken, ok := s.pendingByOwner[key]; ok {
		prior := s.sessionsByToken[priorToken]
		if prior.Pending() {
			prior.Status = entities.StatusFailed
			prior.FailureCode = domainerrors.FailureCodeSuperseded
			prior.UpdatedAt = session.CreatedAt
			s.sessionsByToken[priorToken] = prior
		}
	}
	s.sessionsByToken[session.Token] = cloneSession(session)
	s.pendingByOwner[key] = session.Token
	return nil
}

func (s *Store) UpdateSession(_ context.Context, session entities.SigningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessionsByToken[session.Token]; !ok {
		return domainerrors.ErrSessionNotFound
	}
	s.sessionsByToken[session.Token] = cloneSession(session)
	if !session.Pending() {
		key := ownerKey(session.VoteID, session.UserID)
		if s.pendingByOwner[key] == session.Token {
			delete(s.pendingByOwner, key)
		}
	}
	return nil
}

func (s *Store) GetSessionByToken(_ context.Context, token string) (entities.SigningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessionsByToken[strings.TrimSpace(token)]
	if !ok {
		return entities.SigningSession{}, domainerrors.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *Store) GetPendingSession(_ context.Context, voteID string, userID string) (entities.SigningSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.pendingByOwner[ownerKey(strings.TrimSpace(voteID), strings.TrimSpace(userID))]
	if !ok {
		return entities.SigningSession{}, false, nil
	}
	session, ok := s.sessionsByToken[token]
	if !ok || !session.Pending() {
		return entities.SigningSession{}, false, nil
	}
	return cloneSession(session), true, nil
}

func (s *Store) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]entities.SigningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	expired := make([]entities.SigningSession, 0)
	for _, session := range s.sessionsByToken {
		if session.Pending() && session.Expired(now) {
			expired = append(expired, cloneSession(session))
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *Store) GetLinkByPID(_ context.Context, pid string) (entities.IdentityLink, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.linksByPID[strings.TrimSpace(pid)]
	return link, ok, nil
}

func (s *Store) GetLinkByUser(_ context.Context, userID string) (entities.IdentityLink, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.linksByUser[strings.TrimSpace(userID)]
	return link, ok, nil
}

func (s *Store) SaveLink(_ context.Context, link entities.IdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := strings.TrimSpace(link.PID)
	userID := strings.TrimSpace(link.UserID)
	if existing, ok := s.linksByPID[pid]; ok && existing.UserID != userID {
		return domainerrors.ErrPidAlreadyLinked
	}
	if existing, ok := s.linksByUser[userID]; ok && existing.PID != pid {
		return domainerrors.ErrAccountAlreadyLinked
	}
	link.PID = pid
	link.UserID = userID
	s.linksByPID[pid] = link
	s.linksByUser[userID] = link
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.VoteProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.VoteProjection{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) HasTopicAccess(_ context.Context, topicID string, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.members[strings.TrimSpace(topicID)]
	if !ok {
		return false, nil
	}
	return users[strings.TrimSpace(userID)], nil
}

// SetVote seeds the vote catalog projection for tests and local wiring.
func (s *Store) SetVote(vote entities.VoteProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[vote.VoteID] = vote
}

func (s *Store) SetTopicMember(topicID string, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[topicID] == nil {
		s.members[topicID] = make(map[string]bool)
	}
	s.members[topicID][userID] = true
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := marshalEnvelope(envelope)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	pending := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		pending = append(pending, record.message)
		if len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].published = true
			return nil
		}
	}
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func marshalEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func cloneSession(session entities.SigningSession) entities.SigningSession {
	copied := session
	copied.OptionIDs = append([]string(nil), session.OptionIDs...)
	return copied
}

var _ ports.SessionRepository = (*Store)(nil)
var _ ports.IdentityLinkRepository = (*Store)(nil)
var _ ports.VoteCatalog = (*Store)(nil)
var _ ports.MembershipOracle = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
