package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/participation/delegation-graph/domain/entities"
	domainerrors "agora/contexts/participation/delegation-graph/domain/errors"
	"agora/contexts/participation/delegation-graph/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-memory adapter. The single store mutex doubles as the
// per-vote write serialization the cycle check requires.
type Store struct {
	mu sync.RWMutex

	delegations map[string]entities.Delegation
	votes       map[string]entities.VoteProjection
	members     map[string]map[string]bool
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
}

func NewStore(seed []entities.Delegation) *Store {
	delegations := make(map[string]entities.Delegation, len(seed))
	for _, edge := range seed {
		delegations[edgeKey(edge.VoteID, edge.ByUserID)] = edge
	}
	return &Store{
		delegations: delegations,
		votes:       make(map[string]entities.VoteProjection),
		members:     make(map[string]map[string]bool),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
	}
}

func (s *Store) SetVote(vote entities.VoteProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[strings.TrimSpace(vote.VoteID)] = vote
}

func (s *Store) SetTopicMember(topicID string, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	topicID = strings.TrimSpace(topicID)
	if s.members[topicID] == nil {
		s.members[topicID] = make(map[string]bool)
	}
	s.members[topicID][strings.TrimSpace(userID)] = true
}

func (s *Store) RemoveTopicMember(topicID string, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[strings.TrimSpace(topicID)], strings.TrimSpace(userID))
}

func (s *Store) ReplaceDelegation(_ context.Context, delegation entities.Delegation, maxDepth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voteID := strings.TrimSpace(delegation.VoteID)
	byUserID := strings.TrimSpace(delegation.ByUserID)
	toUserID := strings.TrimSpace(delegation.ToUserID)

	// Commit-time walk against the current graph snapshot, under the same
	// lock every write takes.
	current := toUserID
	for step := 0; ; step++ {
		if step > maxDepth {
			return domainerrors.ErrDelegationDepthExceeded
		}
		if strings.EqualFold(current, byUserID) {
			return domainerrors.ErrCyclicDelegation
		}
		edge, ok := s.delegations[edgeKey(voteID, current)]
		if !ok {
			break
		}
		current = edge.ToUserID
	}

	key := edgeKey(voteID, byUserID)
	if existing, ok := s.delegations[key]; ok {
		delegation.CreatedAt = existing.CreatedAt
	}
	s.delegations[key] = delegation
	return nil
}

func (s *Store) RemoveDelegation(_ context.Context, voteID string, byUserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey(voteID, byUserID)
	if _, ok := s.delegations[key]; !ok {
		return false, nil
	}
	delete(s.delegations, key)
	return true, nil
}

func (s *Store) RemoveDelegationsToUser(
	_ context.Context,
	topicID string,
	userID string,
	_ time.Time,
) ([]entities.Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	topicID = strings.TrimSpace(topicID)
	userID = strings.TrimSpace(userID)
	removed := make([]entities.Delegation, 0)
	for key, edge := range s.delegations {
		vote, ok := s.votes[edge.VoteID]
		if !ok || !strings.EqualFold(vote.TopicID, topicID) {
			continue
		}
		if !strings.EqualFold(edge.ToUserID, userID) {
			continue
		}
		removed = append(removed, edge)
		delete(s.delegations, key)
	}
	sortDelegationsByCreation(removed)
	return removed, nil
}

func (s *Store) GetDelegation(_ context.Context, voteID string, byUserID string) (entities.Delegation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.delegations[edgeKey(voteID, byUserID)]
	if !ok {
		return entities.Delegation{}, false, nil
	}
	return edge, true, nil
}

func (s *Store) ListDelegationsByVote(_ context.Context, voteID string) ([]entities.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Delegation, 0)
	for _, edge := range s.delegations {
		if strings.TrimSpace(edge.VoteID) == strings.TrimSpace(voteID) {
			items = append(items, edge)
		}
	}
	sortDelegationsByCreation(items)
	return items, nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.VoteProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.VoteProjection{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) HasTopicAccess(_ context.Context, topicID string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[strings.TrimSpace(topicID)][strings.TrimSpace(userID)], nil
}

func (s *Store) CountEligibleVoters(_ context.Context, topicID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[strings.TrimSpace(topicID)]), nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrInvalidDelegationInput
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrInvalidDelegationInput
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			return true, nil
		}
	}
	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func edgeKey(voteID string, byUserID string) string {
	return strings.TrimSpace(voteID) + "|" + strings.TrimSpace(byUserID)
}

func sortDelegationsByCreation(items []entities.Delegation) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
