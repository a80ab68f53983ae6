package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/participation/tally-engine/domain/entities"
	domainerrors "agora/contexts/participation/tally-engine/domain/errors"
	"agora/contexts/participation/tally-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	votes   map[string]entities.Vote
	ballots map[string]entities.Ballot
	members map[string]map[string]bool
	outbox  map[string]outboxRecord
}

func NewStore(seed []entities.Vote) *Store {
	votes := make(map[string]entities.Vote, len(seed))
	for _, vote := range seed {
		votes[vote.VoteID] = vote
	}
	return &Store{
		votes:   votes,
		ballots: make(map[string]entities.Ballot),
		members: make(map[string]map[string]bool),
		outbox:  make(map[string]outboxRecord),
	}
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

func (s *Store) SaveVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[strings.TrimSpace(vote.VoteID)] = vote
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) CloseVotesPastDeadline(_ context.Context, now time.Time) ([]entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := make([]entities.Vote, 0)
	for key, vote := range s.votes {
		if vote.Status != entities.VoteStatusOpen {
			continue
		}
		if vote.EndsAt == nil || !vote.EndsAt.UTC().Before(now.UTC()) {
			continue
		}
		vote.Status = entities.VoteStatusClosed
		vote.UpdatedAt = now.UTC()
		s.votes[key] = vote
		closed = append(closed, vote)
	}
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].VoteID < closed[j].VoteID
	})
	return closed, nil
}

func (s *Store) SaveBallot(_ context.Context, ballot entities.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballots[ballotKey(ballot.VoteID, ballot.VoterID)] = ballot
	return nil
}

func (s *Store) GetBallot(_ context.Context, voteID string, voterID string) (entities.Ballot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[ballotKey(voteID, voterID)]
	if !ok {
		return entities.Ballot{}, false, nil
	}
	return ballot, true, nil
}

func (s *Store) ListBallotsByVote(_ context.Context, voteID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if strings.TrimSpace(ballot.VoteID) == strings.TrimSpace(voteID) {
			items = append(items, ballot)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CastAt.Before(items[j].CastAt)
	})
	return items, nil
}

func (s *Store) HasTopicAccess(_ context.Context, topicID string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[strings.TrimSpace(topicID)][strings.TrimSpace(userID)], nil
}

func (s *Store) ListEligibleVoters(_ context.Context, topicID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voters := make([]string, 0, len(s.members[strings.TrimSpace(topicID)]))
	for userID := range s.members[strings.TrimSpace(topicID)] {
		voters = append(voters, userID)
	}
	sort.Strings(voters)
	return voters, nil
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
			return domainerrors.ErrInvalidVoteInput
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
		return domainerrors.ErrInvalidVoteInput
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func ballotKey(voteID string, voterID string) string {
	return strings.TrimSpace(voteID) + "|" + strings.TrimSpace(voterID)
}
