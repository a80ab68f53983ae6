package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tallymemory "agora/contexts/participation/tally-engine/adapters/memory"
	tallyworkers "agora/contexts/participation/tally-engine/application/workers"
	tallyentities "agora/contexts/participation/tally-engine/domain/entities"
	tallyports "agora/contexts/participation/tally-engine/ports"
)

type stubPublisher struct {
	published []string
}

func (p *stubPublisher) Publish(_ context.Context, topic string, _ tallyports.EventEnvelope) error {
	p.published = append(p.published, topic)
	return nil
}

func TestTallyDeadlineSweeperClosesExpiredVotes(t *testing.T) {
	now := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	deadline := now.Add(-time.Minute)
	store := tallymemory.NewStore(nil)
	if err := store.SaveVote(context.Background(), tallyentities.Vote{
		VoteID:     "vote-1",
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   tallyentities.AuthTypeSoft,
		EndsAt:     &deadline,
		Status:     tallyentities.VoteStatusOpen,
		Options: []tallyentities.VoteOption{
			{OptionID: "option-1", VoteID: "vote-1", Value: "Yes"},
			{OptionID: "option-2", VoteID: "vote-1", Value: "No"},
		},
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("save vote failed: %v", err)
	}

	sweeper := tallyworkers.DeadlineSweeper{
		Votes:  store,
		Outbox: store,
		Clock:  fixedClock{now: now},
		IDGen:  store,
	}
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("deadline sweep failed: %v", err)
	}

	vote, err := store.GetVote(context.Background(), "vote-1")
	if err != nil {
		t.Fatalf("load vote after sweep failed: %v", err)
	}
	if vote.Status != tallyentities.VoteStatusClosed {
		t.Fatalf("expected vote closed after deadline, got %s", vote.Status)
	}

	outbox, err := store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list tally outbox failed: %v", err)
	}
	closedEvents := 0
	for _, message := range outbox {
		var event struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(message.Payload, &event); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		if event.EventType == "vote.closed" {
			closedEvents++
		}
	}
	if closedEvents != 1 {
		t.Fatalf("expected one vote.closed event, got %d", closedEvents)
	}

	// Second sweep finds nothing newly closed and must not re-emit.
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("repeat deadline sweep failed: %v", err)
	}
	outbox, err = store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list tally outbox after repeat failed: %v", err)
	}
	closedEvents = 0
	for _, message := range outbox {
		var event struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(message.Payload, &event); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		if event.EventType == "vote.closed" {
			closedEvents++
		}
	}
	if closedEvents != 1 {
		t.Fatalf("expected sweep to stay idempotent, got %d vote.closed events", closedEvents)
	}
}

func TestTallyOutboxRelayPublishesAndMarks(t *testing.T) {
	now := time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC)
	store := tallymemory.NewStore(nil)
	payload, _ := json.Marshal(map[string]any{"vote_id": "vote-1"})
	if err := store.AppendOutbox(context.Background(), tallyports.EventEnvelope{
		EventID:      "event-1",
		EventType:    "vote.created",
		OccurredAt:   now,
		PartitionKey: "vote-1",
		Data:         payload,
	}); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}

	publisher := &stubPublisher{}
	relay := tallyworkers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     fixedClock{now: now},
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("outbox relay failed: %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0] != "vote.created" {
		t.Fatalf("expected one vote.created publish, got %v", publisher.published)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected relay to mark rows published, %d still pending", len(pending))
	}
}
