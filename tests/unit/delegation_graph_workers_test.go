package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	delegationmemory "agora/contexts/participation/delegation-graph/adapters/memory"
	delegationworkers "agora/contexts/participation/delegation-graph/application/workers"
	delegationentities "agora/contexts/participation/delegation-graph/domain/entities"
	delegationports "agora/contexts/participation/delegation-graph/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now.UTC()
}

type stubSubscriber struct {
	handlers map[string]func(context.Context, delegationports.EventEnvelope) error
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, delegationports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, delegationports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

func TestDelegationMembershipRevocationConsumerRemovesInboundEdges(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	store := delegationmemory.NewStore([]delegationentities.Delegation{
		{
			VoteID:    "vote-1",
			ByUserID:  "user-1",
			ToUserID:  "user-9",
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
	})
	store.SetVote(delegationentities.VoteProjection{
		VoteID:            "vote-1",
		TopicID:           "topic-1",
		Status:            delegationentities.VoteStatusOpen,
		DelegationAllowed: true,
	})
	store.SetTopicMember("topic-1", "user-1")

	sub := &stubSubscriber{}
	consumer := delegationworkers.MembershipRevocationConsumer{
		Subscriber:  sub,
		Dedup:       store,
		Delegations: store,
		Outbox:      store,
		Clock:       fixedClock{now: now},
		IDGen:       store,
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start membership revocation consumer failed: %v", err)
	}
	handler := sub.handlers["membership.revoked"]
	if handler == nil {
		t.Fatalf("expected membership.revoked handler registration")
	}

	payload, _ := json.Marshal(map[string]any{
		"topic_id": "topic-1",
		"user_id":  "user-9",
	})
	envelope := delegationports.EventEnvelope{
		EventID:   "event-membership-revoked-1",
		EventType: "membership.revoked",
		Data:      payload,
	}
	if err := handler(context.Background(), envelope); err != nil {
		t.Fatalf("membership.revoked handler failed: %v", err)
	}

	edges, err := store.ListDelegationsByVote(context.Background(), "vote-1")
	if err != nil {
		t.Fatalf("list delegations after revocation failed: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected inbound delegations removed, got %d edges", len(edges))
	}

	outbox, err := store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list delegation outbox failed: %v", err)
	}
	foundRemoved := false
	for _, message := range outbox {
		var event struct {
			EventType string `json:"event_type"`
			Data      struct {
				Reason string `json:"reason"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message.Payload, &event); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		if event.EventType == "delegation.removed" {
			foundRemoved = true
			if event.Data.Reason != "delegate_access_revoked" {
				t.Fatalf("expected revocation reason, got %q", event.Data.Reason)
			}
		}
	}
	if !foundRemoved {
		t.Fatalf("expected delegation.removed event in outbox")
	}

	// Redelivery of the same event id must be a no-op.
	before := len(outbox)
	if err := handler(context.Background(), envelope); err != nil {
		t.Fatalf("membership.revoked replay failed: %v", err)
	}
	outbox, err = store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list delegation outbox after replay failed: %v", err)
	}
	if len(outbox) != before {
		t.Fatalf("expected replay to emit nothing, outbox grew from %d to %d", before, len(outbox))
	}
}
