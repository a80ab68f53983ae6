package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/participation/delegation-graph/application"
	"agora/contexts/participation/delegation-graph/ports"
)

const (
	membershipRevokedTopic = "membership.revoked"
	defaultMembershipCG    = "delegation-graph-membership-cg"
)

// MembershipRevocationConsumer reacts to membership revocations published by
// the group service and drops delegation edges whose target lost topic
// access. The removal is a notification-driven cleanup, not a guarantee the
// core enforces synchronously.
type MembershipRevocationConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Delegations   ports.DelegationRepository
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c MembershipRevocationConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("membership revocation consumer disabled by feature flag",
			"event", "delegation_membership_consumer_disabled",
			"module", "participation/delegation-graph",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultMembershipCG
	}
	if err := c.Subscriber.Subscribe(ctx, membershipRevokedTopic, group, c.handleMembershipRevoked); err != nil {
		logger.Error("membership revocation consumer subscribe failed",
			"event", "delegation_membership_consumer_subscribe_failed",
			"module", "participation/delegation-graph",
			"layer", "worker",
			"topic", membershipRevokedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("membership revocation consumer subscription active",
		"event", "delegation_membership_consumer_started",
		"module", "participation/delegation-graph",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c MembershipRevocationConsumer) handleMembershipRevoked(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if alreadyProcessed, err := c.reserveEvent(ctx, event); err != nil {
		return err
	} else if alreadyProcessed {
		logger.Debug("membership.revoked replay skipped",
			"event", "delegation_membership_revoked_replayed",
			"module", "participation/delegation-graph",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		TopicID string `json:"topic_id"`
		UserID  string `json:"user_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("membership.revoked payload decode failed",
			"event", "delegation_membership_revoked_decode_failed",
			"module", "participation/delegation-graph",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	now := c.now()
	removed, err := c.Delegations.RemoveDelegationsToUser(ctx, payload.TopicID, payload.UserID, now)
	if err != nil {
		logger.Error("membership.revoked edge removal failed",
			"event", "delegation_membership_revoked_removal_failed",
			"module", "participation/delegation-graph",
			"layer", "worker",
			"topic_id", payload.TopicID,
			"user_id", payload.UserID,
			"error", err.Error(),
		)
		return err
	}

	for _, edge := range removed {
		eventID, err := c.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newDelegationEnvelope(eventID, "delegation.removed", edge.VoteID, now, map[string]any{
			"vote_id":     edge.VoteID,
			"by_user_id":  edge.ByUserID,
			"to_user_id":  edge.ToUserID,
			"reason":      "delegate_access_revoked",
			"occurred_at": now.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if c.Outbox != nil {
			if err := c.Outbox.AppendOutbox(ctx, envelope); err != nil {
				return err
			}
		}
	}

	logger.Info("membership revocation processed",
		"event", "delegation_membership_revoked_processed",
		"module", "participation/delegation-graph",
		"layer", "worker",
		"topic_id", payload.TopicID,
		"user_id", payload.UserID,
		"removed_count", len(removed),
	)
	return nil
}

func (c MembershipRevocationConsumer) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	if c.Dedup == nil {
		return false, nil
	}
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(ttl))
}

func (c MembershipRevocationConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}
