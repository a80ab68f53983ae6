package workers

import (
	"context"
	"log/slog"
	"time"

	application "agora/contexts/participation/tally-engine/application"
	"agora/contexts/participation/tally-engine/ports"
)

// DeadlineSweeper closes open votes whose ends_at crossed the clock and
// emits vote.closed through the outbox.
type DeadlineSweeper struct {
	Votes    ports.VoteRepository
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Disabled bool
	Logger   *slog.Logger
}

func (s DeadlineSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	if s.Disabled {
		return nil
	}
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	closed, err := s.Votes.CloseVotesPastDeadline(ctx, now)
	if err != nil {
		logger.Error("vote deadline sweep failed",
			"event", "tally_deadline_sweep_failed",
			"module", "participation/tally-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(closed) == 0 {
		return nil
	}

	for _, vote := range closed {
		if s.Outbox == nil {
			continue
		}
		eventID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newTallyEnvelope(eventID, "vote.closed", vote.VoteID, now, map[string]any{
			"vote_id":     vote.VoteID,
			"topic_id":    vote.TopicID,
			"occurred_at": now.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := s.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
	}

	logger.Info("vote deadline sweep completed",
		"event", "tally_deadline_sweep_completed",
		"module", "participation/tally-engine",
		"layer", "worker",
		"closed_count", len(closed),
	)
	return nil
}
