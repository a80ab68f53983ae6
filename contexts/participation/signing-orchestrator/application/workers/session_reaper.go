package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "agora/contexts/participation/signing-orchestrator/application"
	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	"agora/contexts/participation/signing-orchestrator/ports"
)

// SessionReaper sweeps pending signing sessions whose polling window has
// closed and transitions them to failed/timeout. Lazy expiry on poll reads
// covers sessions that are still being polled; the reaper covers abandoned
// ones.
type SessionReaper struct {
	Sessions  ports.SessionRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Disabled  bool
	Logger    *slog.Logger
}

func (r SessionReaper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	if r.Disabled {
		return nil
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	expired, err := r.Sessions.ListExpiredPending(ctx, now, limit)
	if err != nil {
		logger.Error("signing session reap list failed",
			"event", "signing_reaper_list_failed",
			"module", "participation/signing-orchestrator",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, session := range expired {
		session.Status = entities.StatusFailed
		session.FailureCode = domainerrors.ProviderCodeTimeout
		session.UpdatedAt = now
		if err := r.Sessions.UpdateSession(ctx, session); err != nil {
			return err
		}
		if err := r.appendTimeoutEvent(ctx, session, now); err != nil {
			return err
		}
		logger.Info("signing session reaped",
			"event", "signing_session_reaped",
			"module", "participation/signing-orchestrator",
			"layer", "worker",
			"session_id", session.SessionID,
			"vote_id", session.VoteID,
			"user_id", session.UserID,
		)
	}
	return nil
}

func (r SessionReaper) appendTimeoutEvent(ctx context.Context, session entities.SigningSession, now time.Time) error {
	if r.Outbox == nil {
		return nil
	}
	eventID, err := r.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"session_id":   session.SessionID,
		"vote_id":      session.VoteID,
		"user_id":      session.UserID,
		"method":       string(session.Method),
		"status":       string(session.Status),
		"failure_code": session.FailureCode,
		"occurred_at":  now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return r.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "signing.session.failed",
		OccurredAt:       now,
		SourceService:    "signing-orchestrator",
		SchemaVersion:    1,
		PartitionKeyPath: "vote_id",
		PartitionKey:     session.VoteID,
		Data:             payload,
	})
}
