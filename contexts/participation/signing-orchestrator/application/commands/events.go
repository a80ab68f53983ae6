package commands

import (
	"context"
	"encoding/json"
	"time"

	"agora/contexts/participation/signing-orchestrator/domain/entities"
	"agora/contexts/participation/signing-orchestrator/ports"
)

const (
	sourceService    = "signing-orchestrator"
	schemaVersion    = 1
	partitionKeyPath = "vote_id"
)

func (uc SigningUseCase) appendSessionEvent(
	ctx context.Context,
	eventType string,
	session entities.SigningSession,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"session_id":  session.SessionID,
		"vote_id":     session.VoteID,
		"user_id":     session.UserID,
		"method":      string(session.Method),
		"status":      string(session.Status),
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt,
		SourceService:    sourceService,
		SchemaVersion:    schemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     session.VoteID,
		Data:             payload,
	})
}
