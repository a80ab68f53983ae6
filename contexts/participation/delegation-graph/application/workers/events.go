package workers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"agora/contexts/participation/delegation-graph/ports"
)

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// newDelegationEnvelope builds canonical envelopes for worker-produced events.
func newDelegationEnvelope(
	eventID string,
	eventType string,
	voteID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "delegation-graph",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "vote_id",
		PartitionKey:     voteID,
		Data:             payload,
	}, nil
}
