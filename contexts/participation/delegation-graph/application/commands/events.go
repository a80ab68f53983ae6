package commands

import (
	"encoding/json"
	"time"

	"agora/contexts/participation/delegation-graph/ports"
)

func newDelegationEnvelope(
	eventID string,
	eventType string,
	voteID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Delegation events are partitioned by vote for stable ordering on
	// vote-scoped consumers.
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
