package commands

import (
	"encoding/json"
	"time"

	"agora/contexts/participation/tally-engine/ports"
)

func newTallyEnvelope(
	eventID string,
	eventType string,
	voteID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by vote for stable ordering on
	// vote-scoped consumers.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "tally-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "vote_id",
		PartitionKey:     voteID,
		Data:             payload,
	}, nil
}
