package outbox

import "time"

// Message is the shape of an outbox row persisted inside the same DB
// transaction as the state change it announces. Each module keeps its own
// outbox table; the worker relays read pending rows and publish to the bus.
type Message struct {
	ID           string
	EventType    string
	PartitionKey string
	Payload      []byte
	Status       string // pending, published
	CreatedAt    time.Time
	PublishedAt  *time.Time
}
