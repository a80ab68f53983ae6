package events

import (
	contractsv1 "agora/contracts/gen/events/v1"
)

// Envelope re-exports the canonical versioned event contract for platform
// code. Module ports alias the same type, so broker, relays and consumers
// all speak one envelope without cross-context imports.
type Envelope = contractsv1.Envelope
