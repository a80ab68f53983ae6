package entities

import "time"

// SignedContainer is a finalized ballot container at rest. Scope fields are
// kept alongside the payload so download tokens can be validated without a
// session.
type SignedContainer struct {
	ContainerRef string
	TopicID      string
	VoteID       string
	UserID       string
	FileName     string
	MimeType     string
	Payload      []byte
	CreatedAt    time.Time
}
