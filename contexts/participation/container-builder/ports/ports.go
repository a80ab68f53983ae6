package ports

import (
	"context"
	"time"

	"agora/contexts/participation/container-builder/domain/entities"
)

// BuildRequest scopes one container to a single voter's cast in a single
// vote.
type BuildRequest struct {
	TopicID   string
	VoteID    string
	UserID    string
	OptionIDs []string
}

type ArtifactStore interface {
	SaveContainer(ctx context.Context, container entities.SignedContainer) error
	GetContainer(ctx context.Context, containerRef string) (entities.SignedContainer, error)
}

// OptionCatalog resolves chosen option ids to their display values for the
// human-readable ballot document.
type OptionCatalog interface {
	ListOptionValues(ctx context.Context, voteID string, optionIDs []string) ([]string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
