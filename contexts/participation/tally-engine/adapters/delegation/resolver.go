package delegationadapter

import (
	"context"
	"errors"

	"agora/contexts/participation/delegation-graph/application/queries"
	delegationerrors "agora/contexts/participation/delegation-graph/domain/errors"
	"agora/contexts/participation/tally-engine/ports"
)

// Resolver bridges the delegation-graph module into the tally engine's
// resolver port, translating the depth-bound error into the port contract.
type Resolver struct {
	Graph queries.ResolveUseCase
}

func (r Resolver) ResolveFinalVoter(ctx context.Context, voteID string, userID string) (string, error) {
	finalVoter, err := r.Graph.ResolveFinalVoter(ctx, voteID, userID)
	if err != nil {
		if errors.Is(err, delegationerrors.ErrDelegationDepthExceeded) {
			return "", ports.ErrDelegationDepthExceeded
		}
		return "", err
	}
	return finalVoter, nil
}

var _ ports.DelegationResolver = Resolver{}
