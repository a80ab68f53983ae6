package queries

import (
	"context"
	"strings"

	"agora/contexts/participation/delegation-graph/domain/entities"
	domainerrors "agora/contexts/participation/delegation-graph/domain/errors"
	"agora/contexts/participation/delegation-graph/ports"
)

// ResolveUseCase walks delegation chains for reads. It never mutates the
// graph and is safe under concurrent writers.
type ResolveUseCase struct {
	Delegations ports.DelegationRepository
	Votes       ports.VoteCatalog
	Oracle      ports.MembershipOracle
}

// ResolveFinalVoter follows outgoing edges from the user until a node with no
// outgoing edge. The walk is bounded by the vote's eligible voter count; a
// longer chain means a cycle escaped write-time prevention and the walk fails
// instead of looping.
func (uc ResolveUseCase) ResolveFinalVoter(ctx context.Context, voteID string, userID string) (string, error) {
	voteID = strings.TrimSpace(voteID)
	userID = strings.TrimSpace(userID)
	if voteID == "" || userID == "" {
		return "", domainerrors.ErrInvalidDelegationInput
	}

	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return "", err
	}
	maxDepth, err := uc.Oracle.CountEligibleVoters(ctx, vote.TopicID)
	if err != nil {
		return "", err
	}

	current := userID
	for step := 0; ; step++ {
		if step > maxDepth {
			return "", domainerrors.ErrDelegationDepthExceeded
		}
		edge, found, err := uc.Delegations.GetDelegation(ctx, voteID, current)
		if err != nil {
			return "", err
		}
		if !found {
			return current, nil
		}
		current = edge.ToUserID
	}
}

// ListDelegations returns every edge of the vote, oldest first.
func (uc ResolveUseCase) ListDelegations(ctx context.Context, voteID string) ([]entities.Delegation, error) {
	voteID = strings.TrimSpace(voteID)
	if voteID == "" {
		return nil, domainerrors.ErrInvalidDelegationInput
	}
	return uc.Delegations.ListDelegationsByVote(ctx, voteID)
}
