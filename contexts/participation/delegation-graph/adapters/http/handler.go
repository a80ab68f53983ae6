package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agora/contexts/participation/delegation-graph/application/commands"
	"agora/contexts/participation/delegation-graph/application/queries"
	httptransport "agora/contexts/participation/delegation-graph/transport/http"
)

type Handler struct {
	Delegations commands.DelegationUseCase
	Resolver    queries.ResolveUseCase
	Logger      *slog.Logger
}

func (h Handler) SetDelegationHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.SetDelegationRequest,
) (httptransport.DelegationResponse, error) {
	result, err := h.Delegations.SetDelegation(ctx, commands.SetDelegationCommand{
		VoteID:   voteID,
		ByUserID: userID,
		ToUserID: req.ToUserID,
	})
	if err != nil {
		return httptransport.DelegationResponse{}, err
	}
	return httptransport.DelegationResponse{
		VoteID:   result.Delegation.VoteID,
		ByUserID: result.Delegation.ByUserID,
		ToUserID: result.Delegation.ToUserID,
		Replaced: result.Replaced,
	}, nil
}

func (h Handler) DeleteDelegationHandler(ctx context.Context, voteID string, userID string) error {
	return h.Delegations.DeleteDelegation(ctx, commands.DeleteDelegationCommand{
		VoteID:   voteID,
		ByUserID: userID,
	})
}

func (h Handler) ListDelegationsHandler(ctx context.Context, voteID string) (httptransport.DelegationListResponse, error) {
	edges, err := h.Resolver.ListDelegations(ctx, voteID)
	if err != nil {
		return httptransport.DelegationListResponse{}, err
	}
	items := make([]httptransport.DelegationItem, 0, len(edges))
	for _, edge := range edges {
		items = append(items, httptransport.DelegationItem{
			ByUserID:  edge.ByUserID,
			ToUserID:  edge.ToUserID,
			CreatedAt: edge.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.DelegationListResponse{
		VoteID: voteID,
		Items:  items,
	}, nil
}
