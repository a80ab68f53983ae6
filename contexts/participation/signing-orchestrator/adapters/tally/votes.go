package tallyadapter

import (
	"context"

	"agora/contexts/participation/signing-orchestrator/domain/entities"
	"agora/contexts/participation/signing-orchestrator/ports"
	tallyqueries "agora/contexts/participation/tally-engine/application/queries"
)

// VoteCatalog projects the tally engine's vote catalog into the slice the
// orchestrator needs.
type VoteCatalog struct {
	Results tallyqueries.ResultsUseCase
}

func (c VoteCatalog) GetVote(ctx context.Context, voteID string) (entities.VoteProjection, error) {
	vote, err := c.Results.GetVote(ctx, voteID)
	if err != nil {
		return entities.VoteProjection{}, err
	}
	return entities.VoteProjection{
		VoteID:   vote.VoteID,
		TopicID:  vote.TopicID,
		Status:   string(vote.Status),
		AuthType: string(vote.AuthType),
		EndsAt:   vote.EndsAt,
	}, nil
}

var _ ports.VoteCatalog = VoteCatalog{}
