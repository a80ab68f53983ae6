package tallyadapter

import (
	"context"

	"agora/contexts/participation/signing-orchestrator/ports"
	tallycommands "agora/contexts/participation/tally-engine/application/commands"
	tallyentities "agora/contexts/participation/tally-engine/domain/entities"
)

// Caster adapts the tally engine's cast path to the orchestrator's ballot
// port. Hard ballots land through the same upsert as soft ones.
type Caster struct {
	Ballots tallycommands.BallotUseCase
}

func (c Caster) CastHardBallot(
	ctx context.Context,
	voteID string,
	voterID string,
	optionIDs []string,
	containerRef string,
) error {
	_, err := c.Ballots.CastBallot(ctx, tallycommands.CastBallotCommand{
		VoteID:             voteID,
		VoterID:            voterID,
		OptionIDs:          optionIDs,
		AuthType:           tallyentities.AuthTypeHard,
		SignedContainerRef: containerRef,
	})
	return err
}

var _ ports.BallotCaster = Caster{}
