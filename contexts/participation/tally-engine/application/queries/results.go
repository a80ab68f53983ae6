package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "agora/contexts/participation/tally-engine/application"
	"agora/contexts/participation/tally-engine/domain/entities"
	domainerrors "agora/contexts/participation/tally-engine/domain/errors"
	"agora/contexts/participation/tally-engine/ports"
)

// ResultsUseCase computes per-option tallies. Pure reads: it reflects
// whatever ballots and delegations were last committed at read time and is
// safe to run repeatedly and concurrently with writers.
type ResultsUseCase struct {
	Votes    ports.VoteRepository
	Ballots  ports.BallotRepository
	Oracle   ports.MembershipOracle
	Resolver ports.DelegationResolver
	Logger   *slog.Logger
}

// ComputeResults determines every eligible user's effective ballot: their
// own direct ballot when present, otherwise the direct ballot of their
// resolved final voter, otherwise no contribution. Each user counts at most
// once per option regardless of chain length or multi-choice ballots.
//
// A resolver integrity failure (chain past the eligible voter bound) is
// fatal for the tally: the result is withheld, never silently wrong.
func (uc ResultsUseCase) ComputeResults(ctx context.Context, voteID string) (entities.VoteResults, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID = strings.TrimSpace(voteID)
	if voteID == "" {
		return entities.VoteResults{}, domainerrors.ErrInvalidVoteInput
	}

	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return entities.VoteResults{}, err
	}
	eligible, err := uc.Oracle.ListEligibleVoters(ctx, vote.TopicID)
	if err != nil {
		return entities.VoteResults{}, err
	}
	ballots, err := uc.Ballots.ListBallotsByVote(ctx, voteID)
	if err != nil {
		return entities.VoteResults{}, err
	}
	ballotsByVoter := make(map[string]entities.Ballot, len(ballots))
	for _, ballot := range ballots {
		ballotsByVoter[ballot.VoterID] = ballot
	}

	counts := make(map[string]int, len(vote.Options))
	counted := 0
	for _, userID := range eligible {
		ballot, ok := ballotsByVoter[userID]
		if !ok && vote.DelegationAllowed {
			finalVoter, err := uc.Resolver.ResolveFinalVoter(ctx, voteID, userID)
			if err != nil {
				if errors.Is(err, ports.ErrDelegationDepthExceeded) {
					logger.Error("tally withheld after delegation integrity failure",
						"event", "tally_results_integrity_failure",
						"module", "participation/tally-engine",
						"layer", "application",
						"vote_id", voteID,
						"user_id", userID,
						"error", err.Error(),
					)
					return entities.VoteResults{}, domainerrors.ErrTallyIntegrity
				}
				return entities.VoteResults{}, err
			}
			ballot, ok = ballotsByVoter[finalVoter]
		}
		if !ok {
			continue
		}
		counted++
		for _, optionID := range ballot.OptionIDs {
			counts[optionID]++
		}
	}

	options := make([]entities.OptionResult, 0, len(vote.Options))
	for _, option := range vote.Options {
		options = append(options, entities.OptionResult{
			OptionID: option.OptionID,
			Value:    option.Value,
			Count:    counts[option.OptionID],
		})
	}

	return entities.VoteResults{
		VoteID:         voteID,
		EligibleVoters: len(eligible),
		BallotsCounted: counted,
		Options:        options,
	}, nil
}

// GetVote reads a single vote definition.
func (uc ResultsUseCase) GetVote(ctx context.Context, voteID string) (entities.Vote, error) {
	voteID = strings.TrimSpace(voteID)
	if voteID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidVoteInput
	}
	return uc.Votes.GetVote(ctx, voteID)
}
