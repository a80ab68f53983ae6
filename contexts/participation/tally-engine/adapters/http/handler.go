package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/participation/tally-engine/application/commands"
	"agora/contexts/participation/tally-engine/application/queries"
	"agora/contexts/participation/tally-engine/domain/entities"
	domainerrors "agora/contexts/participation/tally-engine/domain/errors"
	httptransport "agora/contexts/participation/tally-engine/transport/http"
)

type Handler struct {
	Votes   commands.VoteUseCase
	Ballots commands.BallotUseCase
	Results queries.ResultsUseCase
	Logger  *slog.Logger
}

func (h Handler) CreateVoteHandler(
	ctx context.Context,
	req httptransport.CreateVoteRequest,
) (httptransport.VoteResponse, error) {
	var endsAt *time.Time
	if trimmed := strings.TrimSpace(req.EndsAt); trimmed != "" {
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return httptransport.VoteResponse{}, domainerrors.ErrInvalidVoteInput
		}
		utc := parsed.UTC()
		endsAt = &utc
	}
	result, err := h.Votes.CreateVote(ctx, commands.CreateVoteCommand{
		TopicID:           req.TopicID,
		MinChoices:        req.MinChoices,
		MaxChoices:        req.MaxChoices,
		DelegationAllowed: req.DelegationAllowed,
		AuthType:          entities.AuthType(strings.TrimSpace(req.AuthType)),
		EndsAt:            endsAt,
		Description:       req.Description,
		OptionValues:      req.Options,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return voteResponseFromEntity(result.Vote), nil
}

func (h Handler) GetVoteHandler(ctx context.Context, voteID string) (httptransport.VoteResponse, error) {
	vote, err := h.Results.GetVote(ctx, voteID)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return voteResponseFromEntity(vote), nil
}

func (h Handler) CastBallotHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.CastBallotRequest,
) (httptransport.BallotResponse, error) {
	result, err := h.Ballots.CastBallot(ctx, commands.CastBallotCommand{
		VoteID:    voteID,
		VoterID:   userID,
		OptionIDs: req.OptionIDs,
		AuthType:  entities.AuthTypeSoft,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{
		BallotID:  result.Ballot.BallotID,
		VoteID:    result.Ballot.VoteID,
		VoterID:   result.Ballot.VoterID,
		OptionIDs: result.Ballot.OptionIDs,
		AuthType:  string(result.Ballot.AuthType),
		Replaced:  result.Replaced,
	}, nil
}

func (h Handler) GetResultsHandler(ctx context.Context, voteID string) (httptransport.VoteResultsResponse, error) {
	results, err := h.Results.ComputeResults(ctx, voteID)
	if err != nil {
		return httptransport.VoteResultsResponse{}, err
	}
	options := make([]httptransport.OptionResultResponse, 0, len(results.Options))
	for _, option := range results.Options {
		options = append(options, httptransport.OptionResultResponse{
			OptionID: option.OptionID,
			Value:    option.Value,
			Count:    option.Count,
		})
	}
	return httptransport.VoteResultsResponse{
		VoteID:         results.VoteID,
		EligibleVoters: results.EligibleVoters,
		BallotsCounted: results.BallotsCounted,
		Options:        options,
	}, nil
}

func voteResponseFromEntity(vote entities.Vote) httptransport.VoteResponse {
	options := make([]httptransport.VoteOptionResponse, 0, len(vote.Options))
	for _, option := range vote.Options {
		options = append(options, httptransport.VoteOptionResponse{
			OptionID: option.OptionID,
			Value:    option.Value,
		})
	}
	response := httptransport.VoteResponse{
		VoteID:            vote.VoteID,
		TopicID:           vote.TopicID,
		MinChoices:        vote.MinChoices,
		MaxChoices:        vote.MaxChoices,
		DelegationAllowed: vote.DelegationAllowed,
		AuthType:          string(vote.AuthType),
		Description:       vote.Description,
		Status:            string(vote.Status),
		Options:           options,
	}
	if vote.EndsAt != nil {
		response.EndsAt = vote.EndsAt.UTC().Format(time.RFC3339)
	}
	return response
}
