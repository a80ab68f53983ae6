package commands

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "agora/contexts/participation/tally-engine/application"
	"agora/contexts/participation/tally-engine/domain/entities"
	domainerrors "agora/contexts/participation/tally-engine/domain/errors"
	"agora/contexts/participation/tally-engine/ports"
)

// CastBallotCommand is the write-model input for a direct ballot. A user
// always votes as themselves; delegation never redirects a cast.
type CastBallotCommand struct {
	VoteID    string
	VoterID   string
	OptionIDs []string
	AuthType  entities.AuthType
	// SignedContainerRef is set by the signing orchestrator for hard casts.
	SignedContainerRef string
}

type CastBallotResult struct {
	Ballot   entities.Ballot
	Replaced bool
}

// BallotUseCase owns the one-ballot-per-voter upsert path. Both the soft
// HTTP cast and the signing orchestrator's hard cast land here.
type BallotUseCase struct {
	Votes   ports.VoteRepository
	Ballots ports.BallotRepository
	Oracle  ports.MembershipOracle
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func (uc BallotUseCase) CastBallot(ctx context.Context, cmd CastBallotCommand) (CastBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("ballot cast processing started",
		"event", "tally_ballot_cast_started",
		"module", "participation/tally-engine",
		"layer", "application",
		"vote_id", voteID,
		"voter_id", voterID,
		"auth_type", string(cmd.AuthType),
	)
	if voteID == "" || voterID == "" {
		return CastBallotResult{}, domainerrors.ErrInvalidVoteInput
	}

	optionIDs := dedupeOptionIDs(cmd.OptionIDs)
	if len(optionIDs) == 0 {
		return CastBallotResult{}, domainerrors.ErrInvalidChoiceCount
	}

	now := uc.now()
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return CastBallotResult{}, err
	}
	if !vote.AcceptsVotes(now) {
		logger.Warn("ballot cast rejected on closed vote",
			"event", "tally_ballot_cast_vote_closed",
			"module", "participation/tally-engine",
			"layer", "application",
			"vote_id", voteID,
			"voter_id", voterID,
		)
		return CastBallotResult{}, domainerrors.ErrVoteNotOpen
	}
	if vote.AuthType == entities.AuthTypeHard && cmd.AuthType != entities.AuthTypeHard {
		return CastBallotResult{}, domainerrors.ErrHardAuthRequired
	}
	if len(optionIDs) < vote.MinChoices || len(optionIDs) > vote.MaxChoices {
		return CastBallotResult{}, domainerrors.ErrInvalidChoiceCount
	}
	for _, optionID := range optionIDs {
		if !vote.HasOption(optionID) {
			return CastBallotResult{}, domainerrors.ErrUnknownOption
		}
	}

	hasAccess, err := uc.Oracle.HasTopicAccess(ctx, vote.TopicID, voterID)
	if err != nil {
		logger.Error("ballot cast access check failed",
			"event", "tally_ballot_cast_access_check_failed",
			"module", "participation/tally-engine",
			"layer", "application",
			"vote_id", voteID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return CastBallotResult{}, err
	}
	if !hasAccess {
		return CastBallotResult{}, domainerrors.ErrNoTopicAccess
	}

	existing, replaced, err := uc.Ballots.GetBallot(ctx, voteID, voterID)
	if err != nil {
		return CastBallotResult{}, err
	}

	ballot := entities.Ballot{
		VoteID:    voteID,
		VoterID:   voterID,
		OptionIDs: optionIDs,
		AuthType:  cmd.AuthType,
		CastAt:    now,
		UpdatedAt: now,
	}
	if replaced {
		ballot.BallotID = existing.BallotID
		ballot.CastAt = existing.CastAt
	} else {
		ballotID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CastBallotResult{}, err
		}
		ballot.BallotID = ballotID
	}
	if err := uc.Ballots.SaveBallot(ctx, ballot); err != nil {
		return CastBallotResult{}, err
	}

	eventData := map[string]any{
		"vote_id":     voteID,
		"voter_id":    voterID,
		"auth_type":   string(cmd.AuthType),
		"option_ids":  optionIDs,
		"replaced":    replaced,
		"occurred_at": now.Format(time.RFC3339),
	}
	if strings.TrimSpace(cmd.SignedContainerRef) != "" {
		eventData["container_ref"] = strings.TrimSpace(cmd.SignedContainerRef)
	}
	if uc.Outbox != nil {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CastBallotResult{}, err
		}
		envelope, err := newTallyEnvelope(eventID, "ballot.cast", voteID, now, eventData)
		if err != nil {
			return CastBallotResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return CastBallotResult{}, err
		}
	}

	logger.Info("ballot cast",
		"event", "tally_ballot_cast",
		"module", "participation/tally-engine",
		"layer", "application",
		"vote_id", voteID,
		"voter_id", voterID,
		"auth_type", string(cmd.AuthType),
		"option_count", len(optionIDs),
		"replaced", replaced,
	)
	return CastBallotResult{Ballot: ballot, Replaced: replaced}, nil
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func dedupeOptionIDs(optionIDs []string) []string {
	seen := make(map[string]bool, len(optionIDs))
	items := make([]string, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		optionID = strings.TrimSpace(optionID)
		if optionID == "" || seen[optionID] {
			continue
		}
		seen[optionID] = true
		items = append(items, optionID)
	}
	sort.Strings(items)
	return items
}
