package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/participation/delegation-graph/application"
	"agora/contexts/participation/delegation-graph/domain/entities"
	domainerrors "agora/contexts/participation/delegation-graph/domain/errors"
	"agora/contexts/participation/delegation-graph/ports"
)

// SetDelegationCommand is the write-model input for creating or replacing a
// voter's outgoing edge.
type SetDelegationCommand struct {
	VoteID   string
	ByUserID string
	ToUserID string
}

type SetDelegationResult struct {
	Delegation entities.Delegation
	Replaced   bool
}

type DeleteDelegationCommand struct {
	VoteID   string
	ByUserID string
}

// DelegationUseCase orchestrates delegation writes: open-vote and access
// validation up front, then a commit-time acyclicity check inside the
// repository's per-vote serialization.
type DelegationUseCase struct {
	Delegations ports.DelegationRepository
	Votes       ports.VoteCatalog
	Oracle      ports.MembershipOracle
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

// SetDelegation replaces any prior outgoing edge for the delegating voter.
// Replacement is silent: no delete-then-create round trip is required.
func (uc DelegationUseCase) SetDelegation(ctx context.Context, cmd SetDelegationCommand) (SetDelegationResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	byUserID := strings.TrimSpace(cmd.ByUserID)
	toUserID := strings.TrimSpace(cmd.ToUserID)
	logger.Info("delegation set processing started",
		"event", "delegation_set_started",
		"module", "participation/delegation-graph",
		"layer", "application",
		"vote_id", voteID,
		"by_user_id", byUserID,
		"to_user_id", toUserID,
	)
	if voteID == "" || byUserID == "" || toUserID == "" {
		logger.Warn("delegation set validation failed",
			"event", "delegation_set_validation_failed",
			"module", "participation/delegation-graph",
			"layer", "application",
			"vote_id", voteID,
			"by_user_id", byUserID,
		)
		return SetDelegationResult{}, domainerrors.ErrInvalidDelegationInput
	}
	if strings.EqualFold(byUserID, toUserID) {
		logger.Warn("delegation set rejected self edge",
			"event", "delegation_set_self_rejected",
			"module", "participation/delegation-graph",
			"layer", "application",
			"vote_id", voteID,
			"by_user_id", byUserID,
		)
		return SetDelegationResult{}, domainerrors.ErrSelfDelegation
	}

	now := uc.now()
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return SetDelegationResult{}, err
	}
	if !vote.DelegationAllowed {
		return SetDelegationResult{}, domainerrors.ErrDelegationNotAllowed
	}
	if !vote.AcceptsWrites(now) {
		return SetDelegationResult{}, domainerrors.ErrVoteNotOpen
	}

	hasAccess, err := uc.Oracle.HasTopicAccess(ctx, vote.TopicID, toUserID)
	if err != nil {
		logger.Error("delegation set access check failed",
			"event", "delegation_set_access_check_failed",
			"module", "participation/delegation-graph",
			"layer", "application",
			"vote_id", voteID,
			"to_user_id", toUserID,
			"error", err.Error(),
		)
		return SetDelegationResult{}, err
	}
	if !hasAccess {
		return SetDelegationResult{}, domainerrors.ErrDelegateNoAccess
	}

	maxDepth, err := uc.Oracle.CountEligibleVoters(ctx, vote.TopicID)
	if err != nil {
		return SetDelegationResult{}, err
	}

	_, replaced, err := uc.Delegations.GetDelegation(ctx, voteID, byUserID)
	if err != nil {
		return SetDelegationResult{}, err
	}

	delegation := entities.Delegation{
		VoteID:    voteID,
		ByUserID:  byUserID,
		ToUserID:  toUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Delegations.ReplaceDelegation(ctx, delegation, maxDepth); err != nil {
		if err == domainerrors.ErrCyclicDelegation {
			logger.Warn("delegation set rejected cyclic edge",
				"event", "delegation_set_cycle_rejected",
				"module", "participation/delegation-graph",
				"layer", "application",
				"vote_id", voteID,
				"by_user_id", byUserID,
				"to_user_id", toUserID,
			)
		}
		return SetDelegationResult{}, err
	}

	if err := uc.appendDelegationEvent(ctx, "delegation.set", delegation, now, map[string]any{
		"replaced": replaced,
	}); err != nil {
		return SetDelegationResult{}, err
	}

	logger.Info("delegation set",
		"event", "delegation_set",
		"module", "participation/delegation-graph",
		"layer", "application",
		"vote_id", voteID,
		"by_user_id", byUserID,
		"to_user_id", toUserID,
		"replaced", replaced,
	)
	return SetDelegationResult{Delegation: delegation, Replaced: replaced}, nil
}

// DeleteDelegation removes the voter's outgoing edge. Removing an absent
// edge succeeds without effect.
func (uc DelegationUseCase) DeleteDelegation(ctx context.Context, cmd DeleteDelegationCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	byUserID := strings.TrimSpace(cmd.ByUserID)
	logger.Info("delegation delete processing started",
		"event", "delegation_delete_started",
		"module", "participation/delegation-graph",
		"layer", "application",
		"vote_id", voteID,
		"by_user_id", byUserID,
	)
	if voteID == "" || byUserID == "" {
		return domainerrors.ErrInvalidDelegationInput
	}

	now := uc.now()
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return err
	}
	if !vote.AcceptsWrites(now) {
		return domainerrors.ErrVoteNotOpen
	}

	removed, err := uc.Delegations.RemoveDelegation(ctx, voteID, byUserID)
	if err != nil {
		return err
	}
	if !removed {
		logger.Info("delegation delete found no edge",
			"event", "delegation_delete_noop",
			"module", "participation/delegation-graph",
			"layer", "application",
			"vote_id", voteID,
			"by_user_id", byUserID,
		)
		return nil
	}

	if err := uc.appendDelegationEvent(ctx, "delegation.removed", entities.Delegation{
		VoteID:    voteID,
		ByUserID:  byUserID,
		UpdatedAt: now,
	}, now, map[string]any{
		"reason": "voter_request",
	}); err != nil {
		return err
	}

	logger.Info("delegation removed",
		"event", "delegation_removed",
		"module", "participation/delegation-graph",
		"layer", "application",
		"vote_id", voteID,
		"by_user_id", byUserID,
	)
	return nil
}

func (uc DelegationUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc DelegationUseCase) appendDelegationEvent(
	ctx context.Context,
	eventType string,
	delegation entities.Delegation,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"vote_id":     delegation.VoteID,
		"by_user_id":  delegation.ByUserID,
		"to_user_id":  delegation.ToUserID,
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newDelegationEnvelope(eventID, eventType, delegation.VoteID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
