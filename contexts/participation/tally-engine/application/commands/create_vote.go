package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/participation/tally-engine/application"
	"agora/contexts/participation/tally-engine/domain/entities"
	domainerrors "agora/contexts/participation/tally-engine/domain/errors"
	"agora/contexts/participation/tally-engine/ports"
)

// CreateVoteCommand is the write-model input for attaching a ballot
// definition to a topic entering its voting phase.
type CreateVoteCommand struct {
	TopicID           string
	MinChoices        int
	MaxChoices        int
	DelegationAllowed bool
	AuthType          entities.AuthType
	EndsAt            *time.Time
	Description       string
	OptionValues      []string
}

type CreateVoteResult struct {
	Vote entities.Vote
}

// VoteUseCase owns vote catalog writes.
type VoteUseCase struct {
	Votes  ports.VoteRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// CreateVote validates the option set and choice bounds and persists the
// vote with status open. Hard-auth votes additionally reject near-duplicate
// option values, since those end up in a legally binding signed container.
func (uc VoteUseCase) CreateVote(ctx context.Context, cmd CreateVoteCommand) (CreateVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	topicID := strings.TrimSpace(cmd.TopicID)
	logger.Info("vote create processing started",
		"event", "tally_vote_create_started",
		"module", "participation/tally-engine",
		"layer", "application",
		"topic_id", topicID,
		"auth_type", string(cmd.AuthType),
	)
	if topicID == "" {
		return CreateVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if cmd.AuthType != entities.AuthTypeSoft && cmd.AuthType != entities.AuthTypeHard {
		return CreateVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if cmd.MinChoices < 1 || cmd.MinChoices > cmd.MaxChoices {
		return CreateVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	values := make([]string, 0, len(cmd.OptionValues))
	for _, value := range cmd.OptionValues {
		values = append(values, strings.TrimSpace(value))
	}
	if len(values) < 2 {
		logger.Warn("vote create rejected option set",
			"event", "tally_vote_create_too_few_options",
			"module", "participation/tally-engine",
			"layer", "application",
			"topic_id", topicID,
			"option_count", len(values),
		)
		return CreateVoteResult{}, domainerrors.ErrTooFewOptions
	}
	if cmd.MaxChoices > len(values) {
		return CreateVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	for _, value := range values {
		if len(value) < 1 || len(value) > 100 {
			return CreateVoteResult{}, domainerrors.ErrInvalidOptionValue
		}
		if strings.HasPrefix(value, entities.ReservedOptionPrefix) {
			return CreateVoteResult{}, domainerrors.ErrInvalidOptionValue
		}
	}
	if cmd.AuthType == entities.AuthTypeHard {
		if hasNearDuplicates(values) {
			logger.Warn("vote create rejected similar options",
				"event", "tally_vote_create_options_too_similar",
				"module", "participation/tally-engine",
				"layer", "application",
				"topic_id", topicID,
			)
			return CreateVoteResult{}, domainerrors.ErrOptionsTooSimilar
		}
	}

	now := uc.now()
	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateVoteResult{}, err
	}
	options := make([]entities.VoteOption, 0, len(values))
	for _, value := range values {
		optionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CreateVoteResult{}, err
		}
		options = append(options, entities.VoteOption{
			OptionID: optionID,
			VoteID:   voteID,
			Value:    value,
		})
	}

	vote := entities.Vote{
		VoteID:            voteID,
		TopicID:           topicID,
		MinChoices:        cmd.MinChoices,
		MaxChoices:        cmd.MaxChoices,
		DelegationAllowed: cmd.DelegationAllowed,
		AuthType:          cmd.AuthType,
		EndsAt:            normalizeEndsAt(cmd.EndsAt),
		Description:       strings.TrimSpace(cmd.Description),
		Status:            entities.VoteStatusOpen,
		Options:           options,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return CreateVoteResult{}, err
	}
	if err := uc.appendVoteEvent(ctx, "vote.created", vote.VoteID, now, map[string]any{
		"vote_id":     vote.VoteID,
		"topic_id":    vote.TopicID,
		"auth_type":   string(vote.AuthType),
		"occurred_at": now.Format(time.RFC3339),
	}); err != nil {
		return CreateVoteResult{}, err
	}

	logger.Info("vote created",
		"event", "tally_vote_created",
		"module", "participation/tally-engine",
		"layer", "application",
		"vote_id", vote.VoteID,
		"topic_id", vote.TopicID,
		"auth_type", string(vote.AuthType),
		"option_count", len(options),
	)
	return CreateVoteResult{Vote: vote}, nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc VoteUseCase) appendVoteEvent(
	ctx context.Context,
	eventType string,
	voteID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newTallyEnvelope(eventID, eventType, voteID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

// hasNearDuplicates folds case and whitespace before comparing; two options
// that survive folding as equal would be indistinguishable on a signed
// ballot document.
func hasNearDuplicates(values []string) bool {
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		folded := strings.ToLower(strings.Join(strings.Fields(value), " "))
		if seen[folded] {
			return true
		}
		seen[folded] = true
	}
	return false
}

func normalizeEndsAt(endsAt *time.Time) *time.Time {
	if endsAt == nil {
		return nil
	}
	timestamp := endsAt.UTC()
	return &timestamp
}
