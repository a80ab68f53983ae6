package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/participation/tally-engine/domain/entities"
	domainerrors "agora/contexts/participation/tally-engine/domain/errors"
	"agora/contexts/participation/tally-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":     row.Status,
				"ends_at":    row.EndsAt,
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		// Options are immutable; replays of the same create are no-ops.
		for _, option := range vote.Options {
			optionRow := voteOptionModel{
				ID:     strings.TrimSpace(option.OptionID),
				VoteID: row.ID,
				Value:  strings.TrimSpace(option.Value),
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&optionRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidVoteInput
		}
		return r.logError("tally_repo_save_vote_failed", err, "vote_id", row.ID)
	}
	return nil
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("tally_repo_get_vote_failed", err, "vote_id", strings.TrimSpace(voteID))
	}

	var optionRows []voteOptionModel
	if err := r.db.WithContext(ctx).
		Where("vote_id = ?", row.ID).
		Order("value ASC").
		Find(&optionRows).Error; err != nil {
		return entities.Vote{}, r.logError("tally_repo_get_vote_options_failed", err, "vote_id", row.ID)
	}
	return row.toEntity(optionRows), nil
}

func (r *Repository) CloseVotesPastDeadline(ctx context.Context, now time.Time) ([]entities.Vote, error) {
	closed := make([]entities.Vote, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []voteModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ?", string(entities.VoteStatusOpen)).
			Where("ends_at IS NOT NULL AND ends_at < ?", now.UTC()).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if err := tx.Model(&voteModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"status":     string(entities.VoteStatusClosed),
					"updated_at": now.UTC(),
				}).Error; err != nil {
				return err
			}
			row.Status = string(entities.VoteStatusClosed)
			row.UpdatedAt = now.UTC()
			closed = append(closed, row.toEntity(nil))
		}
		return nil
	})
	if err != nil {
		return nil, r.logError("tally_repo_close_votes_failed", err)
	}
	return closed, nil
}

func (r *Repository) SaveBallot(ctx context.Context, ballot entities.Ballot) error {
	row, err := ballotModelFromEntity(ballot)
	if err != nil {
		return err
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vote_id"}, {Name: "voter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"option_ids": row.OptionIDs,
			"auth_type":  row.AuthType,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrInvalidVoteInput
		}
		return r.logError("tally_repo_save_ballot_failed", create.Error,
			"vote_id", row.VoteID,
			"voter_id", row.VoterID,
		)
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, voteID string, voterID string) (entities.Ballot, bool, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, false, nil
		}
		return entities.Ballot{}, false, r.logError("tally_repo_get_ballot_failed", err,
			"vote_id", strings.TrimSpace(voteID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	ballot, err := row.toEntity()
	if err != nil {
		return entities.Ballot{}, false, err
	}
	return ballot, true, nil
}

func (r *Repository) ListBallotsByVote(ctx context.Context, voteID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Order("cast_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("tally_repo_list_ballots_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		ballot, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, ballot)
	}
	return items, nil
}

func (r *Repository) HasTopicAccess(ctx context.Context, topicID string, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&topicMemberModel{}).
		Where("topic_id = ?", strings.TrimSpace(topicID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Count(&count).Error
	if err != nil {
		return false, r.logError("tally_repo_access_check_failed", err,
			"topic_id", strings.TrimSpace(topicID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	return count > 0, nil
}

func (r *Repository) ListEligibleVoters(ctx context.Context, topicID string) ([]string, error) {
	var rows []topicMemberModel
	if err := r.db.WithContext(ctx).
		Where("topic_id = ?", strings.TrimSpace(topicID)).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("tally_repo_list_voters_failed", err, "topic_id", strings.TrimSpace(topicID))
	}
	voters := make([]string, 0, len(rows))
	for _, row := range rows {
		voters = append(voters, row.UserID)
	}
	return voters, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := outboxModel{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    createdAt,
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if create.Error != nil {
		return r.logError("tally_repo_append_outbox_failed", create.Error, "outbox_id", outboxID)
	}
	if create.RowsAffected == 0 {
		var existing outboxModel
		if err := r.db.WithContext(ctx).
			Where("outbox_id = ?", outboxID).
			First(&existing).Error; err != nil {
			return r.logError("tally_repo_append_outbox_failed", err, "outbox_id", outboxID)
		}
		if !bytes.Equal(existing.Payload, payload) {
			return domainerrors.ErrInvalidVoteInput
		}
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("tally_repo_list_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	timestamp := publishedAt.UTC()
	err := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &timestamp,
		}).Error
	if err != nil {
		return r.logError("tally_repo_mark_outbox_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	return nil
}

// SystemClock and UUIDGenerator satisfy the Clock/IDGenerator ports for
// production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "participation/tally-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("tally repository operation failed", fields...)
	return err
}

type voteModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	TopicID           string     `gorm:"column:topic_id"`
	MinChoices        int        `gorm:"column:min_choices"`
	MaxChoices        int        `gorm:"column:max_choices"`
	DelegationAllowed bool       `gorm:"column:delegation_allowed"`
	AuthType          string     `gorm:"column:auth_type"`
	EndsAt            *time.Time `gorm:"column:ends_at"`
	Description       string     `gorm:"column:description"`
	Status            string     `gorm:"column:status"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	row := voteModel{
		ID:                strings.TrimSpace(vote.VoteID),
		TopicID:           strings.TrimSpace(vote.TopicID),
		MinChoices:        vote.MinChoices,
		MaxChoices:        vote.MaxChoices,
		DelegationAllowed: vote.DelegationAllowed,
		AuthType:          string(vote.AuthType),
		Description:       strings.TrimSpace(vote.Description),
		Status:            string(vote.Status),
		CreatedAt:         vote.CreatedAt.UTC(),
		UpdatedAt:         vote.UpdatedAt.UTC(),
	}
	if vote.EndsAt != nil {
		endsAt := vote.EndsAt.UTC()
		row.EndsAt = &endsAt
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m voteModel) toEntity(optionRows []voteOptionModel) entities.Vote {
	var endsAt *time.Time
	if m.EndsAt != nil {
		timestamp := m.EndsAt.UTC()
		endsAt = &timestamp
	}
	options := make([]entities.VoteOption, 0, len(optionRows))
	for _, row := range optionRows {
		options = append(options, entities.VoteOption{
			OptionID: row.ID,
			VoteID:   row.VoteID,
			Value:    row.Value,
		})
	}
	return entities.Vote{
		VoteID:            m.ID,
		TopicID:           m.TopicID,
		MinChoices:        m.MinChoices,
		MaxChoices:        m.MaxChoices,
		DelegationAllowed: m.DelegationAllowed,
		AuthType:          entities.AuthType(m.AuthType),
		EndsAt:            endsAt,
		Description:       m.Description,
		Status:            entities.VoteStatus(m.Status),
		Options:           options,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

type voteOptionModel struct {
	ID     string `gorm:"column:id;primaryKey"`
	VoteID string `gorm:"column:vote_id"`
	Value  string `gorm:"column:value"`
}

func (voteOptionModel) TableName() string {
	return "vote_options"
}

type ballotModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	VoteID    string    `gorm:"column:vote_id"`
	VoterID   string    `gorm:"column:voter_id"`
	OptionIDs []byte    `gorm:"column:option_ids"`
	AuthType  string    `gorm:"column:auth_type"`
	CastAt    time.Time `gorm:"column:cast_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (ballotModel) TableName() string {
	return "vote_ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) (ballotModel, error) {
	optionIDs, err := json.Marshal(ballot.OptionIDs)
	if err != nil {
		return ballotModel{}, err
	}
	row := ballotModel{
		ID:        strings.TrimSpace(ballot.BallotID),
		VoteID:    strings.TrimSpace(ballot.VoteID),
		VoterID:   strings.TrimSpace(ballot.VoterID),
		OptionIDs: optionIDs,
		AuthType:  string(ballot.AuthType),
		CastAt:    ballot.CastAt.UTC(),
		UpdatedAt: ballot.UpdatedAt.UTC(),
	}
	if row.CastAt.IsZero() {
		row.CastAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CastAt
	}
	return row, nil
}

func (m ballotModel) toEntity() (entities.Ballot, error) {
	var optionIDs []string
	if len(m.OptionIDs) > 0 {
		if err := json.Unmarshal(m.OptionIDs, &optionIDs); err != nil {
			return entities.Ballot{}, err
		}
	}
	return entities.Ballot{
		BallotID:  m.ID,
		VoteID:    m.VoteID,
		VoterID:   m.VoterID,
		OptionIDs: optionIDs,
		AuthType:  entities.AuthType(m.AuthType),
		CastAt:    m.CastAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

type topicMemberModel struct {
	TopicID string `gorm:"column:topic_id;primaryKey"`
	UserID  string `gorm:"column:user_id;primaryKey"`
	Level   string `gorm:"column:level"`
}

func (topicMemberModel) TableName() string {
	return "topic_members"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "tally_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.BallotRepository = (*Repository)(nil)
var _ ports.MembershipOracle = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
