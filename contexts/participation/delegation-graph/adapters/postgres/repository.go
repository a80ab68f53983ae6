package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/participation/delegation-graph/domain/entities"
	domainerrors "agora/contexts/participation/delegation-graph/domain/errors"
	"agora/contexts/participation/delegation-graph/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

// ReplaceDelegation re-runs the acyclicity walk inside a transaction that
// holds a FOR UPDATE lock on the vote row itself. Locking the delegation
// rows is not enough: an empty graph has nothing to lock, and a blocked
// writer would not see the other transaction's freshly inserted edge. The
// vote row is the one serialization point every writer to the same vote
// must pass through.
func (r *Repository) ReplaceDelegation(ctx context.Context, delegation entities.Delegation, maxDepth int) error {
	voteID := strings.TrimSpace(delegation.VoteID)
	byUserID := strings.TrimSpace(delegation.ByUserID)
	toUserID := strings.TrimSpace(delegation.ToUserID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vote voteProjectionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", voteID).
			First(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrVoteNotFound
			}
			return err
		}

		var rows []delegationModel
		if err := tx.
			Where("vote_id = ?", voteID).
			Find(&rows).Error; err != nil {
			return err
		}

		edges := make(map[string]string, len(rows))
		for _, row := range rows {
			edges[strings.ToLower(row.ByUserID)] = row.ToUserID
		}

		current := toUserID
		for step := 0; ; step++ {
			if step > maxDepth {
				return domainerrors.ErrDelegationDepthExceeded
			}
			if strings.EqualFold(current, byUserID) {
				return domainerrors.ErrCyclicDelegation
			}
			next, ok := edges[strings.ToLower(current)]
			if !ok {
				break
			}
			current = next
		}

		row := delegationModelFromEntity(delegation)
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "vote_id"}, {Name: "by_user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"to_user_id": row.ToUserID,
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrCyclicDelegation) ||
			errors.Is(err, domainerrors.ErrDelegationDepthExceeded) ||
			errors.Is(err, domainerrors.ErrVoteNotFound) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidDelegationInput
		}
		return r.logError("delegation_repo_replace_failed", err,
			"vote_id", voteID,
			"by_user_id", byUserID,
		)
	}
	return nil
}

func (r *Repository) RemoveDelegation(ctx context.Context, voteID string, byUserID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Where("by_user_id = ?", strings.TrimSpace(byUserID)).
		Delete(&delegationModel{})
	if result.Error != nil {
		return false, r.logError("delegation_repo_remove_failed", result.Error,
			"vote_id", strings.TrimSpace(voteID),
			"by_user_id", strings.TrimSpace(byUserID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) RemoveDelegationsToUser(
	ctx context.Context,
	topicID string,
	userID string,
	_ time.Time,
) ([]entities.Delegation, error) {
	removed := make([]entities.Delegation, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []delegationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("to_user_id = ?", strings.TrimSpace(userID)).
			Where("vote_id IN (?)", tx.Model(&voteProjectionModel{}).
				Select("id").
				Where("topic_id = ?", strings.TrimSpace(topicID))).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			if err := tx.
				Where("vote_id = ?", row.VoteID).
				Where("by_user_id = ?", row.ByUserID).
				Delete(&delegationModel{}).Error; err != nil {
				return err
			}
			removed = append(removed, row.toEntity())
		}
		return nil
	})
	if err != nil {
		return nil, r.logError("delegation_repo_remove_to_user_failed", err,
			"topic_id", strings.TrimSpace(topicID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	return removed, nil
}

func (r *Repository) GetDelegation(ctx context.Context, voteID string, byUserID string) (entities.Delegation, bool, error) {
	var row delegationModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Where("by_user_id = ?", strings.TrimSpace(byUserID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Delegation{}, false, nil
		}
		return entities.Delegation{}, false, r.logError("delegation_repo_get_failed", err,
			"vote_id", strings.TrimSpace(voteID),
			"by_user_id", strings.TrimSpace(byUserID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListDelegationsByVote(ctx context.Context, voteID string) ([]entities.Delegation, error) {
	var rows []delegationModel
	if err := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("delegation_repo_list_failed", err,
			"vote_id", strings.TrimSpace(voteID),
		)
	}
	items := make([]entities.Delegation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.VoteProjection, error) {
	var row voteProjectionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteProjection{}, domainerrors.ErrVoteNotFound
		}
		return entities.VoteProjection{}, r.logError("delegation_repo_get_vote_failed", err,
			"vote_id", strings.TrimSpace(voteID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) HasTopicAccess(ctx context.Context, topicID string, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&topicMemberModel{}).
		Where("topic_id = ?", strings.TrimSpace(topicID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Count(&count).Error
	if err != nil {
		return false, r.logError("delegation_repo_access_check_failed", err,
			"topic_id", strings.TrimSpace(topicID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	return count > 0, nil
}

func (r *Repository) CountEligibleVoters(ctx context.Context, topicID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&topicMemberModel{}).
		Where("topic_id = ?", strings.TrimSpace(topicID)).
		Count(&count).Error
	if err != nil {
		return 0, r.logError("delegation_repo_count_voters_failed", err,
			"topic_id", strings.TrimSpace(topicID),
		)
	}
	return int(count), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := marshalEnvelope(envelope)
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
		return r.logError("delegation_repo_append_outbox_failed", create.Error, "outbox_id", outboxID)
	}
	if create.RowsAffected == 0 {
		var existing outboxModel
		if err := r.db.WithContext(ctx).
			Where("outbox_id = ?", outboxID).
			First(&existing).Error; err != nil {
			return r.logError("delegation_repo_append_outbox_failed", err, "outbox_id", outboxID)
		}
		if !bytes.Equal(existing.Payload, payload) {
			return domainerrors.ErrInvalidDelegationInput
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
		return nil, r.logError("delegation_repo_list_outbox_failed", err)
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
		return r.logError("delegation_repo_mark_outbox_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if create.Error != nil {
		return false, r.logError("delegation_repo_reserve_event_failed", create.Error, "event_id", row.EventID)
	}
	return create.RowsAffected == 0, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "participation/delegation-graph",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("delegation repository operation failed", fields...)
	return err
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type delegationModel struct {
	VoteID    string    `gorm:"column:vote_id;primaryKey"`
	ByUserID  string    `gorm:"column:by_user_id;primaryKey"`
	ToUserID  string    `gorm:"column:to_user_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (delegationModel) TableName() string {
	return "vote_delegations"
}

func delegationModelFromEntity(edge entities.Delegation) delegationModel {
	row := delegationModel{
		VoteID:    strings.TrimSpace(edge.VoteID),
		ByUserID:  strings.TrimSpace(edge.ByUserID),
		ToUserID:  strings.TrimSpace(edge.ToUserID),
		CreatedAt: edge.CreatedAt.UTC(),
		UpdatedAt: edge.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m delegationModel) toEntity() entities.Delegation {
	return entities.Delegation{
		VoteID:    m.VoteID,
		ByUserID:  m.ByUserID,
		ToUserID:  m.ToUserID,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type voteProjectionModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	TopicID           string     `gorm:"column:topic_id"`
	Status            string     `gorm:"column:status"`
	EndsAt            *time.Time `gorm:"column:ends_at"`
	DelegationAllowed bool       `gorm:"column:delegation_allowed"`
}

func (voteProjectionModel) TableName() string {
	return "votes"
}

func (m voteProjectionModel) toEntity() entities.VoteProjection {
	var endsAt *time.Time
	if m.EndsAt != nil {
		timestamp := m.EndsAt.UTC()
		endsAt = &timestamp
	}
	return entities.VoteProjection{
		VoteID:            m.ID,
		TopicID:           m.TopicID,
		Status:            entities.VoteStatus(m.Status),
		EndsAt:            endsAt,
		DelegationAllowed: m.DelegationAllowed,
	}
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
	return "delegation_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "delegation_event_dedup"
}

func marshalEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
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

var _ ports.DelegationRepository = (*Repository)(nil)
var _ ports.VoteCatalog = (*Repository)(nil)
var _ ports.MembershipOracle = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
