package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	"agora/contexts/participation/signing-orchestrator/ports"

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

// ReplacePending marks any pending session for the same (vote, user) as
// superseded and inserts the new one, inside a transaction that locks the
// owner's rows.
func (r *Repository) ReplacePending(ctx context.Context, session entities.SigningSession) error {
	row, err := sessionModelFromEntity(session)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior []sessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("vote_id = ?", row.VoteID).
			Where("user_id = ?", row.UserID).
			Where("status IN ?", pendingStatuses()).
			Find(&prior).Error; err != nil {
			return err
		}
		for _, priorRow := range prior {
			if err := tx.Model(&sessionModel{}).
				Where("id = ?", priorRow.ID).
				Updates(map[string]any{
					"status":       string(entities.StatusFailed),
					"failure_code": domainerrors.FailureCodeSuperseded,
					"updated_at":   row.CreatedAt,
				}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidSigningInput
		}
		return r.logError("signing_repo_replace_pending_failed", err,
			"vote_id", row.VoteID,
			"user_id", row.UserID,
		)
	}
	return nil
}

func (r *Repository) UpdateSession(ctx context.Context, session entities.SigningSession) error {
	row, err := sessionModelFromEntity(session)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":              row.Status,
			"pid":                 row.PID,
			"challenge_code":      row.ChallengeCode,
			"signed_info_digest":  row.SignedInfoDigest,
			"external_session_id": row.ExternalSessionID,
			"container_ref":       row.ContainerRef,
			"failure_code":        row.FailureCode,
			"updated_at":          row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("signing_repo_update_session_failed", result.Error, "session_id", row.ID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrSessionNotFound
	}
	return nil
}

func (r *Repository) GetSessionByToken(ctx context.Context, token string) (entities.SigningSession, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("token = ?", strings.TrimSpace(token)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SigningSession{}, domainerrors.ErrSessionNotFound
		}
		return entities.SigningSession{}, r.logError("signing_repo_get_session_failed", err)
	}
	return row.toEntity()
}

func (r *Repository) GetPendingSession(ctx context.Context, voteID string, userID string) (entities.SigningSession, bool, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("status IN ?", pendingStatuses()).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SigningSession{}, false, nil
		}
		return entities.SigningSession{}, false, r.logError("signing_repo_get_pending_failed", err,
			"vote_id", strings.TrimSpace(voteID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	session, err := row.toEntity()
	if err != nil {
		return entities.SigningSession{}, false, err
	}
	return session, true, nil
}

func (r *Repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]entities.SigningSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []sessionModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", pendingStatuses()).
		Where("expires_at < ?", now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("signing_repo_list_expired_failed", err)
	}
	sessions := make([]entities.SigningSession, 0, len(rows))
	for _, row := range rows {
		session, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *Repository) GetLinkByPID(ctx context.Context, pid string) (entities.IdentityLink, bool, error) {
	var row identityLinkModel
	err := r.db.WithContext(ctx).
		Where("pid = ?", strings.TrimSpace(pid)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.IdentityLink{}, false, nil
		}
		return entities.IdentityLink{}, false, r.logError("signing_repo_get_link_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetLinkByUser(ctx context.Context, userID string) (entities.IdentityLink, bool, error) {
	var row identityLinkModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.IdentityLink{}, false, nil
		}
		return entities.IdentityLink{}, false, r.logError("signing_repo_get_link_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveLink(ctx context.Context, link entities.IdentityLink) error {
	row := identityLinkModel{
		PID:       strings.TrimSpace(link.PID),
		UserID:    strings.TrimSpace(link.UserID),
		CreatedAt: link.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		// PID and user each carry a unique constraint, so a concurrent link
		// of either side surfaces here as a conflict.
		if isUniqueViolation(err) {
			return domainerrors.ErrPidAlreadyLinked
		}
		return r.logError("signing_repo_save_link_failed", err)
	}
	return nil
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
		return r.logError("signing_repo_append_outbox_failed", create.Error, "outbox_id", outboxID)
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
		return nil, r.logError("signing_repo_list_outbox_failed", err)
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
		return r.logError("signing_repo_mark_outbox_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "participation/signing-orchestrator",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("signing repository operation failed", fields...)
	return err
}

func pendingStatuses() []string {
	return []string{
		string(entities.StatusInit),
		string(entities.StatusAwaitingSignature),
		string(entities.StatusChallengeIssued),
		string(entities.StatusPolling),
	}
}

type sessionModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	VoteID            string    `gorm:"column:vote_id"`
	TopicID           string    `gorm:"column:topic_id"`
	UserID            string    `gorm:"column:user_id"`
	Method            string    `gorm:"column:method"`
	Status            string    `gorm:"column:status"`
	OptionIDs         []byte    `gorm:"column:option_ids"`
	Token             string    `gorm:"column:token;uniqueIndex"`
	Certificate       string    `gorm:"column:certificate"`
	PID               string    `gorm:"column:pid"`
	ChallengeCode     string    `gorm:"column:challenge_code"`
	SignedInfoDigest  string    `gorm:"column:signed_info_digest"`
	ExternalSessionID string    `gorm:"column:external_session_id"`
	ContainerRef      string    `gorm:"column:container_ref"`
	FailureCode       string    `gorm:"column:failure_code"`
	ExpiresAt         time.Time `gorm:"column:expires_at"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string {
	return "signing_sessions"
}

func sessionModelFromEntity(session entities.SigningSession) (sessionModel, error) {
	optionIDs, err := json.Marshal(session.OptionIDs)
	if err != nil {
		return sessionModel{}, err
	}
	return sessionModel{
		ID:                strings.TrimSpace(session.SessionID),
		VoteID:            strings.TrimSpace(session.VoteID),
		TopicID:           strings.TrimSpace(session.TopicID),
		UserID:            strings.TrimSpace(session.UserID),
		Method:            string(session.Method),
		Status:            string(session.Status),
		OptionIDs:         optionIDs,
		Token:             strings.TrimSpace(session.Token),
		Certificate:       session.Certificate,
		PID:               strings.TrimSpace(session.PID),
		ChallengeCode:     session.ChallengeCode,
		SignedInfoDigest:  session.SignedInfoDigest,
		ExternalSessionID: session.ExternalSessionID,
		ContainerRef:      session.ContainerRef,
		FailureCode:       session.FailureCode,
		ExpiresAt:         session.ExpiresAt.UTC(),
		CreatedAt:         session.CreatedAt.UTC(),
		UpdatedAt:         session.UpdatedAt.UTC(),
	}, nil
}

func (m sessionModel) toEntity() (entities.SigningSession, error) {
	var optionIDs []string
	if len(m.OptionIDs) > 0 {
		if err := json.Unmarshal(m.OptionIDs, &optionIDs); err != nil {
			return entities.SigningSession{}, err
		}
	}
	return entities.SigningSession{
		SessionID:         m.ID,
		VoteID:            m.VoteID,
		TopicID:           m.TopicID,
		UserID:            m.UserID,
		Method:            entities.SigningMethod(m.Method),
		Status:            entities.SessionStatus(m.Status),
		OptionIDs:         optionIDs,
		Token:             m.Token,
		Certificate:       m.Certificate,
		PID:               m.PID,
		ChallengeCode:     m.ChallengeCode,
		SignedInfoDigest:  m.SignedInfoDigest,
		ExternalSessionID: m.ExternalSessionID,
		ContainerRef:      m.ContainerRef,
		FailureCode:       m.FailureCode,
		ExpiresAt:         m.ExpiresAt.UTC(),
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}, nil
}

type identityLinkModel struct {
	PID       string    `gorm:"column:pid;primaryKey"`
	UserID    string    `gorm:"column:user_id;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (identityLinkModel) TableName() string {
	return "identity_links"
}

func (m identityLinkModel) toEntity() entities.IdentityLink {
	return entities.IdentityLink{
		PID:       m.PID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt.UTC(),
	}
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
	return "signing_outbox"
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

var _ ports.SessionRepository = (*Repository)(nil)
var _ ports.IdentityLinkRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
