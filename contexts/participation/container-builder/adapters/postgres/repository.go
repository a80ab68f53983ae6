package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/participation/container-builder/domain/entities"
	domainerrors "agora/contexts/participation/container-builder/domain/errors"
	"agora/contexts/participation/container-builder/ports"

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

func (r *Repository) SaveContainer(ctx context.Context, container entities.SignedContainer) error {
	row := containerModel{
		Ref:       strings.TrimSpace(container.ContainerRef),
		TopicID:   strings.TrimSpace(container.TopicID),
		VoteID:    strings.TrimSpace(container.VoteID),
		UserID:    strings.TrimSpace(container.UserID),
		FileName:  container.FileName,
		MimeType:  container.MimeType,
		Payload:   container.Payload,
		CreatedAt: container.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	// Refs are freshly minted; a collision means a replayed finalize, which
	// is safe to ignore.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil && !isUniqueViolation(err) {
		return r.logError("container_repo_save_failed", err, "container_ref", row.Ref)
	}
	return nil
}

func (r *Repository) GetContainer(ctx context.Context, containerRef string) (entities.SignedContainer, error) {
	var row containerModel
	err := r.db.WithContext(ctx).
		Where("ref = ?", strings.TrimSpace(containerRef)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SignedContainer{}, domainerrors.ErrContainerNotFound
		}
		return entities.SignedContainer{}, r.logError("container_repo_get_failed", err,
			"container_ref", strings.TrimSpace(containerRef),
		)
	}
	return entities.SignedContainer{
		ContainerRef: row.Ref,
		TopicID:      row.TopicID,
		VoteID:       row.VoteID,
		UserID:       row.UserID,
		FileName:     row.FileName,
		MimeType:     row.MimeType,
		Payload:      row.Payload,
		CreatedAt:    row.CreatedAt.UTC(),
	}, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "participation/container-builder",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("container repository operation failed", fields...)
	return err
}

type containerModel struct {
	Ref       string    `gorm:"column:ref;primaryKey"`
	TopicID   string    `gorm:"column:topic_id"`
	VoteID    string    `gorm:"column:vote_id"`
	UserID    string    `gorm:"column:user_id"`
	FileName  string    `gorm:"column:file_name"`
	MimeType  string    `gorm:"column:mime_type"`
	Payload   []byte    `gorm:"column:payload"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (containerModel) TableName() string {
	return "signed_containers"
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

var _ ports.ArtifactStore = (*Repository)(nil)
