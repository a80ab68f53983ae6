package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/participation/container-builder/domain/entities"
	domainerrors "agora/contexts/participation/container-builder/domain/errors"
	"agora/contexts/participation/container-builder/ports"
)

const (
	containerFileName = "vote_ballot.bdoc"
	containerMimeType = "application/vnd.etsi.asic-e+zip"
)

// BuilderUseCase assembles, finalizes and serves signed ballot containers.
type BuilderUseCase struct {
	Artifacts ports.ArtifactStore
	Options   ports.OptionCatalog
	// Secret keys the scoped download tokens. Base path is where the
	// download handler is mounted, e.g. "/api/downloads".
	Secret   string
	BasePath string
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

type ballotDocument struct {
	TopicID     string   `json:"topic_id"`
	VoteID      string   `json:"vote_id"`
	UserID      string   `json:"user_id"`
	Options     []string `json:"options"`
	GeneratedAt string   `json:"generated_at"`
}

type signedBundle struct {
	Document       ballotDocument `json:"document"`
	SignatureValue string         `json:"signature_value"`
}

// BuildUnsigned produces the to-be-signed document bundle: the ballot with
// its chosen option values spelled out, plus cast metadata.
func (uc BuilderUseCase) BuildUnsigned(ctx context.Context, req ports.BuildRequest) ([]byte, error) {
	document, err := uc.document(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(document)
}

// FinalizeSigned attaches the signature to the document, stores the bundle
// under a fresh opaque ref and returns that ref.
func (uc BuilderUseCase) FinalizeSigned(ctx context.Context, req ports.BuildRequest, signatureValue string) (string, error) {
	logger := resolveLogger(uc.Logger)
	if strings.TrimSpace(signatureValue) == "" {
		return "", domainerrors.ErrInvalidContainerInput
	}
	document, err := uc.document(ctx, req)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(signedBundle{
		Document:       document,
		SignatureValue: signatureValue,
	})
	if err != nil {
		return "", err
	}
	containerRef, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return "", err
	}
	container := entities.SignedContainer{
		ContainerRef: containerRef,
		TopicID:      strings.TrimSpace(req.TopicID),
		VoteID:       strings.TrimSpace(req.VoteID),
		UserID:       strings.TrimSpace(req.UserID),
		FileName:     containerFileName,
		MimeType:     containerMimeType,
		Payload:      payload,
		CreatedAt:    uc.now(),
	}
	if err := uc.Artifacts.SaveContainer(ctx, container); err != nil {
		return "", err
	}
	logger.Info("signed container stored",
		"event", "container_stored",
		"module", "participation/container-builder",
		"layer", "application",
		"container_ref", containerRef,
		"vote_id", container.VoteID,
		"user_id", container.UserID,
	)
	return containerRef, nil
}

// SignedDownloadURL mints a bearer token bound to the container's
// (topic, vote, user, path) scope with an expiry, and embeds it in the
// download URL.
func (uc BuilderUseCase) SignedDownloadURL(
	_ context.Context,
	containerRef string,
	req ports.BuildRequest,
	expiresAt time.Time,
) (string, error) {
	ref := strings.TrimSpace(containerRef)
	if ref == "" {
		return "", domainerrors.ErrInvalidContainerInput
	}
	path := uc.downloadPath(ref)
	token := uc.downloadToken(req.TopicID, req.VoteID, req.UserID, path, expiresAt.Unix())
	return fmt.Sprintf("%s?token=%s&expires=%d", path, token, expiresAt.Unix()), nil
}

// Download validates the scoped token against the stored container's scope
// and returns the container. No session authentication is involved.
func (uc BuilderUseCase) Download(
	ctx context.Context,
	containerRef string,
	token string,
	expiresUnix int64,
) (entities.SignedContainer, error) {
	logger := resolveLogger(uc.Logger)
	ref := strings.TrimSpace(containerRef)
	container, err := uc.Artifacts.GetContainer(ctx, ref)
	if err != nil {
		return entities.SignedContainer{}, err
	}
	if uc.now().Unix() > expiresUnix {
		return entities.SignedContainer{}, domainerrors.ErrDownloadTokenExpired
	}
	expected := uc.downloadToken(container.TopicID, container.VoteID, container.UserID, uc.downloadPath(ref), expiresUnix)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(token))) {
		logger.Warn("container download token rejected",
			"event", "container_token_rejected",
			"module", "participation/container-builder",
			"layer", "application",
			"container_ref", ref,
		)
		return entities.SignedContainer{}, domainerrors.ErrDownloadTokenInvalid
	}
	return container, nil
}

func (uc BuilderUseCase) document(ctx context.Context, req ports.BuildRequest) (ballotDocument, error) {
	topicID := strings.TrimSpace(req.TopicID)
	voteID := strings.TrimSpace(req.VoteID)
	userID := strings.TrimSpace(req.UserID)
	if topicID == "" || voteID == "" || userID == "" || len(req.OptionIDs) == 0 {
		return ballotDocument{}, domainerrors.ErrInvalidContainerInput
	}
	values, err := uc.Options.ListOptionValues(ctx, voteID, req.OptionIDs)
	if err != nil {
		return ballotDocument{}, err
	}
	return ballotDocument{
		TopicID:     topicID,
		VoteID:      voteID,
		UserID:      userID,
		Options:     values,
		GeneratedAt: uc.now().Format(time.RFC3339),
	}, nil
}

func (uc BuilderUseCase) downloadPath(containerRef string) string {
	base := strings.TrimRight(uc.BasePath, "/")
	if base == "" {
		base = "/api/downloads"
	}
	return base + "/" + containerRef
}

func (uc BuilderUseCase) downloadToken(topicID string, voteID string, userID string, path string, expiresUnix int64) string {
	material := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		uc.Secret,
		strings.TrimSpace(topicID),
		strings.TrimSpace(voteID),
		strings.TrimSpace(userID),
		path,
		expiresUnix,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

func (uc BuilderUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
