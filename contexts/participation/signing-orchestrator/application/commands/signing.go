package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/participation/signing-orchestrator/application"
	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	"agora/contexts/participation/signing-orchestrator/ports"
)

const (
	// sessionTTL bounds the caller-driven polling window. Expiry is applied
	// lazily on read and by the session reaper.
	sessionTTL = 30 * time.Second
	// downloadURLTTL bounds the scoped bearer token embedded in a bdocUri.
	downloadURLTTL = 15 * time.Minute
)

// SigningUseCase drives both signing methods through one outer state
// machine. Provider-specific failure translation lives in the domain error
// table, nowhere else.
type SigningUseCase struct {
	Sessions   ports.SessionRepository
	Links      ports.IdentityLinkRepository
	Votes      ports.VoteCatalog
	Oracle     ports.MembershipOracle
	IDCard     ports.IDCardProvider
	MobileID   ports.MobileIDProvider
	Containers ports.ContainerBuilder
	Caster     ports.BallotCaster
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

// authorizeInit validates the vote and the caller before any session is
// created. Only open hard-auth votes accept signing sessions.
func (uc SigningUseCase) authorizeInit(
	ctx context.Context,
	voteID string,
	userID string,
	now time.Time,
) (entities.VoteProjection, error) {
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		return entities.VoteProjection{}, err
	}
	if vote.AuthType != "hard" {
		return entities.VoteProjection{}, domainerrors.ErrHardAuthNotRequired
	}
	if !vote.AcceptsSignatures(now) {
		return entities.VoteProjection{}, domainerrors.ErrVoteNotOpen
	}
	hasAccess, err := uc.Oracle.HasTopicAccess(ctx, vote.TopicID, userID)
	if err != nil {
		return entities.VoteProjection{}, err
	}
	if !hasAccess {
		return entities.VoteProjection{}, domainerrors.ErrNoTopicAccess
	}
	return vote, nil
}

// ensureIdentityLink binds the verified PID to the account, enforcing the
// permanent one-PID-one-account invariant for both signing methods.
func (uc SigningUseCase) ensureIdentityLink(ctx context.Context, pid string, userID string, now time.Time) error {
	byPID, found, err := uc.Links.GetLinkByPID(ctx, pid)
	if err != nil {
		return err
	}
	if found {
		if byPID.UserID != userID {
			return domainerrors.ErrPidAlreadyLinked
		}
		return nil
	}
	byUser, found, err := uc.Links.GetLinkByUser(ctx, userID)
	if err != nil {
		return err
	}
	if found && byUser.PID != pid {
		return domainerrors.ErrAccountAlreadyLinked
	}
	return uc.Links.SaveLink(ctx, entities.IdentityLink{
		PID:       pid,
		UserID:    userID,
		CreatedAt: now,
	})
}

// completeSession finalizes the signed container, casts the hard ballot and
// marks the session complete. It returns the download URI with an embedded
// scoped token.
func (uc SigningUseCase) completeSession(
	ctx context.Context,
	session entities.SigningSession,
	pid string,
	signatureValue string,
	now time.Time,
) (entities.SigningSession, string, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := uc.ensureIdentityLink(ctx, pid, session.UserID, now); err != nil {
		var code string
		switch {
		case errors.Is(err, domainerrors.ErrPidAlreadyLinked):
			code = domainerrors.FailureCodePidLinked
		case errors.Is(err, domainerrors.ErrAccountAlreadyLinked):
			code = domainerrors.FailureCodeAccountLinked
		default:
			return session, "", err
		}
		if _, failErr := uc.failSession(ctx, session, code, now); failErr != nil {
			return session, "", failErr
		}
		return session, "", err
	}

	req := uc.containerRequest(session)
	containerRef, err := uc.Containers.FinalizeSigned(ctx, req, signatureValue)
	if err != nil {
		return session, "", err
	}
	if err := uc.Caster.CastHardBallot(ctx, session.VoteID, session.UserID, session.OptionIDs, containerRef); err != nil {
		return session, "", err
	}

	session.Status = entities.StatusComplete
	session.PID = pid
	session.ContainerRef = containerRef
	session.FailureCode = ""
	session.UpdatedAt = now
	if err := uc.Sessions.UpdateSession(ctx, session); err != nil {
		return session, "", err
	}

	bdocURI, err := uc.Containers.SignedDownloadURL(ctx, containerRef, req, now.Add(downloadURLTTL))
	if err != nil {
		return session, "", err
	}

	if err := uc.appendSessionEvent(ctx, "signing.session.completed", session, now, map[string]any{
		"container_ref": containerRef,
	}); err != nil {
		return session, "", err
	}
	logger.Info("signing session completed",
		"event", "signing_session_completed",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"session_id", session.SessionID,
		"vote_id", session.VoteID,
		"user_id", session.UserID,
		"method", string(session.Method),
	)
	return session, bdocURI, nil
}

// failSession transitions a pending session to failed with the provider
// code that caused it. The mapped domain error is returned to the caller
// separately.
func (uc SigningUseCase) failSession(
	ctx context.Context,
	session entities.SigningSession,
	providerCode string,
	now time.Time,
) (entities.SigningSession, error) {
	logger := application.ResolveLogger(uc.Logger)
	session.Status = entities.StatusFailed
	session.FailureCode = providerCode
	session.UpdatedAt = now
	if err := uc.Sessions.UpdateSession(ctx, session); err != nil {
		return session, err
	}
	if err := uc.appendSessionEvent(ctx, "signing.session.failed", session, now, map[string]any{
		"failure_code": providerCode,
	}); err != nil {
		return session, err
	}
	logger.Warn("signing session failed",
		"event", "signing_session_failed",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"session_id", session.SessionID,
		"vote_id", session.VoteID,
		"user_id", session.UserID,
		"failure_code", providerCode,
	)
	return session, nil
}

func (uc SigningUseCase) containerRequest(session entities.SigningSession) ports.ContainerRequest {
	return ports.ContainerRequest{
		TopicID:   session.TopicID,
		VoteID:    session.VoteID,
		UserID:    session.UserID,
		OptionIDs: session.OptionIDs,
	}
}

func (uc SigningUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func dedupeOptionIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	optionIDs := make([]string, 0, len(raw))
	for _, optionID := range raw {
		trimmed := strings.TrimSpace(optionID)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		optionIDs = append(optionIDs, trimmed)
	}
	return optionIDs
}
