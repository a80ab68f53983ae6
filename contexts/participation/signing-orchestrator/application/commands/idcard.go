package commands

import (
	"context"
	"strings"

	application "agora/contexts/participation/signing-orchestrator/application"
	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
)

type InitIDCardCommand struct {
	VoteID      string
	UserID      string
	Certificate string
	OptionIDs   []string
}

type InitIDCardResult struct {
	Token            string
	SignedInfoDigest string
}

type CompleteIDCardCommand struct {
	VoteID         string
	UserID         string
	SignatureValue string
}

type CompleteIDCardResult struct {
	ContainerRef string
	BdocURI      string
}

// InitIDCard builds the to-be-signed container for the chosen options and
// returns the digest the client signs with local certificate middleware.
// Any pending session for the same (vote, user) is superseded.
func (uc SigningUseCase) InitIDCard(ctx context.Context, cmd InitIDCardCommand) (InitIDCardResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	userID := strings.TrimSpace(cmd.UserID)
	certificate := strings.TrimSpace(cmd.Certificate)
	optionIDs := dedupeOptionIDs(cmd.OptionIDs)
	logger.Info("idcard signing init started",
		"event", "signing_idcard_init_started",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"vote_id", voteID,
		"user_id", userID,
	)
	if voteID == "" || userID == "" || certificate == "" || len(optionIDs) == 0 {
		return InitIDCardResult{}, domainerrors.ErrInvalidSigningInput
	}

	now := uc.now()
	vote, err := uc.authorizeInit(ctx, voteID, userID, now)
	if err != nil {
		return InitIDCardResult{}, err
	}

	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return InitIDCardResult{}, err
	}
	token, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return InitIDCardResult{}, err
	}

	session := entities.SigningSession{
		SessionID:   sessionID,
		VoteID:      voteID,
		TopicID:     vote.TopicID,
		UserID:      userID,
		Method:      entities.MethodIDCard,
		Status:      entities.StatusAwaitingSignature,
		OptionIDs:   optionIDs,
		Token:       token,
		Certificate: certificate,
		ExpiresAt:   now.Add(sessionTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	payload, err := uc.Containers.BuildUnsigned(ctx, uc.containerRequest(session))
	if err != nil {
		return InitIDCardResult{}, err
	}
	digest, err := uc.IDCard.PrepareDigest(ctx, certificate, payload)
	if err != nil {
		return InitIDCardResult{}, err
	}
	session.SignedInfoDigest = digest

	if err := uc.Sessions.ReplacePending(ctx, session); err != nil {
		return InitIDCardResult{}, err
	}
	if err := uc.appendSessionEvent(ctx, "signing.session.started", session, now, nil); err != nil {
		return InitIDCardResult{}, err
	}
	logger.Info("idcard signing session awaiting signature",
		"event", "signing_idcard_awaiting_signature",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"session_id", session.SessionID,
		"vote_id", voteID,
		"user_id", userID,
	)
	return InitIDCardResult{Token: token, SignedInfoDigest: digest}, nil
}

// CompleteIDCard verifies the client-produced signature against the stored
// digest and certificate chain, finalizes the container and casts the hard
// ballot. Verification failures carry the provider's certificate taxonomy.
func (uc SigningUseCase) CompleteIDCard(ctx context.Context, cmd CompleteIDCardCommand) (CompleteIDCardResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	userID := strings.TrimSpace(cmd.UserID)
	signatureValue := strings.TrimSpace(cmd.SignatureValue)
	if voteID == "" || userID == "" || signatureValue == "" {
		return CompleteIDCardResult{}, domainerrors.ErrInvalidSigningInput
	}

	session, found, err := uc.Sessions.GetPendingSession(ctx, voteID, userID)
	if err != nil {
		return CompleteIDCardResult{}, err
	}
	if !found {
		return CompleteIDCardResult{}, domainerrors.ErrSessionNotFound
	}
	if session.Method != entities.MethodIDCard || session.Status != entities.StatusAwaitingSignature {
		return CompleteIDCardResult{}, domainerrors.ErrInvalidSessionState
	}

	now := uc.now()
	if session.Expired(now) {
		if _, failErr := uc.failSession(ctx, session, domainerrors.ProviderCodeTimeout, now); failErr != nil {
			return CompleteIDCardResult{}, failErr
		}
		return CompleteIDCardResult{}, domainerrors.ErrSigningTimeout
	}

	verification, err := uc.IDCard.VerifySignature(ctx, session.Certificate, session.SignedInfoDigest, signatureValue)
	if err != nil {
		return CompleteIDCardResult{}, err
	}
	if !verification.OK {
		if _, failErr := uc.failSession(ctx, session, verification.ProviderCode, now); failErr != nil {
			return CompleteIDCardResult{}, failErr
		}
		if verification.ProviderCode == "" {
			return CompleteIDCardResult{}, domainerrors.ErrSignatureInvalid
		}
		return CompleteIDCardResult{}, domainerrors.MapProviderCode(verification.ProviderCode)
	}

	session, bdocURI, err := uc.completeSession(ctx, session, verification.PID, signatureValue, now)
	if err != nil {
		return CompleteIDCardResult{}, err
	}
	logger.Info("idcard signing completed",
		"event", "signing_idcard_completed",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"session_id", session.SessionID,
		"vote_id", voteID,
		"user_id", userID,
	)
	return CompleteIDCardResult{ContainerRef: session.ContainerRef, BdocURI: bdocURI}, nil
}
