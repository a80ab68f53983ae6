package commands

import (
	"context"
	"regexp"
	"strings"

	application "agora/contexts/participation/signing-orchestrator/application"
	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
)

// Provider-recognized shapes: E.164-style phone numbers and 11-digit
// national personal IDs.
var (
	phonePattern = regexp.MustCompile(`^\+\d{8,15}$`)
	pidPattern   = regexp.MustCompile(`^\d{11}$`)
)

type InitMobileIDCommand struct {
	VoteID      string
	UserID      string
	PhoneNumber string
	PID         string
	OptionIDs   []string
}

type InitMobileIDResult struct {
	Token         string
	ChallengeCode string
}

// InitMobileID validates the phone/PID pair, starts an asynchronous
// provider session and returns the opaque polling token alongside the
// 4-digit challenge the voter confirms on their device. A pending session
// for the same (vote, user) is superseded.
func (uc SigningUseCase) InitMobileID(ctx context.Context, cmd InitMobileIDCommand) (InitMobileIDResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voteID := strings.TrimSpace(cmd.VoteID)
	userID := strings.TrimSpace(cmd.UserID)
	phoneNumber := strings.TrimSpace(cmd.PhoneNumber)
	pid := strings.TrimSpace(cmd.PID)
	optionIDs := dedupeOptionIDs(cmd.OptionIDs)
	logger.Info("mobileid signing init started",
		"event", "signing_mobileid_init_started",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"vote_id", voteID,
		"user_id", userID,
	)
	if voteID == "" || userID == "" || len(optionIDs) == 0 {
		return InitMobileIDResult{}, domainerrors.ErrInvalidSigningInput
	}
	if !phonePattern.MatchString(phoneNumber) || !pidPattern.MatchString(pid) {
		logger.Warn("mobileid signing rejected malformed identity",
			"event", "signing_mobileid_shape_rejected",
			"module", "participation/signing-orchestrator",
			"layer", "application",
			"vote_id", voteID,
			"user_id", userID,
		)
		return InitMobileIDResult{}, domainerrors.ErrNotMobileIDClient
	}

	now := uc.now()
	vote, err := uc.authorizeInit(ctx, voteID, userID, now)
	if err != nil {
		return InitMobileIDResult{}, err
	}

	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return InitMobileIDResult{}, err
	}
	token, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return InitMobileIDResult{}, err
	}

	session := entities.SigningSession{
		SessionID: sessionID,
		VoteID:    voteID,
		TopicID:   vote.TopicID,
		UserID:    userID,
		Method:    entities.MethodMobileID,
		Status:    entities.StatusChallengeIssued,
		OptionIDs: optionIDs,
		Token:     token,
		PID:       pid,
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := uc.Containers.BuildUnsigned(ctx, uc.containerRequest(session))
	if err != nil {
		return InitMobileIDResult{}, err
	}
	challenge, err := uc.MobileID.StartSession(ctx, phoneNumber, pid, payload)
	if err != nil {
		return InitMobileIDResult{}, err
	}
	session.ChallengeCode = challenge.ChallengeCode
	session.ExternalSessionID = challenge.ExternalSessionID

	if err := uc.Sessions.ReplacePending(ctx, session); err != nil {
		return InitMobileIDResult{}, err
	}
	if err := uc.appendSessionEvent(ctx, "signing.session.started", session, now, nil); err != nil {
		return InitMobileIDResult{}, err
	}
	logger.Info("mobileid challenge issued",
		"event", "signing_mobileid_challenge_issued",
		"module", "participation/signing-orchestrator",
		"layer", "application",
		"session_id", session.SessionID,
		"vote_id", voteID,
		"user_id", userID,
	)
	return InitMobileIDResult{Token: token, ChallengeCode: challenge.ChallengeCode}, nil
}
