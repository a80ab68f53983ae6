package commands

import (
	"context"
	"strings"

	application "agora/contexts/participation/signing-orchestrator/application"
	"agora/contexts/participation/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	"agora/contexts/participation/signing-orchestrator/ports"
)

type PollStatusResult struct {
	Pending      bool
	ContainerRef string
	BdocURI      string
}

// PollStatus is a single non-blocking read of the session keyed by its
// opaque token. The server never waits: callers re-invoke until the result
// stops being pending. Expiry is applied lazily here, so an abandoned
// session reports a timeout on its next read even before the reaper runs.
func (uc SigningUseCase) PollStatus(ctx context.Context, token string) (PollStatusResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return PollStatusResult{}, domainerrors.ErrInvalidSigningInput
	}

	session, err := uc.Sessions.GetSessionByToken(ctx, trimmed)
	if err != nil {
		return PollStatusResult{}, err
	}

	now := uc.now()
	switch {
	case session.Status == entities.StatusComplete:
		// Completed sessions stay readable: re-polls return a fresh scoped
		// download URL without re-casting the ballot.
		bdocURI, err := uc.Containers.SignedDownloadURL(ctx, session.ContainerRef, uc.containerRequest(session), now.Add(downloadURLTTL))
		if err != nil {
			return PollStatusResult{}, err
		}
		return PollStatusResult{ContainerRef: session.ContainerRef, BdocURI: bdocURI}, nil
	case session.Status == entities.StatusFailed:
		return PollStatusResult{}, domainerrors.MapProviderCode(session.FailureCode)
	case session.Expired(now):
		if _, failErr := uc.failSession(ctx, session, domainerrors.ProviderCodeTimeout, now); failErr != nil {
			return PollStatusResult{}, failErr
		}
		return PollStatusResult{}, domainerrors.ErrSigningTimeout
	case session.Method != entities.MethodMobileID:
		// An ID-card session between init and complete has nothing to poll
		// externally; it is simply still pending.
		return PollStatusResult{Pending: true}, nil
	}

	poll, err := uc.MobileID.PollSession(ctx, session.ExternalSessionID)
	if err != nil {
		return PollStatusResult{}, err
	}
	switch poll.State {
	case ports.MobileIDPollPending:
		if session.Status == entities.StatusChallengeIssued {
			session.Status = entities.StatusPolling
			session.UpdatedAt = now
			if err := uc.Sessions.UpdateSession(ctx, session); err != nil {
				return PollStatusResult{}, err
			}
		}
		return PollStatusResult{Pending: true}, nil
	case ports.MobileIDPollFailed:
		if _, failErr := uc.failSession(ctx, session, poll.ProviderCode, now); failErr != nil {
			return PollStatusResult{}, failErr
		}
		return PollStatusResult{}, domainerrors.MapProviderCode(poll.ProviderCode)
	case ports.MobileIDPollComplete:
		pid := strings.TrimSpace(poll.PID)
		if pid == "" {
			pid = session.PID
		}
		session, bdocURI, err := uc.completeSession(ctx, session, pid, poll.SignatureValue, now)
		if err != nil {
			return PollStatusResult{}, err
		}
		return PollStatusResult{ContainerRef: session.ContainerRef, BdocURI: bdocURI}, nil
	default:
		logger.Error("mobileid poll returned unknown state",
			"event", "signing_mobileid_poll_unknown_state",
			"module", "participation/signing-orchestrator",
			"layer", "application",
			"session_id", session.SessionID,
			"state", string(poll.State),
		)
		return PollStatusResult{}, domainerrors.ErrProviderFailure
	}
}
