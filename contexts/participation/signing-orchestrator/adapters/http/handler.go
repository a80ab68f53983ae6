package httpadapter

import (
	"context"
	"log/slog"

	"agora/contexts/participation/signing-orchestrator/application/commands"
	httptransport "agora/contexts/participation/signing-orchestrator/transport/http"
)

type Handler struct {
	Signing commands.SigningUseCase
	Logger  *slog.Logger
}

func (h Handler) InitIDCardHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.InitIDCardRequest,
) (httptransport.InitIDCardResponse, error) {
	result, err := h.Signing.InitIDCard(ctx, commands.InitIDCardCommand{
		VoteID:      voteID,
		UserID:      userID,
		Certificate: req.Certificate,
		OptionIDs:   req.OptionIDs,
	})
	if err != nil {
		return httptransport.InitIDCardResponse{}, err
	}
	return httptransport.InitIDCardResponse{
		Token:            result.Token,
		SignedInfoDigest: result.SignedInfoDigest,
	}, nil
}

func (h Handler) CompleteIDCardHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.CompleteIDCardRequest,
) (httptransport.CompleteIDCardResponse, error) {
	result, err := h.Signing.CompleteIDCard(ctx, commands.CompleteIDCardCommand{
		VoteID:         voteID,
		UserID:         userID,
		SignatureValue: req.SignatureValue,
	})
	if err != nil {
		return httptransport.CompleteIDCardResponse{}, err
	}
	return httptransport.CompleteIDCardResponse{BdocURI: result.BdocURI}, nil
}

func (h Handler) InitMobileIDHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.InitMobileIDRequest,
) (httptransport.InitMobileIDResponse, error) {
	result, err := h.Signing.InitMobileID(ctx, commands.InitMobileIDCommand{
		VoteID:      voteID,
		UserID:      userID,
		PhoneNumber: req.PhoneNumber,
		PID:         req.PID,
		OptionIDs:   req.OptionIDs,
	})
	if err != nil {
		return httptransport.InitMobileIDResponse{}, err
	}
	return httptransport.InitMobileIDResponse{
		Token:       result.Token,
		ChallengeID: result.ChallengeCode,
	}, nil
}

// PollStatusHandler returns (pending response, complete response, error);
// exactly one of the three is meaningful.
func (h Handler) PollStatusHandler(ctx context.Context, token string) (*httptransport.StatusPendingResponse, *httptransport.StatusCompleteResponse, error) {
	result, err := h.Signing.PollStatus(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if result.Pending {
		return &httptransport.StatusPendingResponse{Status: httptransport.StatusPendingIndicator}, nil, nil
	}
	return nil, &httptransport.StatusCompleteResponse{BdocURI: result.BdocURI}, nil
}
