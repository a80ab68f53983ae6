package containeradapter

import (
	"context"
	"time"

	"agora/contexts/participation/container-builder/application"
	containerports "agora/contexts/participation/container-builder/ports"
	"agora/contexts/participation/signing-orchestrator/ports"
)

// Builder adapts the container-builder module to the orchestrator's
// container port.
type Builder struct {
	Containers application.BuilderUseCase
}

func (b Builder) BuildUnsigned(ctx context.Context, req ports.ContainerRequest) ([]byte, error) {
	return b.Containers.BuildUnsigned(ctx, buildRequest(req))
}

func (b Builder) FinalizeSigned(ctx context.Context, req ports.ContainerRequest, signatureValue string) (string, error) {
	return b.Containers.FinalizeSigned(ctx, buildRequest(req), signatureValue)
}

func (b Builder) SignedDownloadURL(
	ctx context.Context,
	containerRef string,
	req ports.ContainerRequest,
	expiresAt time.Time,
) (string, error) {
	return b.Containers.SignedDownloadURL(ctx, containerRef, buildRequest(req), expiresAt)
}

func buildRequest(req ports.ContainerRequest) containerports.BuildRequest {
	return containerports.BuildRequest{
		TopicID:   req.TopicID,
		VoteID:    req.VoteID,
		UserID:    req.UserID,
		OptionIDs: req.OptionIDs,
	}
}

var _ ports.ContainerBuilder = Builder{}
