package unit

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	containerbuilder "agora/contexts/participation/container-builder"
	containererrors "agora/contexts/participation/container-builder/domain/errors"
	containerports "agora/contexts/participation/container-builder/ports"
)

func TestContainerBuildFinalizeAndScopedDownload(t *testing.T) {
	module := containerbuilder.NewInMemoryModule("unit-secret", nil)
	module.Store.SetOptionValue("vote-1", "option-1", "Yes")
	req := containerports.BuildRequest{
		TopicID:   "topic-1",
		VoteID:    "vote-1",
		UserID:    "user-1",
		OptionIDs: []string{"option-1"},
	}

	payload, err := module.Builder.BuildUnsigned(context.Background(), req)
	if err != nil {
		t.Fatalf("build unsigned failed: %v", err)
	}
	if !strings.Contains(string(payload), "Yes") {
		t.Fatalf("expected option value in unsigned document")
	}

	ref, err := module.Builder.FinalizeSigned(context.Background(), req, "signature-value")
	if err != nil {
		t.Fatalf("finalize signed failed: %v", err)
	}

	expiresAt := time.Now().UTC().Add(15 * time.Minute)
	uri, err := module.Builder.SignedDownloadURL(context.Background(), ref, req, expiresAt)
	if err != nil {
		t.Fatalf("mint download url failed: %v", err)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse download url failed: %v", err)
	}
	token := parsed.Query().Get("token")
	expires, err := strconv.ParseInt(parsed.Query().Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parse expires failed: %v", err)
	}

	container, err := module.Builder.Download(context.Background(), ref, token, expires)
	if err != nil {
		t.Fatalf("download with valid token failed: %v", err)
	}
	if container.MimeType != "application/vnd.etsi.asic-e+zip" {
		t.Fatalf("unexpected container mime type %q", container.MimeType)
	}
	if container.UserID != "user-1" || container.VoteID != "vote-1" {
		t.Fatalf("unexpected container scope %s/%s", container.VoteID, container.UserID)
	}

	_, err = module.Builder.Download(context.Background(), ref, "forged-token", expires)
	if !errors.Is(err, containererrors.ErrDownloadTokenInvalid) {
		t.Fatalf("expected invalid token rejection, got %v", err)
	}

	// A token minted for one expiry cannot be replayed with another: the
	// expiry is part of the signed scope.
	_, err = module.Builder.Download(context.Background(), ref, token, expires+3600)
	if !errors.Is(err, containererrors.ErrDownloadTokenInvalid) {
		t.Fatalf("expected expiry tamper rejection, got %v", err)
	}

	expiredAt := time.Now().UTC().Add(-time.Minute)
	expiredURI, err := module.Builder.SignedDownloadURL(context.Background(), ref, req, expiredAt)
	if err != nil {
		t.Fatalf("mint expired url failed: %v", err)
	}
	expiredParsed, _ := url.Parse(expiredURI)
	expiredUnix, _ := strconv.ParseInt(expiredParsed.Query().Get("expires"), 10, 64)
	_, err = module.Builder.Download(context.Background(), ref, expiredParsed.Query().Get("token"), expiredUnix)
	if !errors.Is(err, containererrors.ErrDownloadTokenExpired) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}

	_, err = module.Builder.Download(context.Background(), "missing-ref", token, expires)
	if !errors.Is(err, containererrors.ErrContainerNotFound) {
		t.Fatalf("expected missing container rejection, got %v", err)
	}
}

func TestContainerBuildRejectsUnknownOptions(t *testing.T) {
	module := containerbuilder.NewInMemoryModule("unit-secret", nil)
	_, err := module.Builder.BuildUnsigned(context.Background(), containerports.BuildRequest{
		TopicID:   "topic-1",
		VoteID:    "vote-1",
		UserID:    "user-1",
		OptionIDs: []string{"option-unknown"},
	})
	if !errors.Is(err, containererrors.ErrInvalidContainerInput) {
		t.Fatalf("expected unknown option rejection, got %v", err)
	}
}
