package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	signingmemory "agora/contexts/participation/signing-orchestrator/adapters/memory"
	signingworkers "agora/contexts/participation/signing-orchestrator/application/workers"
	signingentities "agora/contexts/participation/signing-orchestrator/domain/entities"
	signingerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
)

func TestSigningSessionReaperFailsExpiredSessions(t *testing.T) {
	now := time.Date(2026, 8, 22, 11, 0, 0, 0, time.UTC)
	store := signingmemory.NewStore()
	if err := store.ReplacePending(context.Background(), signingentities.SigningSession{
		SessionID: "session-1",
		VoteID:    "vote-1",
		TopicID:   "topic-1",
		UserID:    "user-1",
		Method:    signingentities.MethodMobileID,
		Status:    signingentities.StatusPolling,
		Token:     "token-1",
		OptionIDs: []string{"option-1"},
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now.Add(-2 * time.Minute),
		UpdatedAt: now.Add(-2 * time.Minute),
	}); err != nil {
		t.Fatalf("seed pending session failed: %v", err)
	}

	reaper := signingworkers.SessionReaper{
		Sessions:  store,
		Outbox:    store,
		Clock:     fixedClock{now: now},
		IDGen:     store,
		BatchSize: 10,
	}
	if err := reaper.RunOnce(context.Background()); err != nil {
		t.Fatalf("session reap failed: %v", err)
	}

	session, err := store.GetSessionByToken(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("load session after reap failed: %v", err)
	}
	if session.Status != signingentities.StatusFailed {
		t.Fatalf("expected reaped session failed, got %s", session.Status)
	}
	if session.FailureCode != signingerrors.ProviderCodeTimeout {
		t.Fatalf("expected timeout failure code, got %q", session.FailureCode)
	}

	outbox, err := store.ListPendingOutbox(context.Background(), 20)
	if err != nil {
		t.Fatalf("list signing outbox failed: %v", err)
	}
	foundFailed := false
	for _, message := range outbox {
		var event struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(message.Payload, &event); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		if event.EventType == "signing.session.failed" {
			foundFailed = true
		}
	}
	if !foundFailed {
		t.Fatalf("expected signing.session.failed event in outbox")
	}

	// A reaped session no longer counts as pending.
	if _, found, err := store.GetPendingSession(context.Background(), "vote-1", "user-1"); err != nil || found {
		t.Fatalf("expected no pending session after reap, found=%v err=%v", found, err)
	}
}
