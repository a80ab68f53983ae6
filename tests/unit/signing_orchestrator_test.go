package unit

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"

	containerbuilder "agora/contexts/participation/container-builder"
	signingorchestrator "agora/contexts/participation/signing-orchestrator"
	signingcontainer "agora/contexts/participation/signing-orchestrator/adapters/container"
	"agora/contexts/participation/signing-orchestrator/adapters/provider"
	signingtally "agora/contexts/participation/signing-orchestrator/adapters/tally"
	signingentities "agora/contexts/participation/signing-orchestrator/domain/entities"
	signingerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	signingtransport "agora/contexts/participation/signing-orchestrator/transport/http"
	tallyengine "agora/contexts/participation/tally-engine"
	tallyentities "agora/contexts/participation/tally-engine/domain/entities"
	tallytransport "agora/contexts/participation/tally-engine/transport/http"
)

var challengePattern = regexp.MustCompile(`^\d{4}$`)

type signingHarness struct {
	signing    signingorchestrator.Module
	tally      tallyengine.Module
	containers containerbuilder.Module
	voteID     string
	topicID    string
	optionIDs  []string
}

// newSigningHarness wires the three modules the way the composition root
// does: the orchestrator builds containers in the container module and casts
// hard ballots into the tally engine.
func newSigningHarness(t *testing.T, authType string, members ...string) signingHarness {
	t.Helper()
	tallyModule := tallyengine.NewInMemoryModule(nil, nil)
	vote, err := tallyModule.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   authType,
		Options:    []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}

	containerModule := containerbuilder.NewInMemoryModule("unit-secret", nil)
	optionIDs := make([]string, 0, len(vote.Options))
	for _, option := range vote.Options {
		optionIDs = append(optionIDs, option.OptionID)
		containerModule.Store.SetOptionValue(vote.VoteID, option.OptionID, option.Value)
	}

	signingModule := signingorchestrator.NewInMemoryModule(
		signingcontainer.Builder{Containers: containerModule.Builder},
		signingtally.Caster{Ballots: tallyModule.Ballots},
		nil,
	)
	signingModule.Store.SetVote(signingentities.VoteProjection{
		VoteID:   vote.VoteID,
		TopicID:  "topic-1",
		Status:   "open",
		AuthType: authType,
	})
	for _, member := range members {
		tallyModule.Store.SetTopicMember("topic-1", member)
		signingModule.Store.SetTopicMember("topic-1", member)
	}

	return signingHarness{
		signing:    signingModule,
		tally:      tallyModule,
		containers: containerModule,
		voteID:     vote.VoteID,
		topicID:    "topic-1",
		optionIDs:  optionIDs,
	}
}

func TestSigningIDCardFlowCastsHardBallot(t *testing.T) {
	h := newSigningHarness(t, "hard", "user-1")
	certificate := "CERT-" + provider.TestPIDOK

	initResp, err := h.signing.Handler.InitIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.InitIDCardRequest{
		Certificate: certificate,
		OptionIDs:   []string{h.optionIDs[0]},
	})
	if err != nil {
		t.Fatalf("idcard init failed: %v", err)
	}
	if initResp.Token == "" || initResp.SignedInfoDigest == "" {
		t.Fatalf("expected token and digest, got %+v", initResp)
	}

	signature := provider.SignDigest(certificate, initResp.SignedInfoDigest)
	complete, err := h.signing.Handler.CompleteIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.CompleteIDCardRequest{
		SignatureValue: signature,
	})
	if err != nil {
		t.Fatalf("idcard complete failed: %v", err)
	}
	if !strings.Contains(complete.BdocURI, "token=") {
		t.Fatalf("expected scoped download url, got %q", complete.BdocURI)
	}

	ballot, found, err := h.tally.Store.GetBallot(context.Background(), h.voteID, "user-1")
	if err != nil {
		t.Fatalf("load ballot failed: %v", err)
	}
	if !found {
		t.Fatalf("expected hard ballot cast on completion")
	}
	if ballot.AuthType != tallyentities.AuthTypeHard {
		t.Fatalf("expected hard auth ballot, got %s", ballot.AuthType)
	}
	if len(ballot.OptionIDs) != 1 || ballot.OptionIDs[0] != h.optionIDs[0] {
		t.Fatalf("unexpected ballot options %v", ballot.OptionIDs)
	}

	// The signed container is downloadable with the minted token and for
	// nobody without it.
	parsed, err := url.Parse(complete.BdocURI)
	if err != nil {
		t.Fatalf("parse bdoc uri failed: %v", err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	containerRef := segments[len(segments)-1]
	expires, err := strconv.ParseInt(parsed.Query().Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parse expires failed: %v", err)
	}
	container, err := h.containers.Builder.Download(context.Background(), containerRef, parsed.Query().Get("token"), expires)
	if err != nil {
		t.Fatalf("download signed container failed: %v", err)
	}
	if container.FileName != "vote_ballot.bdoc" {
		t.Fatalf("unexpected container file name %q", container.FileName)
	}
	if !strings.Contains(string(container.Payload), "Yes") {
		t.Fatalf("expected chosen option value in signed container")
	}
}

func TestSigningIDCardRejectsBadSignature(t *testing.T) {
	h := newSigningHarness(t, "hard", "user-1")
	certificate := "CERT-" + provider.TestPIDOK

	if _, err := h.signing.Handler.InitIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.InitIDCardRequest{
		Certificate: certificate,
		OptionIDs:   []string{h.optionIDs[0]},
	}); err != nil {
		t.Fatalf("idcard init failed: %v", err)
	}

	_, err := h.signing.Handler.CompleteIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.CompleteIDCardRequest{
		SignatureValue: "not-a-signature",
	})
	if !errors.Is(err, signingerrors.ErrSignatureInvalid) {
		t.Fatalf("expected invalid signature rejection, got %v", err)
	}

	if _, found, err := h.tally.Store.GetBallot(context.Background(), h.voteID, "user-1"); err != nil || found {
		t.Fatalf("expected no ballot after failed signing, found=%v err=%v", found, err)
	}
}

func TestSigningMobileIDFlowCompletesAfterPolling(t *testing.T) {
	h := newSigningHarness(t, "hard", "user-1")

	initResp, err := h.signing.Handler.InitMobileIDHandler(context.Background(), h.voteID, "user-1", signingtransport.InitMobileIDRequest{
		PhoneNumber: provider.TestPhoneOK,
		PID:         provider.TestPIDOK,
		OptionIDs:   []string{h.optionIDs[1]},
	})
	if err != nil {
		t.Fatalf("mobileid init failed: %v", err)
	}
	if !challengePattern.MatchString(initResp.ChallengeID) {
		t.Fatalf("expected 4-digit challenge, got %q", initResp.ChallengeID)
	}

	// The simulator stays pending for its first polls.
	for i := 0; i < 2; i++ {
		pending, complete, err := h.signing.Handler.PollStatusHandler(context.Background(), initResp.Token)
		if err != nil {
			t.Fatalf("poll %d failed: %v", i+1, err)
		}
		if complete != nil {
			t.Fatalf("expected pending on poll %d", i+1)
		}
		if pending == nil || pending.Status != signingtransport.StatusPendingIndicator {
			t.Fatalf("unexpected pending response on poll %d: %+v", i+1, pending)
		}
	}

	_, complete, err := h.signing.Handler.PollStatusHandler(context.Background(), initResp.Token)
	if err != nil {
		t.Fatalf("final poll failed: %v", err)
	}
	if complete == nil || !strings.Contains(complete.BdocURI, "token=") {
		t.Fatalf("expected completed session with download url, got %+v", complete)
	}

	ballot, found, err := h.tally.Store.GetBallot(context.Background(), h.voteID, "user-1")
	if err != nil || !found {
		t.Fatalf("expected hard ballot after mobileid completion, found=%v err=%v", found, err)
	}
	if ballot.OptionIDs[0] != h.optionIDs[1] {
		t.Fatalf("unexpected ballot option %v", ballot.OptionIDs)
	}

	// Re-polls of a completed session return a fresh url and never re-cast.
	_, again, err := h.signing.Handler.PollStatusHandler(context.Background(), initResp.Token)
	if err != nil {
		t.Fatalf("re-poll failed: %v", err)
	}
	if again == nil || again.BdocURI == "" {
		t.Fatalf("expected completed response on re-poll, got %+v", again)
	}
}

func TestSigningMobileIDCertificateOutcomes(t *testing.T) {
	cases := []struct {
		name string
		pid  string
		want error
	}{
		{name: "revoked", pid: provider.TestPIDRevoked, want: signingerrors.ErrCertificateRevoked},
		{name: "not activated", pid: provider.TestPIDNotActive, want: signingerrors.ErrCertificateNotActive},
		{name: "suspended", pid: provider.TestPIDSuspended, want: signingerrors.ErrCertificateSuspended},
		{name: "expired", pid: provider.TestPIDExpired, want: signingerrors.ErrCertificateExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newSigningHarness(t, "hard", "user-1")
			initResp, err := h.signing.Handler.InitMobileIDHandler(context.Background(), h.voteID, "user-1", signingtransport.InitMobileIDRequest{
				PhoneNumber: "+37200000001",
				PID:         tc.pid,
				OptionIDs:   []string{h.optionIDs[0]},
			})
			if err != nil {
				t.Fatalf("mobileid init failed: %v", err)
			}
			_, _, err = h.signing.Handler.PollStatusHandler(context.Background(), initResp.Token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			// The failure is terminal and sticky.
			_, _, err = h.signing.Handler.PollStatusHandler(context.Background(), initResp.Token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected sticky %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSigningInitAuthorization(t *testing.T) {
	soft := newSigningHarness(t, "soft", "user-1")
	_, err := soft.signing.Handler.InitIDCardHandler(context.Background(), soft.voteID, "user-1", signingtransport.InitIDCardRequest{
		Certificate: "CERT-" + provider.TestPIDOK,
		OptionIDs:   []string{soft.optionIDs[0]},
	})
	if !errors.Is(err, signingerrors.ErrHardAuthNotRequired) {
		t.Fatalf("expected hard auth not required rejection, got %v", err)
	}

	hard := newSigningHarness(t, "hard", "user-1")
	_, err = hard.signing.Handler.InitIDCardHandler(context.Background(), hard.voteID, "outsider-1", signingtransport.InitIDCardRequest{
		Certificate: "CERT-" + provider.TestPIDOK,
		OptionIDs:   []string{hard.optionIDs[0]},
	})
	if !errors.Is(err, signingerrors.ErrNoTopicAccess) {
		t.Fatalf("expected topic access rejection, got %v", err)
	}

	_, err = hard.signing.Handler.InitMobileIDHandler(context.Background(), hard.voteID, "user-1", signingtransport.InitMobileIDRequest{
		PhoneNumber: "12345",
		PID:         provider.TestPIDOK,
		OptionIDs:   []string{hard.optionIDs[0]},
	})
	if !errors.Is(err, signingerrors.ErrNotMobileIDClient) {
		t.Fatalf("expected phone format rejection, got %v", err)
	}
}

func TestSigningIdentityLinkConflicts(t *testing.T) {
	h := newSigningHarness(t, "hard", "user-1", "user-2")
	certificate := "CERT-" + provider.TestPIDOK

	initResp, err := h.signing.Handler.InitIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.InitIDCardRequest{
		Certificate: certificate,
		OptionIDs:   []string{h.optionIDs[0]},
	})
	if err != nil {
		t.Fatalf("idcard init failed: %v", err)
	}
	if _, err := h.signing.Handler.CompleteIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.CompleteIDCardRequest{
		SignatureValue: provider.SignDigest(certificate, initResp.SignedInfoDigest),
	}); err != nil {
		t.Fatalf("idcard complete failed: %v", err)
	}

	// The same national identity cannot bind a second account.
	otherInit, err := h.signing.Handler.InitIDCardHandler(context.Background(), h.voteID, "user-2", signingtransport.InitIDCardRequest{
		Certificate: certificate,
		OptionIDs:   []string{h.optionIDs[0]},
	})
	if err != nil {
		t.Fatalf("second account init failed: %v", err)
	}
	_, err = h.signing.Handler.CompleteIDCardHandler(context.Background(), h.voteID, "user-2", signingtransport.CompleteIDCardRequest{
		SignatureValue: provider.SignDigest(certificate, otherInit.SignedInfoDigest),
	})
	if !errors.Is(err, signingerrors.ErrPidAlreadyLinked) {
		t.Fatalf("expected pid conflict, got %v", err)
	}

	// A later poll of the failed session reports the same conflict, not a
	// generic provider failure.
	if _, _, err := h.signing.Handler.PollStatusHandler(context.Background(), otherInit.Token); !errors.Is(err, signingerrors.ErrPidAlreadyLinked) {
		t.Fatalf("expected pid conflict on poll, got %v", err)
	}

	// Nor can a linked account sign with a different national identity.
	otherCert := "CERT-11412090099"
	swapInit, err := h.signing.Handler.InitIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.InitIDCardRequest{
		Certificate: otherCert,
		OptionIDs:   []string{h.optionIDs[0]},
	})
	if err != nil {
		t.Fatalf("swap identity init failed: %v", err)
	}
	_, err = h.signing.Handler.CompleteIDCardHandler(context.Background(), h.voteID, "user-1", signingtransport.CompleteIDCardRequest{
		SignatureValue: provider.SignDigest(otherCert, swapInit.SignedInfoDigest),
	})
	if !errors.Is(err, signingerrors.ErrAccountAlreadyLinked) {
		t.Fatalf("expected account conflict, got %v", err)
	}
}

func TestSigningReinitSupersedesPendingSession(t *testing.T) {
	h := newSigningHarness(t, "hard", "user-1")

	first, err := h.signing.Handler.InitMobileIDHandler(context.Background(), h.voteID, "user-1", signingtransport.InitMobileIDRequest{
		PhoneNumber: provider.TestPhoneOK,
		PID:         provider.TestPIDOK,
		OptionIDs:   []string{h.optionIDs[0]},
	})
	if err != nil {
		t.Fatalf("first mobileid init failed: %v", err)
	}
	second, err := h.signing.Handler.InitMobileIDHandler(context.Background(), h.voteID, "user-1", signingtransport.InitMobileIDRequest{
		PhoneNumber: provider.TestPhoneOK,
		PID:         provider.TestPIDOK,
		OptionIDs:   []string{h.optionIDs[1]},
	})
	if err != nil {
		t.Fatalf("second mobileid init failed: %v", err)
	}
	if first.Token == second.Token {
		t.Fatalf("expected distinct session tokens")
	}

	// The superseded session is terminally failed and says so on poll.
	if _, _, err := h.signing.Handler.PollStatusHandler(context.Background(), first.Token); !errors.Is(err, signingerrors.ErrSessionSuperseded) {
		t.Fatalf("expected superseded session poll error, got %v", err)
	}

	// The replacement runs to completion with its own option set.
	var completed bool
	for i := 0; i < 4; i++ {
		_, complete, err := h.signing.Handler.PollStatusHandler(context.Background(), second.Token)
		if err != nil {
			t.Fatalf("poll replacement session failed: %v", err)
		}
		if complete != nil {
			completed = true
			break
		}
	}
	if !completed {
		t.Fatalf("expected replacement session to complete")
	}
	ballot, found, err := h.tally.Store.GetBallot(context.Background(), h.voteID, "user-1")
	if err != nil || !found {
		t.Fatalf("expected ballot from replacement session, found=%v err=%v", found, err)
	}
	if ballot.OptionIDs[0] != h.optionIDs[1] {
		t.Fatalf("expected replacement option choice, got %v", ballot.OptionIDs)
	}
}
