package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"

	domainerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	"agora/contexts/participation/signing-orchestrator/ports"

	"github.com/google/uuid"
)

// Well-known provider test identities. The OK pair completes after a short
// poll count; the remaining PIDs map to fixed certificate outcomes.
const (
	TestPhoneOK      = "+37200000766"
	TestPIDOK        = "11412090004"
	TestPIDRevoked   = "11412090001"
	TestPIDNotActive = "11412090002"
	TestPIDSuspended = "11412090003"
	TestPIDExpired   = "11412090005"
)

var certificatePID = regexp.MustCompile(`\d{11}`)

// Simulator is an in-process stand-in for the external ID-card/Mobile-ID
// signing service. It keeps the provider protocol shape (digest exchange,
// challenge issuance, code-carrying poll states) so the orchestrator is
// wired exactly as it will be against the real collaborator.
type Simulator struct {
	mu sync.Mutex
	// PollsUntilComplete is how many pending reads a successful Mobile-ID
	// session reports before completing.
	PollsUntilComplete int
	sessions           map[string]*mobileSession
}

type mobileSession struct {
	pid   string
	polls int
}

func NewSimulator() *Simulator {
	return &Simulator{
		PollsUntilComplete: 2,
		sessions:           make(map[string]*mobileSession),
	}
}

func (s *Simulator) PrepareDigest(_ context.Context, certificate string, payload []byte) (string, error) {
	if strings.TrimSpace(certificate) == "" {
		return "", domainerrors.ErrInvalidSigningInput
	}
	sum := sha256.Sum256(append([]byte(certificate+"|"), payload...))
	return hex.EncodeToString(sum[:]), nil
}

func (s *Simulator) VerifySignature(
	_ context.Context,
	certificate string,
	digest string,
	signatureValue string,
) (ports.IDCardVerification, error) {
	pid := certificatePID.FindString(certificate)
	if pid == "" {
		return ports.IDCardVerification{ProviderCode: domainerrors.ProviderCodeNotClient}, nil
	}
	if code, failed := certificateOutcome(pid); failed {
		return ports.IDCardVerification{ProviderCode: code}, nil
	}
	if signatureValue != SignDigest(certificate, digest) {
		return ports.IDCardVerification{}, nil
	}
	return ports.IDCardVerification{OK: true, PID: pid}, nil
}

func (s *Simulator) StartSession(
	_ context.Context,
	phoneNumber string,
	pid string,
	_ []byte,
) (ports.MobileIDChallenge, error) {
	if strings.TrimSpace(phoneNumber) == "" || strings.TrimSpace(pid) == "" {
		return ports.MobileIDChallenge{}, domainerrors.ErrNotMobileIDClient
	}
	externalID := uuid.NewString()
	s.mu.Lock()
	s.sessions[externalID] = &mobileSession{pid: strings.TrimSpace(pid)}
	s.mu.Unlock()
	return ports.MobileIDChallenge{
		ExternalSessionID: externalID,
		ChallengeCode:     challengeFor(externalID),
	}, nil
}

func (s *Simulator) PollSession(_ context.Context, externalSessionID string) (ports.MobileIDPoll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[externalSessionID]
	if !ok {
		return ports.MobileIDPoll{
			State:        ports.MobileIDPollFailed,
			ProviderCode: domainerrors.ProviderCodeTimeout,
		}, nil
	}
	session.polls++
	if code, failed := certificateOutcome(session.pid); failed {
		return ports.MobileIDPoll{State: ports.MobileIDPollFailed, ProviderCode: code}, nil
	}
	threshold := s.PollsUntilComplete
	if threshold <= 0 {
		threshold = 2
	}
	if session.polls <= threshold {
		return ports.MobileIDPoll{State: ports.MobileIDPollPending}, nil
	}
	return ports.MobileIDPoll{
		State:          ports.MobileIDPollComplete,
		PID:            session.pid,
		SignatureValue: SignDigest(session.pid, externalSessionID),
	}, nil
}

// SignDigest produces the signature value the simulator accepts for a
// digest under a certificate. Clients of the real service get this from
// local certificate middleware.
func SignDigest(certificate string, digest string) string {
	sum := sha256.Sum256([]byte("signed|" + certificate + "|" + digest))
	return hex.EncodeToString(sum[:])
}

func certificateOutcome(pid string) (string, bool) {
	switch pid {
	case TestPIDRevoked:
		return domainerrors.ProviderCodeRevoked, true
	case TestPIDNotActive:
		return domainerrors.ProviderCodeNotActivated, true
	case TestPIDSuspended:
		return domainerrors.ProviderCodeSuspended, true
	case TestPIDExpired:
		return domainerrors.ProviderCodeExpired, true
	default:
		return "", false
	}
}

func challengeFor(externalSessionID string) string {
	sum := sha256.Sum256([]byte(externalSessionID))
	value := int(sum[0])<<8 | int(sum[1])
	return fmt.Sprintf("%04d", value%10000)
}

var _ ports.IDCardProvider = (*Simulator)(nil)
var _ ports.MobileIDProvider = (*Simulator)(nil)
