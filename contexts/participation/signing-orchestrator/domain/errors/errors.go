package errors

import "errors"

var (
	ErrInvalidSigningInput  = errors.New("invalid signing request")
	ErrVoteNotFound         = errors.New("vote not found")
	ErrVoteNotOpen          = errors.New("vote is not open")
	ErrHardAuthNotRequired  = errors.New("vote does not use hard authentication")
	ErrNoTopicAccess        = errors.New("user has no access to the topic")
	ErrSessionNotFound      = errors.New("signing session not found")
	ErrInvalidSessionState  = errors.New("signing session is not in the expected state")
	ErrSessionSuperseded    = errors.New("signing session was superseded by a newer attempt")
	ErrNotMobileIDClient    = errors.New("user is not a Mobile-ID client")
	ErrSignatureInvalid     = errors.New("signature verification failed")
	ErrCertificateRevoked   = errors.New("certificate has been revoked")
	ErrCertificateNotActive = errors.New("certificate is not activated")
	ErrCertificateSuspended = errors.New("certificate is suspended")
	ErrCertificateExpired   = errors.New("certificate has expired")
	ErrSigningTimeout       = errors.New("signing session timed out")
	ErrProviderFailure      = errors.New("signing provider rejected the request")
	ErrPidAlreadyLinked     = errors.New("this personal ID is already linked to another account")
	ErrAccountAlreadyLinked = errors.New("this account is already linked to another personal ID")
)

// Provider status codes as the external service reports them. Translation
// into the domain taxonomy happens here and nowhere else, for both signing
// methods.
const (
	ProviderCodeRevoked      = "REVOKED"
	ProviderCodeNotActivated = "NOT_ACTIVATED"
	ProviderCodeSuspended    = "SUSPENDED"
	ProviderCodeExpired      = "EXPIRED"
	ProviderCodeTimeout      = "TIMEOUT"
	ProviderCodeNotClient    = "NOT_MID_CLIENT"
)

// Failure codes recorded on sessions that fail outside the provider
// exchange. They run through MapProviderCode like provider codes so a
// later poll surfaces the same domain error the original caller saw.
const (
	FailureCodePidLinked     = "PID_ALREADY_LINKED"
	FailureCodeAccountLinked = "ACCOUNT_ALREADY_LINKED"
	FailureCodeSuperseded    = "SUPERSEDED"
)

func MapProviderCode(code string) error {
	switch code {
	case ProviderCodeRevoked:
		return ErrCertificateRevoked
	case ProviderCodeNotActivated:
		return ErrCertificateNotActive
	case ProviderCodeSuspended:
		return ErrCertificateSuspended
	case ProviderCodeExpired:
		return ErrCertificateExpired
	case ProviderCodeTimeout:
		return ErrSigningTimeout
	case ProviderCodeNotClient:
		return ErrNotMobileIDClient
	case FailureCodePidLinked:
		return ErrPidAlreadyLinked
	case FailureCodeAccountLinked:
		return ErrAccountAlreadyLinked
	case FailureCodeSuperseded:
		return ErrSessionSuperseded
	default:
		return ErrProviderFailure
	}
}
