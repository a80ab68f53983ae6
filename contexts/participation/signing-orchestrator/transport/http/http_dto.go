package httptransport

// Signing wire names follow the external client contract (camelCase,
// "challengeID", "bdocUri") rather than the internal snake_case convention.

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type InitIDCardRequest struct {
	Certificate string   `json:"certificate"`
	OptionIDs   []string `json:"options"`
}

type InitIDCardResponse struct {
	Token            string `json:"token"`
	SignedInfoDigest string `json:"signedInfoDigest"`
}

type CompleteIDCardRequest struct {
	SignatureValue string `json:"signatureValue"`
}

type CompleteIDCardResponse struct {
	BdocURI string `json:"bdocUri"`
}

type InitMobileIDRequest struct {
	PhoneNumber string   `json:"phoneNumber"`
	PID         string   `json:"pid"`
	OptionIDs   []string `json:"options"`
}

type InitMobileIDResponse struct {
	Token       string `json:"token"`
	ChallengeID string `json:"challengeID"`
}

// StatusPendingIndicator is the literal body clients poll against.
const StatusPendingIndicator = "Signing in progress"

type StatusPendingResponse struct {
	Status string `json:"status"`
}

type StatusCompleteResponse struct {
	BdocURI string `json:"bdocUri"`
}
