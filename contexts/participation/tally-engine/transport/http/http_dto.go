package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateVoteRequest is the payload for POST /api/votes.
type CreateVoteRequest struct {
	TopicID           string   `json:"topic_id"`
	MinChoices        int      `json:"min_choices"`
	MaxChoices        int      `json:"max_choices"`
	DelegationAllowed bool     `json:"delegation_allowed"`
	AuthType          string   `json:"auth_type"`
	EndsAt            string   `json:"ends_at,omitempty"`
	Description       string   `json:"description,omitempty"`
	Options           []string `json:"options"`
}

type VoteOptionResponse struct {
	OptionID string `json:"option_id"`
	Value    string `json:"value"`
}

type VoteResponse struct {
	VoteID            string               `json:"vote_id"`
	TopicID           string               `json:"topic_id"`
	MinChoices        int                  `json:"min_choices"`
	MaxChoices        int                  `json:"max_choices"`
	DelegationAllowed bool                 `json:"delegation_allowed"`
	AuthType          string               `json:"auth_type"`
	EndsAt            string               `json:"ends_at,omitempty"`
	Description       string               `json:"description,omitempty"`
	Status            string               `json:"status"`
	Options           []VoteOptionResponse `json:"options"`
}

// CastBallotRequest is the payload for POST /api/votes/{vote_id}/ballots.
// Hard-auth votes never accept this route; they go through the signing flow.
type CastBallotRequest struct {
	OptionIDs []string `json:"option_ids"`
}

type BallotResponse struct {
	BallotID  string   `json:"ballot_id"`
	VoteID    string   `json:"vote_id"`
	VoterID   string   `json:"voter_id"`
	OptionIDs []string `json:"option_ids"`
	AuthType  string   `json:"auth_type"`
	Replaced  bool     `json:"replaced"`
}

type OptionResultResponse struct {
	OptionID string `json:"option_id"`
	Value    string `json:"value"`
	Count    int    `json:"count"`
}

type VoteResultsResponse struct {
	VoteID         string                 `json:"vote_id"`
	EligibleVoters int                    `json:"eligible_voters"`
	BallotsCounted int                    `json:"ballots_counted"`
	Options        []OptionResultResponse `json:"options"`
}
