package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SetDelegationRequest struct {
	ToUserID string `json:"to_user_id"`
}

type DelegationResponse struct {
	VoteID   string `json:"vote_id"`
	ByUserID string `json:"by_user_id"`
	ToUserID string `json:"to_user_id"`
	Replaced bool   `json:"replaced"`
}

type DelegationItem struct {
	ByUserID  string `json:"by_user_id"`
	ToUserID  string `json:"to_user_id"`
	CreatedAt string `json:"created_at"`
}

type DelegationListResponse struct {
	VoteID string           `json:"vote_id"`
	Items  []DelegationItem `json:"items"`
}
