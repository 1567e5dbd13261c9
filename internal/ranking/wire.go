package ranking

// TopicLeaderboard is the push topic carrying ranking snapshots.
const TopicLeaderboard = "leaderboard"

// SubscribeParams is the parameter block sent with a leaderboard
// subscription request.
type SubscribeParams struct {
	Period Period `json:"period"`
}

// PushPayload is an inbound message on the leaderboard topic. Period may
// be absent; the consumer then attributes the payload to the most recent
// subscribe request (tolerated, logged as a protocol smell).
type PushPayload struct {
	Period          Period    `json:"period,omitempty"`
	Leaderboard     []Entrant `json:"leaderboard"`
	CurrentUserRank *int      `json:"currentUserRank,omitempty"`
}

// FetchResult is the REST fallback response for one period. The
// CurrentUserInfo side channel is present only when the authenticated
// user is outside the returned top-N.
type FetchResult struct {
	Leaderboard     []Entrant         `json:"leaderboard"`
	CurrentUserInfo *OutOfWindowEntry `json:"currentUserInfo,omitempty"`
}
