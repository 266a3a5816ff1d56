package service

// SessionState is the position of a client session in the token
// rotation protocol.
type SessionState string

const (
	StateAnonymous             SessionState = "Anonymous"
	StateAuthenticated         SessionState = "Authenticated"
	StateExpiredPendingRefresh SessionState = "ExpiredPendingRefresh"
	StateRejected              SessionState = "Rejected"
)
