package constants

import "time"

const (
	// SessionCookieName is the cookie carrying the signed session token.
	SessionCookieName = "token"
	// SessionTTL is how long a session token stays valid after login.
	SessionTTL = 24 * time.Hour

	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"

	MinPasswordLength = 6

	MaxSuggestedTasks = 20

	// SubscriberBuffer is the number of events queued per stream client
	// before further events are dropped for that client.
	SubscriberBuffer = 32
)
