package retry

import "time"

// Named policies used across the engine. Keeping them here means one place
// defines how many attempts each class of operation gets.
var (
	// TokenRefresh covers credential refresh calls against a platform's
	// token endpoint.
	TokenRefresh = Policy{
		Name:        "token-refresh",
		MaxAttempts: 3,
		Backoff:     Linear(time.Second),
	}

	// PlaylistPush covers playlist content writes. Auth failures are handled
	// by the caller with an inline refresh, so every error is retryable here.
	PlaylistPush = Policy{
		Name:        "playlist-push",
		MaxAttempts: 3,
		Backoff:     Linear(2 * time.Second),
	}
)
