// Package revocation tracks access tokens that were invalidated before
// their natural expiry, such as on logout or after a reuse event. Entries
// only need to live as long as the token they shadow.
package revocation

import (
	"context"
	"time"
)

type Store interface {
	// Revoke marks a token invalid until expiresAt.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked reports whether the token was revoked and is still unexpired.
	IsRevoked(ctx context.Context, token string) (bool, error)
}
