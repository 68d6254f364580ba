package blacklist

import "time"

// Entry identifies one issued token by its jti. Entries are kept until
// ExpiresAt, the token's exp plus the parser leeway; after that the token is
// rejected on expiry alone.
type Entry struct {
	TokenID   string
	UserID    string
	TokenType string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Remaining returns how long the entry must be retained at now, or zero when
// the token is already past its expiry.
func (e Entry) Remaining(now time.Time) time.Duration {
	d := e.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return d
}
