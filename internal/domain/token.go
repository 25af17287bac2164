package domain

import "time"

// AuthToken is the persisted record backing a refresh token. Only an
// irreversible hash of the raw token is stored; the raw token never touches
// the database.
type AuthToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsActive reports whether the token is still usable at the given instant:
// not revoked and not expired.
func (t *AuthToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
