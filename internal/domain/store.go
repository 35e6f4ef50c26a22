package domain

// TokenStore persists the session tokens between runs.
// Implementations store the two tokens under the keys "access_token" and
// "refresh_token" and must treat a missing key as "no session".
type TokenStore interface {
	// Load returns the persisted session, or false when none is stored
	Load() (Session, bool, error)

	// Save replaces both tokens
	Save(s Session) error

	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear() error

	Close() error
}
