package domain

import "strings"

// Identity is a chat or feed participant after ingestion-time normalization.
// The backend exposes users with several optional naming fields; whichever is
// present is resolved into CanonicalName exactly once, at the API boundary.
// Every later comparison uses CanonicalName alone.
type Identity struct {
	// ID is the backend's numeric user id. Zero when the identity was built
	// from a bare name on a message, where the backend sends no id.
	ID int64

	// CanonicalName is the normalized, unique display identity.
	CanonicalName string
}

// NewIdentity resolves the canonical name from the backend's optional
// username and display-name fields. Username wins when both are set.
func NewIdentity(id int64, username, name string) Identity {
	canonical := strings.TrimSpace(username)
	if canonical == "" {
		canonical = strings.TrimSpace(name)
	}
	return Identity{ID: id, CanonicalName: canonical}
}

// Zero reports whether the identity carries no resolvable name.
func (i Identity) Zero() bool {
	return i.CanonicalName == ""
}

// Is reports whether two identities refer to the same participant.
func (i Identity) Is(other Identity) bool {
	return !i.Zero() && i.CanonicalName == other.CanonicalName
}
