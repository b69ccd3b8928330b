package domain

import "errors"

// ErrNoMorePosts is returned by swipe operations when the visible queue is
// empty.
var ErrNoMorePosts = errors.New("no more posts")

// ValidationError reports a client-side rejection: the draft never reaches
// the gateway.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
