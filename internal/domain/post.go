package domain

import "time"

// Post is one feed entry: a project pitch published by another user.
type Post struct {
	ID          int64
	AuthorID    int64
	Author      Identity
	Title       string
	Description string
	Category    string
	Stack       string
	ImageRef    string
}

// SwipeDirection is the recorded reaction to a feed post.
type SwipeDirection string

const (
	DirectionLeft  SwipeDirection = "LEFT"
	DirectionRight SwipeDirection = "RIGHT"
)

// SwipeRecord is the write-only record of a single swipe. The client sends
// it to the backend and never reads it back in this form.
type SwipeRecord struct {
	PostID    int64
	UserID    int64
	Direction SwipeDirection
	Timestamp time.Time
}

// ContributedPost is a post the user right-swiped, kept in a side list for
// later display together with when the swipe happened.
type ContributedPost struct {
	Post
	SwipedAt time.Time
}
