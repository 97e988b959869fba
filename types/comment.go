package types

import "time"

// Comment is a user's remark on a fanwork. Comments are immutable once
// created.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// FanworkID identifies the work the comment belongs to.
	FanworkID int `json:"fanwork_id" db:"fanwork_id"`

	// UserID identifies the commenting user.
	UserID int `json:"user_id" db:"user_id"`

	// Username is the commenting user's public name, joined in for
	// list responses.
	Username string `json:"username,omitempty" db:"username"`

	// Content is the comment text.
	Content string `json:"content" db:"content"`

	// CreatedAt is the timestamp when the comment was posted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
