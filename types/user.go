package types

import "time"

// Roles a user account can hold, ordered from least to most privileged.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

var roleRank = map[string]int{
	RoleUser:      0,
	RoleModerator: 1,
	RoleAdmin:     2,
}

// RoleRank returns the privilege rank of a role. Unknown roles rank below
// every defined role.
func RoleRank(role string) int {
	if rank, ok := roleRank[role]; ok {
		return rank
	}
	return -1
}

// RoleAtLeast reports whether role meets or exceeds the required minimum.
func RoleAtLeast(role, minimum string) bool {
	return RoleRank(role) >= RoleRank(minimum)
}

// ValidRole reports whether role is one of the defined account roles.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// User represents an account in the archive.
// It contains identity, authorization, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's email address, stored lowercased and unique.
	Email string `json:"email" db:"email"`

	// Username is the unique public name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level within the archive:
	// "user", "moderator", or "admin".
	Role string `json:"role" db:"role"`

	// IsBanned marks an account locked out by a moderator. Banned users
	// cannot log in, and their existing tokens are refused on mutation.
	IsBanned bool `json:"is_banned" db:"is_banned"`

	// AgeVerified records that the user has confirmed being of age.
	// Required before uploading mature or explicit works.
	AgeVerified bool `json:"age_verified" db:"age_verified"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent account change.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
