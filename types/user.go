package types

import "time"

// Role is the authorization level of a user account.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Picture is a stored image reference with its pixel dimensions.
type Picture struct {
	// URL is the public location of the image.
	URL string `json:"url" db:"url"`

	// Width is the image width in pixels, zero when unknown.
	Width int `json:"width" db:"width"`

	// Height is the image height in pixels, zero when unknown.
	Height int `json:"height" db:"height"`
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Username is the system-generated login name. It is unique and
	// never changes after the account is created.
	Username string `json:"username" db:"username"`

	// FirstName is the user's given name.
	FirstName string `json:"firstName" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"lastName" db:"last_name"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the Argon2id PHC string of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	// Avatar is the optional profile picture.
	Avatar *Picture `json:"avatar"`

	// ClassRoomID references the class a student is enrolled in, if any.
	ClassRoomID *string `json:"classRoomId,omitempty" db:"class_room_id"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AuthorizedUser is the claim projection of a User embedded in access and
// refresh tokens. It never carries the password hash.
type AuthorizedUser struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Role      Role     `json:"role"`
	Avatar    *Picture `json:"avatar"`
}

// Authorized projects the user onto its token claim set.
func (u User) Authorized() AuthorizedUser {
	return AuthorizedUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Avatar:    u.Avatar,
	}
}
