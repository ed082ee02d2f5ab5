package domain

import "time"

// User represents a registered account of the system.
type User struct {
	ID           int64
	Email        string
	Username     string
	FullName     *string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated caller of an operation. It carries only the
// capabilities authorization decisions need.
type Actor struct {
	ID          int64
	IsActive    bool
	IsSuperuser bool
}

// Actor returns the capability view of the user.
func (u User) Actor() Actor {
	return Actor{
		ID:          u.ID,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
	}
}

// RegisterInput carries already validated registration data.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

// ProfilePatch lists profile fields to change. Nil fields are left untouched.
type ProfilePatch struct {
	Email    *string
	FullName *string
	Password *string
}
