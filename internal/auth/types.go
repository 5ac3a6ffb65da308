package auth

import "time"

// User is a stored identity. PasswordHash and RefreshToken never leave the
// process; use Public for anything that is rendered to a client.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// DeletedTime implements lifecycle.Entity.
func (u *User) DeletedTime() *time.Time {
	if u == nil {
		return nil
	}
	return u.DeletedAt
}

// Public strips credential material from u.
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	var deleted *time.Time
	if u.DeletedAt != nil {
		d := *u.DeletedAt
		deleted = &d
	}
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		DeletedAt: deleted,
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.DeletedAt != nil {
		d := *u.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
