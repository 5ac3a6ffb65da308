// Package project holds the project resource and its assignment edges.
package project

import (
	"time"

	"auditdesk.org/internal/auth"
)

// Project is a stored project. CreatedBy is an immutable reference to the
// creating user; it may dangle after that user is purged.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// DeletedTime implements lifecycle.Entity.
func (p *Project) DeletedTime() *time.Time {
	if p == nil {
		return nil
	}
	return p.DeletedAt
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.DeletedAt != nil {
		d := *p.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// Member is the short user view embedded in project details.
type Member struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     auth.Role `json:"role,omitempty"`
}

// MemberOf builds a Member from a stored user.
func MemberOf(u *auth.User) Member {
	return Member{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// Detail is a project with its creator and assigned users resolved.
// Creator is nil when the creating user no longer exists.
type Detail struct {
	Project
	Creator       *Member  `json:"creator"`
	AssignedUsers []Member `json:"assignedUsers"`
}
