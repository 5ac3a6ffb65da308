// Package store defines the persistence contracts shared by the PostgreSQL
// and in-memory backends.
package store

import (
	"context"
	"errors"
	"fmt"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/project"
)

var (
	// ErrNotFound is returned when an entity is absent in the queried scope.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("store: conflict")
	// ErrInvalidReference is returned when a write names a missing row.
	ErrInvalidReference = errors.New("store: invalid reference")
)

// ConflictError names the field whose uniqueness was violated.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("store: %s already exists", e.Field)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// UserStore persists identities.
type UserStore interface {
	lifecycle.Store[*auth.User]
	Create(ctx context.Context, u *auth.User) error
	// FindByLogin matches username or email case-insensitively among
	// non-deleted users.
	FindByLogin(ctx context.Context, login string) (*auth.User, error)
	List(ctx context.Context) ([]*auth.User, error)
	// Update writes username, email, role and updated_at.
	Update(ctx context.Context, u *auth.User) error
	// SetRefreshToken stores the live refresh token; "" clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken replaces current with next only while current is
	// still the stored token; otherwise it returns ErrNotFound.
	RotateRefreshToken(ctx context.Context, id, current, next string) error
}

// ProjectStore persists projects and their assignments.
type ProjectStore interface {
	lifecycle.Store[*project.Project]
	Create(ctx context.Context, p *project.Project) error
	List(ctx context.Context) ([]*project.Project, error)
	// Update writes name, description and updated_at.
	Update(ctx context.Context, p *project.Project) error
	// ReplaceAssignments drops every assignment of projectID and inserts
	// one per user id.
	ReplaceAssignments(ctx context.Context, projectID string, userIDs []string) error
	// Members returns the non-deleted users assigned to projectID.
	Members(ctx context.Context, projectID string) ([]*auth.User, error)
}

// AuditStore is append-only.
type AuditStore interface {
	audit.Appender
	// List returns records newest first; limit 0 means no limit.
	List(ctx context.Context, limit, offset int) ([]*audit.Record, error)
}

// Tx is a unit of work. Everything done through one Tx commits or rolls
// back together.
type Tx interface {
	Users() UserStore
	Projects() ProjectStore
	Audit() AuditStore
}

// Store is the root persistence handle. Calls made directly on it run in
// their own implicit transaction.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
