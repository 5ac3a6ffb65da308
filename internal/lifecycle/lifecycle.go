// Package lifecycle implements the soft-delete state machine shared by
// users and projects.
//
// An entity is Active while its deleted-at timestamp is nil, SoftDeleted
// while it is set, and Gone once its row has been purged. Lookups run in
// one of two explicit modes: Default sees only Active entities,
// IncludeDeleted sees Active and SoftDeleted ones. Nothing can see Gone.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a lifecycle position.
type State int

const (
	Active State = iota
	SoftDeleted
	Gone
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case SoftDeleted:
		return "soft_deleted"
	case Gone:
		return "gone"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode selects which states a lookup can observe.
type Mode int

const (
	// Default excludes soft-deleted entities.
	Default Mode = iota
	// IncludeDeleted also returns soft-deleted entities.
	IncludeDeleted
)

func (m Mode) String() string {
	if m == IncludeDeleted {
		return "include_deleted"
	}
	return "default"
}

// Visible reports whether an entity with the given deleted-at timestamp is
// observable in mode m.
func (m Mode) Visible(deletedAt *time.Time) bool {
	return m == IncludeDeleted || deletedAt == nil
}

// ErrInvalidTransition is returned for a transition the state machine does
// not allow.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

var transitions = map[State]map[State]bool{
	Active:      {SoftDeleted: true, Gone: true},
	SoftDeleted: {Active: true, Gone: true},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// StateOf derives the state of a stored entity from its deleted-at value.
func StateOf(deletedAt *time.Time) State {
	if deletedAt == nil {
		return Active
	}
	return SoftDeleted
}

// Entity is anything with a soft-delete timestamp.
type Entity interface {
	DeletedTime() *time.Time
}

// Store is the persistence surface the manager drives. Find returns the
// store's not-found error when id is absent in the requested mode;
// MarkDeleted, ClearDeleted and Purge do the same when no row matches.
type Store[T Entity] interface {
	Find(ctx context.Context, id string, mode Mode) (T, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	ClearDeleted(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

// Manager applies transitions against a Store. The store is passed per
// call so the caller can hand in a transaction-scoped one.
type Manager[T Entity] struct {
	now func() time.Time
}

// NewManager returns a manager using now as its clock (time.Now if nil).
func NewManager[T Entity](now func() time.Time) *Manager[T] {
	if now == nil {
		now = time.Now
	}
	return &Manager[T]{now: now}
}

// Find performs a lookup in the given mode.
func (m *Manager[T]) Find(ctx context.Context, s Store[T], id string, mode Mode) (T, error) {
	return s.Find(ctx, id, mode)
}

// SoftDelete moves an Active entity to SoftDeleted. The entity is looked up
// in Default mode, so an already soft-deleted one is not found.
func (m *Manager[T]) SoftDelete(ctx context.Context, s Store[T], id string) (T, error) {
	var zero T
	cur, err := s.Find(ctx, id, Default)
	if err != nil {
		return zero, err
	}
	if err := check(StateOf(cur.DeletedTime()), SoftDeleted); err != nil {
		return zero, err
	}
	if err := s.MarkDeleted(ctx, id, m.now().UTC()); err != nil {
		return zero, err
	}
	return s.Find(ctx, id, IncludeDeleted)
}

// Restore moves a SoftDeleted entity back to Active. Restoring an entity
// that is already Active is a no-op that returns it unchanged.
func (m *Manager[T]) Restore(ctx context.Context, s Store[T], id string) (T, error) {
	var zero T
	cur, err := s.Find(ctx, id, IncludeDeleted)
	if err != nil {
		return zero, err
	}
	from := StateOf(cur.DeletedTime())
	if from == Active {
		return cur, nil
	}
	if err := check(from, Active); err != nil {
		return zero, err
	}
	if err := s.ClearDeleted(ctx, id); err != nil {
		return zero, err
	}
	return s.Find(ctx, id, Default)
}

// PermanentlyDelete removes the entity from either non-terminal state and
// returns its last snapshot.
func (m *Manager[T]) PermanentlyDelete(ctx context.Context, s Store[T], id string) (T, error) {
	var zero T
	cur, err := s.Find(ctx, id, IncludeDeleted)
	if err != nil {
		return zero, err
	}
	if err := check(StateOf(cur.DeletedTime()), Gone); err != nil {
		return zero, err
	}
	if err := s.Purge(ctx, id); err != nil {
		return zero, err
	}
	return cur, nil
}

func check(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
