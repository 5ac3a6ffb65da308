// Package memory is an in-process store used in development mode and
// tests. Transactions work on a private copy of the state that replaces the
// live state only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/project"
	"auditdesk.org/internal/store"
)

type state struct {
	users       map[string]*auth.User
	projects    map[string]*project.Project
	assignments map[string][]string // project id -> user ids
	audit       []*audit.Record
}

func newState() *state {
	return &state{
		users:       make(map[string]*auth.User),
		projects:    make(map[string]*project.Project),
		assignments: make(map[string][]string),
	}
}

func (st *state) clone() *state {
	cp := newState()
	for id, u := range st.users {
		cp.users[id] = u.Clone()
	}
	for id, p := range st.projects {
		cp.projects[id] = p.Clone()
	}
	for id, members := range st.assignments {
		cp.assignments[id] = append([]string(nil), members...)
	}
	cp.audit = append(make([]*audit.Record, 0, len(st.audit)), st.audit...)
	return cp
}

// Store implements store.Store. WithinTx serialises transactions; code
// running inside one must use the Tx it is handed, not the Store.
type Store struct {
	mu         sync.Mutex
	st         *state
	now        func() time.Time
	appendHook func(*audit.Record) error
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAppendHook runs fn before every audit append; a non-nil error fails
// the append.
func WithAppendHook(fn func(*audit.Record) error) Option {
	return func(s *Store) { s.appendHook = fn }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAppendHook swaps the audit append hook at runtime.
func (s *Store) SetAppendHook(fn func(*audit.Record) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendHook = fn
}

func (s *Store) Users() store.UserStore       { return users{&txn{s: s}} }
func (s *Store) Projects() store.ProjectStore { return projects{&txn{s: s}} }
func (s *Store) Audit() store.AuditStore      { return auditLog{&txn{s: s}} }

// WithinTx runs fn against a private copy of the state and publishes the
// copy only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &txn{s: s, st: s.st.clone(), inTx: true}
	if err := fn(t); err != nil {
		return err
	}
	s.st = t.st
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

type txn struct {
	s    *Store
	st   *state
	inTx bool
}

func (t *txn) Users() store.UserStore       { return users{t} }
func (t *txn) Projects() store.ProjectStore { return projects{t} }
func (t *txn) Audit() store.AuditStore      { return auditLog{t} }

// do runs fn on the transaction state, or under the store lock on the live
// state when called outside a transaction.
func (t *txn) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.inTx {
		return fn(t.st)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return fn(t.s.st)
}

func (t *txn) stamp() time.Time {
	return t.s.now().UTC().Truncate(time.Microsecond)
}

// users

type users struct{ t *txn }

func (r users) Create(ctx context.Context, u *auth.User) error {
	return r.t.do(ctx, func(st *state) error {
		if _, ok := st.users[u.ID]; ok {
			return &store.ConflictError{Field: "id"}
		}
		if err := uniqueUser(st, u); err != nil {
			return err
		}
		st.users[u.ID] = u.Clone()
		return nil
	})
}

func uniqueUser(st *state, u *auth.User) error {
	for id, other := range st.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return &store.ConflictError{Field: "email"}
		}
		if strings.EqualFold(other.Username, u.Username) {
			return &store.ConflictError{Field: "username"}
		}
	}
	return nil
}

func (r users) Find(ctx context.Context, id string, mode lifecycle.Mode) (*auth.User, error) {
	var out *auth.User
	err := r.t.do(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok || !mode.Visible(u.DeletedAt) {
			return store.ErrNotFound
		}
		out = u.Clone()
		return nil
	})
	return out, err
}

func (r users) FindByLogin(ctx context.Context, login string) (*auth.User, error) {
	var out *auth.User
	err := r.t.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.DeletedAt != nil {
				continue
			}
			if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
				out = u.Clone()
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r users) List(ctx context.Context) ([]*auth.User, error) {
	out := []*auth.User{}
	err := r.t.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.DeletedAt == nil {
				out = append(out, u.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r users) Update(ctx context.Context, u *auth.User) error {
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.users[u.ID]
		if !ok || cur.DeletedAt != nil {
			return store.ErrNotFound
		}
		if err := uniqueUser(st, u); err != nil {
			return err
		}
		cur.Username = u.Username
		cur.Email = u.Email
		cur.Role = u.Role
		cur.UpdatedAt = u.UpdatedAt
		return nil
	})
}

func (r users) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.users[id]
		if !ok || cur.DeletedAt != nil {
			return store.ErrNotFound
		}
		cur.RefreshToken = token
		return nil
	})
}

func (r users) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.users[id]
		if !ok || cur.DeletedAt != nil || current == "" || cur.RefreshToken != current {
			return store.ErrNotFound
		}
		cur.RefreshToken = next
		return nil
	})
}

func (r users) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.users[id]
		if !ok || cur.DeletedAt != nil {
			return store.ErrNotFound
		}
		cur.DeletedAt = &at
		return nil
	})
}

func (r users) ClearDeleted(ctx context.Context, id string) error {
	now := r.t.stamp()
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		cur.DeletedAt = nil
		cur.UpdatedAt = now
		return nil
	})
}

func (r users) Purge(ctx context.Context, id string) error {
	return r.t.do(ctx, func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return store.ErrNotFound
		}
		delete(st.users, id)
		for pid, members := range st.assignments {
			st.assignments[pid] = without(members, id)
		}
		return nil
	})
}

// projects

type projects struct{ t *txn }

func (r projects) Create(ctx context.Context, p *project.Project) error {
	return r.t.do(ctx, func(st *state) error {
		if _, ok := st.projects[p.ID]; ok {
			return &store.ConflictError{Field: "id"}
		}
		st.projects[p.ID] = p.Clone()
		return nil
	})
}

func (r projects) Find(ctx context.Context, id string, mode lifecycle.Mode) (*project.Project, error) {
	var out *project.Project
	err := r.t.do(ctx, func(st *state) error {
		p, ok := st.projects[id]
		if !ok || !mode.Visible(p.DeletedAt) {
			return store.ErrNotFound
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r projects) List(ctx context.Context) ([]*project.Project, error) {
	out := []*project.Project{}
	err := r.t.do(ctx, func(st *state) error {
		for _, p := range st.projects {
			if p.DeletedAt == nil {
				out = append(out, p.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r projects) Update(ctx context.Context, p *project.Project) error {
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.projects[p.ID]
		if !ok || cur.DeletedAt != nil {
			return store.ErrNotFound
		}
		cur.Name = p.Name
		cur.Description = p.Description
		cur.UpdatedAt = p.UpdatedAt
		return nil
	})
}

func (r projects) ReplaceAssignments(ctx context.Context, projectID string, userIDs []string) error {
	return r.t.do(ctx, func(st *state) error {
		if _, ok := st.projects[projectID]; !ok {
			return store.ErrInvalidReference
		}
		members := make([]string, 0, len(userIDs))
		seen := make(map[string]bool, len(userIDs))
		for _, id := range userIDs {
			if seen[id] {
				continue
			}
			if _, ok := st.users[id]; !ok {
				return store.ErrInvalidReference
			}
			seen[id] = true
			members = append(members, id)
		}
		st.assignments[projectID] = members
		return nil
	})
}

func (r projects) Members(ctx context.Context, projectID string) ([]*auth.User, error) {
	out := []*auth.User{}
	err := r.t.do(ctx, func(st *state) error {
		for _, id := range st.assignments[projectID] {
			if u, ok := st.users[id]; ok && u.DeletedAt == nil {
				out = append(out, u.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, err
}

func (r projects) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.projects[id]
		if !ok || cur.DeletedAt != nil {
			return store.ErrNotFound
		}
		cur.DeletedAt = &at
		return nil
	})
}

func (r projects) ClearDeleted(ctx context.Context, id string) error {
	now := r.t.stamp()
	return r.t.do(ctx, func(st *state) error {
		cur, ok := st.projects[id]
		if !ok {
			return store.ErrNotFound
		}
		cur.DeletedAt = nil
		cur.UpdatedAt = now
		return nil
	})
}

func (r projects) Purge(ctx context.Context, id string) error {
	return r.t.do(ctx, func(st *state) error {
		if _, ok := st.projects[id]; !ok {
			return store.ErrNotFound
		}
		delete(st.projects, id)
		delete(st.assignments, id)
		return nil
	})
}

// audit

type auditLog struct{ t *txn }

func (r auditLog) Append(ctx context.Context, rec *audit.Record) error {
	return r.t.do(ctx, func(st *state) error {
		if hook := r.t.s.appendHook; hook != nil {
			if err := hook(rec); err != nil {
				return err
			}
		}
		cp := *rec
		st.audit = append(st.audit, &cp)
		return nil
	})
}

func (r auditLog) List(ctx context.Context, limit, offset int) ([]*audit.Record, error) {
	out := []*audit.Record{}
	err := r.t.do(ctx, func(st *state) error {
		for _, rec := range st.audit {
			if rec.DeletedAt == nil {
				cp := *rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PerformedAt.Equal(out[j].PerformedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PerformedAt.After(out[j].PerformedAt)
	})
	return page(out, limit, offset), nil
}

func page(recs []*audit.Record, limit, offset int) []*audit.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return []*audit.Record{}
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
