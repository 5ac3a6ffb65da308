// Package admin implements the resource services: accounts, users,
// projects and the audit listing. Every mutation commits together with
// exactly one audit record; reads are recorded best-effort.
package admin

import (
	"context"
	"errors"
	"time"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/ids"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/project"
	"auditdesk.org/internal/store"
)

// Service orchestrates lifecycle transitions and audit recording over a
// store.
type Service struct {
	store    store.Store
	tokens   *auth.TokenService
	hasher   *auth.Hasher
	recorder *audit.Recorder
	now      func() time.Time
	newID    func() string

	users    *lifecycle.Manager[*auth.User]
	projects *lifecycle.Manager[*project.Project]
}

var _ auth.IdentityLookup = (*Service)(nil)

// Option configures a Service.
type Option func(*Service) error

// WithHasher overrides the credential hasher.
func WithHasher(h *auth.Hasher) Option {
	return func(s *Service) error {
		if h == nil {
			return errors.New("admin: nil hasher")
		}
		s.hasher = h
		return nil
	}
}

// WithRecorder overrides the audit recorder.
func WithRecorder(r *audit.Recorder) Option {
	return func(s *Service) error {
		if r == nil {
			return errors.New("admin: nil recorder")
		}
		s.recorder = r
		return nil
	}
}

// WithClock injects the time source used for entity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return errors.New("admin: nil clock")
		}
		s.now = now
		return nil
	}
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) error {
		if fn == nil {
			return errors.New("admin: nil id generator")
		}
		s.newID = fn
		return nil
	}
}

// NewService wires the service to its store and token service.
func NewService(st store.Store, tokens *auth.TokenService, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("admin: store is required")
	}
	if tokens == nil {
		return nil, errors.New("admin: token service is required")
	}
	s := &Service{
		store:    st,
		tokens:   tokens,
		hasher:   auth.NewHasher(0),
		recorder: audit.NewRecorder(),
		now:      time.Now,
		newID:    ids.NewUUID,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.users = lifecycle.NewManager[*auth.User](s.clock)
	s.projects = lifecycle.NewManager[*project.Project](s.clock)
	return s, nil
}

// Tokens exposes the token service for cookie lifetimes.
func (s *Service) Tokens() *auth.TokenService { return s.tokens }

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// FindActiveUser implements auth.IdentityLookup.
func (s *Service) FindActiveUser(ctx context.Context, id string) (*auth.User, error) {
	if !ids.ValidUUID(id) {
		return nil, auth.ErrIdentityNotFound
	}
	u, err := s.store.Users().Find(ctx, id, lifecycle.Default)
	if errors.Is(err, store.ErrNotFound) {
		return nil, auth.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// AuditLogs lists audit records newest first. Reading the trail is not
// itself recorded.
func (s *Service) AuditLogs(ctx context.Context, limit, offset int) ([]*audit.Record, error) {
	return s.store.Audit().List(ctx, limit, offset)
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// mutate runs fn and the audit append in one unit of work. fn returns the
// audit target; nothing commits unless both succeed.
func (s *Service) mutate(ctx context.Context, action audit.Action, actorID string, fn func(tx store.Tx) (string, error)) error {
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		target, err := fn(tx)
		if err != nil {
			return err
		}
		_, err = s.recorder.Record(ctx, tx.Audit(), action, actorID, target)
		return err
	})
}

func (s *Service) recordRead(ctx context.Context, action audit.Action, actorID, target string) {
	s.recorder.RecordRead(ctx, s.store.Audit(), action, actorID, target)
}
