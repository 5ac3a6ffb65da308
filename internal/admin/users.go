package admin

import (
	"context"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/ids"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/store"
)

func publicUsers(in []*auth.User) []auth.PublicUser {
	out := make([]auth.PublicUser, 0, len(in))
	for _, u := range in {
		out = append(out, u.Public())
	}
	return out
}

// ListUsers returns every non-deleted user. An empty result is a success.
func (s *Service) ListUsers(ctx context.Context, actor auth.Principal) ([]auth.PublicUser, error) {
	list, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, err
	}
	s.recordRead(ctx, audit.ActionFetchAllUsers, actor.ID, actor.ID)
	return publicUsers(list), nil
}

func (s *Service) GetUser(ctx context.Context, actor auth.Principal, id string) (auth.PublicUser, error) {
	if !ids.ValidUUID(id) {
		return auth.PublicUser{}, notFound("User not found")
	}
	u, err := s.store.Users().Find(ctx, id, lifecycle.Default)
	if err != nil {
		return auth.PublicUser{}, userErr(err)
	}
	s.recordRead(ctx, audit.ActionFetchUserByID, actor.ID, u.ID)
	return u.Public(), nil
}

// CurrentUser reloads the caller's own record.
func (s *Service) CurrentUser(ctx context.Context, actor auth.Principal) (auth.PublicUser, error) {
	u, err := s.store.Users().Find(ctx, actor.ID, lifecycle.Default)
	if err != nil {
		return auth.PublicUser{}, userErr(err)
	}
	s.recordRead(ctx, audit.ActionFetchCurrentUser, actor.ID, actor.ID)
	return u.Public(), nil
}

// UpdateUser overwrites the non-empty fields of in. Concurrent updates are
// last write wins.
func (s *Service) UpdateUser(ctx context.Context, actor auth.Principal, id string, in UpdateUserInput) (auth.PublicUser, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return auth.PublicUser{}, err
	}
	return s.changeUser(ctx, actor, id, audit.ActionUpdateUserDetails, func(u *auth.User) {
		if in.Username != "" {
			u.Username = in.Username
		}
		if in.Email != "" {
			u.Email = in.Email
		}
		if in.Role != "" {
			u.Role = auth.Role(in.Role)
		}
	})
}

// AssignRole sets any of the three roles.
func (s *Service) AssignRole(ctx context.Context, actor auth.Principal, id string, in RoleInput) (auth.PublicUser, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return auth.PublicUser{}, err
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return auth.PublicUser{}, invalidField("role", err.Error())
	}
	return s.changeUser(ctx, actor, id, audit.ActionAssignRole, func(u *auth.User) {
		u.Role = role
	})
}

// RevokeRole resets the user to the lowest-privilege role. There is no
// role-less state.
func (s *Service) RevokeRole(ctx context.Context, actor auth.Principal, id string) (auth.PublicUser, error) {
	return s.changeUser(ctx, actor, id, audit.ActionRevokeRole, func(u *auth.User) {
		u.Role = auth.RoleEmployee
	})
}

func (s *Service) changeUser(ctx context.Context, actor auth.Principal, id string, action audit.Action, apply func(*auth.User)) (auth.PublicUser, error) {
	if !ids.ValidUUID(id) {
		return auth.PublicUser{}, notFound("User not found")
	}
	var out *auth.User
	err := s.mutate(ctx, action, actor.ID, func(tx store.Tx) (string, error) {
		u, err := tx.Users().Find(ctx, id, lifecycle.Default)
		if err != nil {
			return "", userErr(err)
		}
		apply(u)
		u.UpdatedAt = s.clock()
		if err := tx.Users().Update(ctx, u); err != nil {
			return "", userErr(err)
		}
		out = u
		return u.ID, nil
	})
	if err != nil {
		return auth.PublicUser{}, err
	}
	return out.Public(), nil
}

func (s *Service) SoftDeleteUser(ctx context.Context, actor auth.Principal, id string) (auth.PublicUser, error) {
	return s.transitionUser(ctx, actor, id, audit.ActionSoftDeleteUser, s.users.SoftDelete)
}

// RestoreUser is idempotent: restoring an active user succeeds unchanged
// and is still recorded.
func (s *Service) RestoreUser(ctx context.Context, actor auth.Principal, id string) (auth.PublicUser, error) {
	return s.transitionUser(ctx, actor, id, audit.ActionRestoreUser, s.users.Restore)
}

// PermanentlyDeleteUser purges the row. Audit records that name the user
// keep their dangling reference.
func (s *Service) PermanentlyDeleteUser(ctx context.Context, actor auth.Principal, id string) (auth.PublicUser, error) {
	return s.transitionUser(ctx, actor, id, audit.ActionPermanentDeleteUser, s.users.PermanentlyDelete)
}

type transition[T lifecycle.Entity] func(ctx context.Context, st lifecycle.Store[T], id string) (T, error)

func (s *Service) transitionUser(ctx context.Context, actor auth.Principal, id string, action audit.Action, move transition[*auth.User]) (auth.PublicUser, error) {
	if !ids.ValidUUID(id) {
		return auth.PublicUser{}, notFound("User not found")
	}
	var out *auth.User
	err := s.mutate(ctx, action, actor.ID, func(tx store.Tx) (string, error) {
		u, err := move(ctx, tx.Users(), id)
		if err != nil {
			return "", userErr(err)
		}
		out = u
		return u.ID, nil
	})
	if err != nil {
		return auth.PublicUser{}, err
	}
	return out.Public(), nil
}
