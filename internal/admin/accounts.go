package admin

import (
	"context"
	"errors"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/store"
)

// Session is the outcome of a signin or refresh.
type Session struct {
	User   auth.PublicUser
	Tokens auth.TokenPair
}

// Signup bootstraps an Admin account. It is the only way to create an
// Admin; the new user is both actor and target of the audit record.
func (s *Service) Signup(ctx context.Context, in RegisterInput) (auth.PublicUser, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return auth.PublicUser{}, err
	}
	if auth.Role(in.Role) != auth.RoleAdmin {
		return auth.PublicUser{}, forbidden("Only 'Admin' role can be registered via this route")
	}
	u, err := s.newUser(in)
	if err != nil {
		return auth.PublicUser{}, err
	}
	err = s.mutate(ctx, audit.ActionRegisterAdmin, u.ID, func(tx store.Tx) (string, error) {
		return u.ID, userErr(tx.Users().Create(ctx, u))
	})
	if err != nil {
		return auth.PublicUser{}, err
	}
	return u.Public(), nil
}

// Register creates a Manager or Employee on behalf of an Admin.
func (s *Service) Register(ctx context.Context, actor auth.Principal, in RegisterInput) (auth.PublicUser, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return auth.PublicUser{}, err
	}
	if auth.Role(in.Role) == auth.RoleAdmin {
		return auth.PublicUser{}, forbidden("Admin can't be registered through this route")
	}
	u, err := s.newUser(in)
	if err != nil {
		return auth.PublicUser{}, err
	}
	err = s.mutate(ctx, audit.ActionRegisterUser, actor.ID, func(tx store.Tx) (string, error) {
		return u.ID, userErr(tx.Users().Create(ctx, u))
	})
	if err != nil {
		return auth.PublicUser{}, err
	}
	return u.Public(), nil
}

func (s *Service) newUser(in RegisterInput) (*auth.User, error) {
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, invalidField("role", err.Error())
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	return &auth.User{
		ID:           s.newID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Signin verifies credentials, issues a token pair and stores the new
// refresh token, replacing any previous session's.
func (s *Service) Signin(ctx context.Context, in SigninInput) (Session, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return Session{}, err
	}
	u, err := s.store.Users().FindByLogin(ctx, in.UsernameOrEmail)
	if err != nil {
		return Session{}, userErr(err)
	}
	if err := s.hasher.Verify(u.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return Session{}, unauthorized("Invalid credentials")
		}
		return Session{}, err
	}
	pair, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	err = s.mutate(ctx, audit.ActionSigninUser, u.ID, func(tx store.Tx) (string, error) {
		return u.ID, userErr(tx.Users().SetRefreshToken(ctx, u.ID, pair.RefreshToken))
	})
	if err != nil {
		return Session{}, err
	}
	return Session{User: u.Public(), Tokens: pair}, nil
}

// Refresh exchanges the live refresh token for a new pair. A token that no
// longer matches the stored one is rejected.
func (s *Service) Refresh(ctx context.Context, raw string) (Session, error) {
	if raw == "" {
		return Session{}, unauthorized("Unauthorized request: No refresh token provided")
	}
	claims, err := s.tokens.VerifyRefresh(raw)
	if err != nil {
		return Session{}, unauthorized("Invalid refresh token: " + err.Error())
	}
	var out Session
	err = s.mutate(ctx, audit.ActionRefreshSession, claims.Subject, func(tx store.Tx) (string, error) {
		u, err := tx.Users().Find(ctx, claims.Subject, lifecycle.Default)
		if errors.Is(err, store.ErrNotFound) {
			return "", unauthorized("Invalid refresh token: user not found")
		}
		if err != nil {
			return "", err
		}
		if u.RefreshToken == "" || u.RefreshToken != raw {
			return "", unauthorized("Refresh token is expired or used")
		}
		pair, err := s.tokens.Issue(u)
		if err != nil {
			return "", err
		}
		err = tx.Users().RotateRefreshToken(ctx, u.ID, raw, pair.RefreshToken)
		if errors.Is(err, store.ErrNotFound) {
			return "", unauthorized("Refresh token is expired or used")
		}
		if err != nil {
			return "", err
		}
		out = Session{User: u.Public(), Tokens: pair}
		return u.ID, nil
	})
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// Signout clears the stored refresh token. Access tokens already issued
// stay valid until they expire.
func (s *Service) Signout(ctx context.Context, actor auth.Principal) error {
	return s.mutate(ctx, audit.ActionSignoutUser, actor.ID, func(tx store.Tx) (string, error) {
		return actor.ID, userErr(tx.Users().SetRefreshToken(ctx, actor.ID, ""))
	})
}
