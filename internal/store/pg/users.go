package pg

import (
	"context"
	"database/sql"
	"time"

	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/lifecycle"
)

const userColumns = `id, username, email, password_hash, role, coalesce(refresh_token, ''), created_at, updated_at, deleted_at`

type userStore struct{ q querier }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u       auth.User
		role    string
		deleted sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	if deleted.Valid {
		t := deleted.Time.UTC()
		u.DeletedAt = &t
	}
	return &u, nil
}

func (s userStore) Create(ctx context.Context, u *auth.User) error {
	_, err := s.q.ExecContext(ctx, `
		insert into users (id, username, email, password_hash, role, refresh_token, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), nullIfEmpty(u.RefreshToken), u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (s userStore) Find(ctx context.Context, id string, mode lifecycle.Mode) (*auth.User, error) {
	query := `select ` + userColumns + ` from users where id = $1`
	if mode == lifecycle.Default {
		query += ` and deleted_at is null`
	}
	u, err := scanUser(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (s userStore) FindByLogin(ctx context.Context, login string) (*auth.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where deleted_at is null and (lower(username) = lower($1) or lower(email) = lower($1))
		limit 1
	`, login))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (s userStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.q.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where deleted_at is null
		order by created_at, id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]*auth.User, error) {
	out := []*auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s userStore) Update(ctx context.Context, u *auth.User) error {
	return requireRow(s.q.ExecContext(ctx, `
		update users set username = $2, email = $3, role = $4, updated_at = $5
		where id = $1 and deleted_at is null
	`, u.ID, u.Username, u.Email, string(u.Role), u.UpdatedAt))
}

func (s userStore) SetRefreshToken(ctx context.Context, id, token string) error {
	return requireRow(s.q.ExecContext(ctx, `
		update users set refresh_token = $2
		where id = $1 and deleted_at is null
	`, id, nullIfEmpty(token)))
}

func (s userStore) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	return requireRow(s.q.ExecContext(ctx, `
		update users set refresh_token = $3
		where id = $1 and refresh_token = $2 and deleted_at is null
	`, id, current, nullIfEmpty(next)))
}

func (s userStore) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return requireRow(s.q.ExecContext(ctx, `
		update users set deleted_at = $2
		where id = $1 and deleted_at is null
	`, id, at))
}

func (s userStore) ClearDeleted(ctx context.Context, id string) error {
	return requireRow(s.q.ExecContext(ctx, `
		update users set deleted_at = null, updated_at = now()
		where id = $1
	`, id))
}

// Purge removes the row; project assignments cascade, audit rows keep
// their dangling reference.
func (s userStore) Purge(ctx context.Context, id string) error {
	return requireRow(s.q.ExecContext(ctx, `delete from users where id = $1`, id))
}
