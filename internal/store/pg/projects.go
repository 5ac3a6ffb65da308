package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/project"
)

const projectColumns = `id, name, description, created_by, created_at, updated_at, deleted_at`

type projectStore struct{ q querier }

func scanProject(row rowScanner) (*project.Project, error) {
	var (
		p       project.Project
		deleted sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	if deleted.Valid {
		t := deleted.Time.UTC()
		p.DeletedAt = &t
	}
	return &p, nil
}

func (s projectStore) Create(ctx context.Context, p *project.Project) error {
	_, err := s.q.ExecContext(ctx, `
		insert into projects (id, name, description, created_by, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (s projectStore) Find(ctx context.Context, id string, mode lifecycle.Mode) (*project.Project, error) {
	query := `select ` + projectColumns + ` from projects where id = $1`
	if mode == lifecycle.Default {
		query += ` and deleted_at is null`
	}
	p, err := scanProject(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (s projectStore) List(ctx context.Context) ([]*project.Project, error) {
	rows, err := s.q.QueryContext(ctx, `
		select `+projectColumns+`
		from projects
		where deleted_at is null
		order by created_at, id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []*project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s projectStore) Update(ctx context.Context, p *project.Project) error {
	return requireRow(s.q.ExecContext(ctx, `
		update projects set name = $2, description = $3, updated_at = $4
		where id = $1 and deleted_at is null
	`, p.ID, p.Name, p.Description, p.UpdatedAt))
}

// ReplaceAssignments deletes the project's edges and bulk-inserts the new
// set in one statement.
func (s projectStore) ReplaceAssignments(ctx context.Context, projectID string, userIDs []string) error {
	if _, err := s.q.ExecContext(ctx, `delete from project_users where project_id = $1`, projectID); err != nil {
		return mapErr(err)
	}
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return nil
	}
	var (
		b    strings.Builder
		args = make([]any, 0, len(userIDs)+1)
	)
	args = append(args, projectID)
	b.WriteString(`insert into project_users (project_id, user_id) values `)
	for i, id := range userIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($1, $%d)", i+2)
		args = append(args, id)
	}
	_, err := s.q.ExecContext(ctx, b.String(), args...)
	return mapErr(err)
}

func (s projectStore) Members(ctx context.Context, projectID string) ([]*auth.User, error) {
	rows, err := s.q.QueryContext(ctx, `
		select u.id, u.username, u.email, u.password_hash, u.role, coalesce(u.refresh_token, ''), u.created_at, u.updated_at, u.deleted_at
		from project_users pu
		join users u on u.id = pu.user_id
		where pu.project_id = $1 and u.deleted_at is null
		order by u.username
	`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s projectStore) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return requireRow(s.q.ExecContext(ctx, `
		update projects set deleted_at = $2
		where id = $1 and deleted_at is null
	`, id, at))
}

func (s projectStore) ClearDeleted(ctx context.Context, id string) error {
	return requireRow(s.q.ExecContext(ctx, `
		update projects set deleted_at = null, updated_at = now()
		where id = $1
	`, id))
}

func (s projectStore) Purge(ctx context.Context, id string) error {
	return requireRow(s.q.ExecContext(ctx, `delete from projects where id = $1`, id))
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
