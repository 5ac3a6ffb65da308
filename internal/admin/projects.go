package admin

import (
	"context"
	"errors"
	"fmt"

	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/ids"
	"auditdesk.org/internal/lifecycle"
	"auditdesk.org/internal/project"
	"auditdesk.org/internal/store"
)

func (s *Service) CreateProject(ctx context.Context, actor auth.Principal, in CreateProjectInput) (project.Detail, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return project.Detail{}, err
	}
	now := s.clock()
	p := &project.Project{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var out project.Detail
	err := s.mutate(ctx, audit.ActionCreateProject, actor.ID, func(tx store.Tx) (string, error) {
		if err := checkAssignees(ctx, tx, in.AssignedTo); err != nil {
			return "", err
		}
		if err := tx.Projects().Create(ctx, p); err != nil {
			return "", projectErr(err)
		}
		if len(in.AssignedTo) > 0 {
			if err := tx.Projects().ReplaceAssignments(ctx, p.ID, in.AssignedTo); err != nil {
				return "", projectErr(err)
			}
		}
		d, err := detail(ctx, tx, p)
		if err != nil {
			return "", err
		}
		out = d
		return p.ID, nil
	})
	if err != nil {
		return project.Detail{}, err
	}
	return out, nil
}

// ListProjects returns every non-deleted project. Any authenticated user
// may list.
func (s *Service) ListProjects(ctx context.Context, actor auth.Principal) ([]*project.Project, error) {
	list, err := s.store.Projects().List(ctx)
	if err != nil {
		return nil, err
	}
	s.recordRead(ctx, audit.ActionFetchAllProjects, actor.ID, actor.ID)
	return list, nil
}

// GetProject returns the project with its creator and assigned users.
func (s *Service) GetProject(ctx context.Context, actor auth.Principal, id string) (project.Detail, error) {
	if !ids.ValidUUID(id) {
		return project.Detail{}, notFound("Project not found")
	}
	p, err := s.store.Projects().Find(ctx, id, lifecycle.Default)
	if err != nil {
		return project.Detail{}, projectErr(err)
	}
	d, err := detail(ctx, s.store, p)
	if err != nil {
		return project.Detail{}, err
	}
	s.recordRead(ctx, audit.ActionFetchProjectByID, actor.ID, p.ID)
	return d, nil
}

// UpdateProject changes name and description; assignments are replaced
// only when in.AssignedTo is non-empty.
func (s *Service) UpdateProject(ctx context.Context, actor auth.Principal, id string, in UpdateProjectInput) (project.Detail, error) {
	in = in.normalized()
	if err := validate(in); err != nil {
		return project.Detail{}, err
	}
	if !ids.ValidUUID(id) {
		return project.Detail{}, notFound("Project not found")
	}
	var out project.Detail
	err := s.mutate(ctx, audit.ActionUpdateProjectDetails, actor.ID, func(tx store.Tx) (string, error) {
		p, err := tx.Projects().Find(ctx, id, lifecycle.Default)
		if err != nil {
			return "", projectErr(err)
		}
		if in.Name != "" {
			p.Name = in.Name
		}
		if in.Description != "" {
			p.Description = in.Description
		}
		p.UpdatedAt = s.clock()
		if err := tx.Projects().Update(ctx, p); err != nil {
			return "", projectErr(err)
		}
		if len(in.AssignedTo) > 0 {
			if err := checkAssignees(ctx, tx, in.AssignedTo); err != nil {
				return "", err
			}
			if err := tx.Projects().ReplaceAssignments(ctx, p.ID, in.AssignedTo); err != nil {
				return "", projectErr(err)
			}
		}
		d, err := detail(ctx, tx, p)
		if err != nil {
			return "", err
		}
		out = d
		return p.ID, nil
	})
	if err != nil {
		return project.Detail{}, err
	}
	return out, nil
}

func (s *Service) SoftDeleteProject(ctx context.Context, actor auth.Principal, id string) (*project.Project, error) {
	return s.transitionProject(ctx, actor, id, audit.ActionSoftDeleteProject, s.projects.SoftDelete)
}

func (s *Service) RestoreProject(ctx context.Context, actor auth.Principal, id string) (*project.Project, error) {
	return s.transitionProject(ctx, actor, id, audit.ActionRestoreProject, s.projects.Restore)
}

// PermanentlyDeleteProject purges the project; its assignments go with it.
func (s *Service) PermanentlyDeleteProject(ctx context.Context, actor auth.Principal, id string) (*project.Project, error) {
	return s.transitionProject(ctx, actor, id, audit.ActionPermanentDeleteProject, s.projects.PermanentlyDelete)
}

func (s *Service) transitionProject(ctx context.Context, actor auth.Principal, id string, action audit.Action, move transition[*project.Project]) (*project.Project, error) {
	if !ids.ValidUUID(id) {
		return nil, notFound("Project not found")
	}
	var out *project.Project
	err := s.mutate(ctx, action, actor.ID, func(tx store.Tx) (string, error) {
		p, err := move(ctx, tx.Projects(), id)
		if err != nil {
			return "", projectErr(err)
		}
		out = p
		return p.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkAssignees requires every id to name an existing, non-deleted user.
func checkAssignees(ctx context.Context, tx store.Tx, userIDs []string) error {
	for _, id := range userIDs {
		_, err := tx.Users().Find(ctx, id, lifecycle.Default)
		if errors.Is(err, store.ErrNotFound) {
			return invalidField("assignedTo", fmt.Sprintf("user %s does not exist", id))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func detail(ctx context.Context, tx store.Tx, p *project.Project) (project.Detail, error) {
	d := project.Detail{Project: *p, AssignedUsers: []project.Member{}}
	creator, err := tx.Users().Find(ctx, p.CreatedBy, lifecycle.IncludeDeleted)
	switch {
	case err == nil:
		m := project.MemberOf(creator)
		m.Role = ""
		d.Creator = &m
	case !errors.Is(err, store.ErrNotFound):
		return project.Detail{}, err
	}
	members, err := tx.Projects().Members(ctx, p.ID)
	if err != nil {
		return project.Detail{}, err
	}
	for _, u := range members {
		d.AssignedUsers = append(d.AssignedUsers, project.MemberOf(u))
	}
	return d, nil
}
