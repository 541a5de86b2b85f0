package collab

import (
	"context"
	"errors"
	"fmt"

	"collab-platform/internal/auth"
	"collab-platform/internal/rbac"
	"collab-platform/internal/store"
	"collab-platform/pkg/logger"

	"github.com/google/uuid"
)

type CreateProjectInput struct {
	WorkspaceID string `validate:"required"`
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
}

// CreateProject creates a project in the workspace and makes the caller its PROJECT_LEAD.
func (s *Service) CreateProject(ctx context.Context, p auth.Principal, in CreateProjectInput) (store.Project, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return store.Project{}, err
	}

	now := s.now()
	pr := store.Project{
		ID:          uuid.NewString(),
		WorkspaceID: in.WorkspaceID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionCreateProject, in.WorkspaceID); err != nil {
			return err
		}
		if err := s.check(in); err != nil {
			return err
		}
		if err := tx.CreateProject(ctx, pr); err != nil {
			return err
		}
		return tx.AddProjectMember(ctx, store.ProjectMember{
			ID:        uuid.NewString(),
			ProjectID: pr.ID,
			UserID:    p.ID,
			Role:      rbac.ProjectLead,
			JoinedAt:  now,
		})
	})
	if err != nil {
		if _, ok := rbac.AsDenial(err); ok || errors.Is(err, ErrInvalidInput) {
			return store.Project{}, err
		}
		return store.Project{}, fmt.Errorf("create project: %w", err)
	}
	logger.From(ctx).Info("project created", "project_id", pr.ID, "workspace_id", pr.WorkspaceID, "lead_id", p.ID)
	return pr, nil
}

func (s *Service) GetProject(ctx context.Context, p auth.Principal, id string) (store.Project, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionViewProject, id); err != nil {
		return store.Project{}, err
	}
	pr, err := s.store.ProjectByID(ctx, id)
	return pr, notFoundAs(err, "project")
}

// ListProjects returns every project the caller is a member of.
func (s *Service) ListProjects(ctx context.Context, p auth.Principal) ([]store.Project, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return nil, err
	}
	return s.store.ListProjectsForUser(ctx, p.ID)
}

// ListWorkspaceProjects lists the projects of a workspace the caller belongs to.
func (s *Service) ListWorkspaceProjects(ctx context.Context, p auth.Principal, workspaceID string) ([]store.Project, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionViewWorkspace, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListProjectsInWorkspace(ctx, workspaceID)
}

type UpdateProjectInput struct {
	Name        *string `validate:"omitnil,min=1,max=100"`
	Description *string `validate:"omitnil,max=1000"`
}

func (s *Service) UpdateProject(ctx context.Context, p auth.Principal, id string, in UpdateProjectInput) (store.Project, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return store.Project{}, err
	}

	var out store.Project
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionUpdateProject, id); err != nil {
			return err
		}
		if err := s.check(in); err != nil {
			return err
		}
		pr, err := tx.ProjectByID(ctx, id)
		if err != nil {
			return notFoundAs(err, "project")
		}
		if in.Name != nil {
			pr.Name = *in.Name
		}
		if in.Description != nil {
			pr.Description = *in.Description
		}
		pr.UpdatedAt = s.now()
		if err := tx.UpdateProject(ctx, pr); err != nil {
			return notFoundAs(err, "project")
		}
		out = pr
		return nil
	})
	return out, err
}

// DeleteProject removes the project with its memberships and tasks. PROJECT_LEAD only.
func (s *Service) DeleteProject(ctx context.Context, p auth.Principal, id string) error {
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionDeleteProject, id); err != nil {
			return err
		}
		return notFoundAs(tx.DeleteProject(ctx, id), "project")
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("project deleted", "project_id", id, "by", p.ID)
	return nil
}

/* ===================== MEMBERS ===================== */

// AddProjectMember adds a workspace member to the project as CONTRIBUTOR.
func (s *Service) AddProjectMember(ctx context.Context, p auth.Principal, projectID, email string) (store.ProjectMember, error) {
	var out store.ProjectMember
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionManageProjectMembers, projectID); err != nil {
			return err
		}
		pr, err := tx.ProjectByID(ctx, projectID)
		if err != nil {
			return notFoundAs(err, "project")
		}
		u, err := memberUser(ctx, tx, email)
		if err != nil {
			return err
		}
		if _, ok, err := tx.WorkspaceMemberRole(ctx, pr.WorkspaceID, u.ID); err != nil {
			return err
		} else if !ok {
			return ErrNotWorkspaceMember
		}
		if _, ok, err := tx.ProjectMemberRole(ctx, projectID, u.ID); err != nil {
			return err
		} else if ok {
			return ErrAlreadyMember
		}

		m := store.ProjectMember{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			UserID:    u.ID,
			Role:      rbac.ProjectContributor,
			JoinedAt:  s.now(),
		}
		if err := tx.AddProjectMember(ctx, m); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrAlreadyMember
			}
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return store.ProjectMember{}, err
	}
	logger.From(ctx).Info("project member added", "project_id", projectID, "user_id", out.UserID)
	return out, nil
}

// RemoveProjectMember removes the member identified by user id. The lead cannot be removed.
func (s *Service) RemoveProjectMember(ctx context.Context, p auth.Principal, projectID, memberUserID string) error {
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionManageProjectMembers, projectID); err != nil {
			return err
		}
		target, err := tx.ProjectMember(ctx, projectID, memberUserID)
		if err != nil {
			return notFoundAs(err, "member")
		}
		if err := rbac.GuardProjectRemoval(target.Role); err != nil {
			return err
		}
		return notFoundAs(tx.RemoveProjectMember(ctx, projectID, memberUserID), "member")
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("project member removed", "project_id", projectID, "user_id", memberUserID)
	return nil
}

type ProjectRoleChange struct {
	Member   store.ProjectMember
	Previous rbac.ProjectRole
	New      rbac.ProjectRole
}

func (s *Service) UpdateProjectMemberRole(ctx context.Context, p auth.Principal, projectID, memberUserID, newRole string) (ProjectRoleChange, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return ProjectRoleChange{}, err
	}

	var out ProjectRoleChange
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionManageProjectMembers, projectID); err != nil {
			return err
		}
		next, err := rbac.ParseProjectRole(newRole)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		target, err := tx.ProjectMember(ctx, projectID, memberUserID)
		if err != nil {
			return notFoundAs(err, "member")
		}
		if err := rbac.GuardProjectRoleChange(target.Role, next); err != nil {
			return err
		}
		if err := tx.UpdateProjectMemberRole(ctx, projectID, memberUserID, next); err != nil {
			return notFoundAs(err, "member")
		}
		out = ProjectRoleChange{Member: target, Previous: target.Role, New: next}
		out.Member.Role = next
		return nil
	})
	if err != nil {
		return ProjectRoleChange{}, err
	}
	logger.From(ctx).Info("project member role changed", "project_id", projectID, "user_id", memberUserID, "role", string(out.New))
	return out, nil
}
