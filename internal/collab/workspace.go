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

type CreateWorkspaceInput struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
}

// CreateWorkspace creates the workspace and the caller's OWNER membership as one unit.
func (s *Service) CreateWorkspace(ctx context.Context, p auth.Principal, in CreateWorkspaceInput) (store.Workspace, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionCreateWorkspace, ""); err != nil {
		return store.Workspace{}, err
	}
	if err := s.check(in); err != nil {
		return store.Workspace{}, err
	}

	now := s.now()
	w := store.Workspace{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.CreateWorkspace(ctx, w); err != nil {
			return err
		}
		return tx.AddWorkspaceMember(ctx, store.WorkspaceMember{
			ID:          uuid.NewString(),
			WorkspaceID: w.ID,
			UserID:      p.ID,
			Role:        rbac.WorkspaceOwner,
			JoinedAt:    now,
		})
	})
	if err != nil {
		return store.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	logger.From(ctx).Info("workspace created", "workspace_id", w.ID, "owner_id", p.ID)
	return w, nil
}

func (s *Service) GetWorkspace(ctx context.Context, p auth.Principal, id string) (store.Workspace, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionViewWorkspace, id); err != nil {
		return store.Workspace{}, err
	}
	w, err := s.store.WorkspaceByID(ctx, id)
	return w, notFoundAs(err, "workspace")
}

// ListWorkspaces returns the workspaces the caller belongs to.
func (s *Service) ListWorkspaces(ctx context.Context, p auth.Principal) ([]store.Workspace, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return nil, err
	}
	return s.store.ListWorkspacesForUser(ctx, p.ID)
}

// ListAllWorkspaces is the admin view over every workspace.
func (s *Service) ListAllWorkspaces(ctx context.Context, p auth.Principal) ([]store.Workspace, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionListAllWorkspaces, ""); err != nil {
		return nil, err
	}
	return s.store.ListWorkspaces(ctx)
}

// AddWorkspaceMember adds the user with the given email as MEMBER.
func (s *Service) AddWorkspaceMember(ctx context.Context, p auth.Principal, workspaceID, email string) (store.WorkspaceMember, error) {
	var out store.WorkspaceMember
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionManageWorkspaceMembers, workspaceID); err != nil {
			return err
		}
		u, err := memberUser(ctx, tx, email)
		if err != nil {
			return err
		}
		if _, ok, err := tx.WorkspaceMemberRole(ctx, workspaceID, u.ID); err != nil {
			return err
		} else if ok {
			return ErrAlreadyMember
		}

		m := store.WorkspaceMember{
			ID:          uuid.NewString(),
			WorkspaceID: workspaceID,
			UserID:      u.ID,
			Role:        rbac.WorkspaceMember,
			JoinedAt:    s.now(),
		}
		if err := tx.AddWorkspaceMember(ctx, m); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrAlreadyMember
			}
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return store.WorkspaceMember{}, err
	}
	logger.From(ctx).Info("workspace member added", "workspace_id", workspaceID, "user_id", out.UserID)
	return out, nil
}

// RemoveWorkspaceMember removes the member identified by user id together with
// their project memberships in the workspace. The owner cannot be removed.
func (s *Service) RemoveWorkspaceMember(ctx context.Context, p auth.Principal, workspaceID, memberUserID string) error {
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionManageWorkspaceMembers, workspaceID); err != nil {
			return err
		}
		target, err := tx.WorkspaceMember(ctx, workspaceID, memberUserID)
		if err != nil {
			return notFoundAs(err, "member")
		}
		if err := rbac.GuardWorkspaceRemoval(target.Role); err != nil {
			return err
		}
		if err := dropProjectMemberships(ctx, tx, workspaceID, memberUserID); err != nil {
			return err
		}
		return notFoundAs(tx.RemoveWorkspaceMember(ctx, workspaceID, memberUserID), "member")
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("workspace member removed", "workspace_id", workspaceID, "user_id", memberUserID)
	return nil
}

// dropProjectMemberships removes userID from every project of the workspace so
// project membership never outlives workspace membership. A project lead
// cannot be dropped this way.
func dropProjectMemberships(ctx context.Context, tx store.Store, workspaceID, userID string) error {
	projects, err := tx.ListProjectsInWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	for _, pr := range projects {
		role, ok, err := tx.ProjectMemberRole(ctx, pr.ID, userID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if role.Protected() {
			return rbac.Deny(rbac.DenyProtectedEntity, "Cannot remove a member who leads a project in this workspace")
		}
		if err := tx.RemoveProjectMember(ctx, pr.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

// WorkspaceRoleChange reports a member's role before and after an update.
type WorkspaceRoleChange struct {
	Member   store.WorkspaceMember
	Previous rbac.WorkspaceRole
	New      rbac.WorkspaceRole
}

// UpdateWorkspaceMemberRole re-roles a member. The owner keeps their role and
// nobody is promoted to owner.
func (s *Service) UpdateWorkspaceMemberRole(ctx context.Context, p auth.Principal, workspaceID, memberUserID, newRole string) (WorkspaceRoleChange, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return WorkspaceRoleChange{}, err
	}

	var out WorkspaceRoleChange
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionManageWorkspaceMembers, workspaceID); err != nil {
			return err
		}
		next, err := rbac.ParseWorkspaceRole(newRole)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		target, err := tx.WorkspaceMember(ctx, workspaceID, memberUserID)
		if err != nil {
			return notFoundAs(err, "member")
		}
		if err := rbac.GuardWorkspaceRoleChange(target.Role, next); err != nil {
			return err
		}
		if err := tx.UpdateWorkspaceMemberRole(ctx, workspaceID, memberUserID, next); err != nil {
			return notFoundAs(err, "member")
		}
		out = WorkspaceRoleChange{Previous: target.Role, New: next, Member: target}
		out.Member.Role = next
		return nil
	})
	if err != nil {
		return WorkspaceRoleChange{}, err
	}
	logger.From(ctx).Info("workspace member role changed", "workspace_id", workspaceID, "user_id", memberUserID, "role", string(out.New))
	return out, nil
}
