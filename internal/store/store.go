package store

import (
	"context"
	"errors"
	"time"

	"collab-platform/internal/rbac"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("store: conflict")
)

type Users interface {
	CreateUser(ctx context.Context, u User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) error
	SetUserStatus(ctx context.Context, id string, status UserStatus, now time.Time) error
}

type Admins interface {
	CreateAdmin(ctx context.Context, a Admin) error
	AdminByID(ctx context.Context, id string) (Admin, error)
	AdminByEmail(ctx context.Context, email string) (Admin, error)
}

type Tokens interface {
	CreateRefreshToken(ctx context.Context, t RefreshToken) error
	RefreshTokenByHash(ctx context.Context, hash string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error

	CreatePasswordResetToken(ctx context.Context, t PasswordResetToken) error
	PasswordResetTokenByHash(ctx context.Context, hash string) (PasswordResetToken, error)
	MarkPasswordResetTokenUsed(ctx context.Context, hash string, now time.Time) error
}

type Workspaces interface {
	CreateWorkspace(ctx context.Context, w Workspace) error
	WorkspaceByID(ctx context.Context, id string) (Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error)

	AddWorkspaceMember(ctx context.Context, m WorkspaceMember) error
	WorkspaceMember(ctx context.Context, workspaceID, userID string) (WorkspaceMember, error)
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error)
	UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID string, role rbac.WorkspaceRole) error
	RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error
	WorkspaceMemberRole(ctx context.Context, workspaceID, userID string) (rbac.WorkspaceRole, bool, error)
}

type Projects interface {
	CreateProject(ctx context.Context, p Project) error
	ProjectByID(ctx context.Context, id string) (Project, error)
	ListProjectsInWorkspace(ctx context.Context, workspaceID string) ([]Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]Project, error)
	UpdateProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id string) error

	AddProjectMember(ctx context.Context, m ProjectMember) error
	ProjectMember(ctx context.Context, projectID, userID string) (ProjectMember, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]ProjectMember, error)
	UpdateProjectMemberRole(ctx context.Context, projectID, userID string, role rbac.ProjectRole) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error
	ProjectMemberRole(ctx context.Context, projectID, userID string) (rbac.ProjectRole, bool, error)
}

type Tasks interface {
	CreateTask(ctx context.Context, t Task) error
	TaskByID(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	UpdateTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
}

// Store is the credential and collaboration store.
//
// Invariants:
// - Memberships are unique per (user, scope); a duplicate insert returns ErrConflict.
// - Deleting a project removes its memberships and tasks.
// - Inside WithinTx, lookups lock the rows they read until commit.
type Store interface {
	Users
	Admins
	Tokens
	Workspaces
	Projects
	Tasks

	// WithinTx runs fn against a transaction-bound Store. fn's error rolls back.
	// Nested calls reuse the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

var _ rbac.MembershipLookup = Store(nil)
