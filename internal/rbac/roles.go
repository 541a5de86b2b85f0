package rbac

import "fmt"

// Role names. Keep these stable; they are stored in the membership tables and
// exposed through the GraphQL enums.

type WorkspaceRole string

const (
	WorkspaceOwner  WorkspaceRole = "OWNER"
	WorkspaceAdmin  WorkspaceRole = "ADMIN"
	WorkspaceMember WorkspaceRole = "MEMBER"
	WorkspaceViewer WorkspaceRole = "VIEWER"
)

func (r WorkspaceRole) Valid() bool {
	switch r {
	case WorkspaceOwner, WorkspaceAdmin, WorkspaceMember, WorkspaceViewer:
		return true
	}
	return false
}

// Protected reports whether the role is immutable through member-mutation operations.
func (r WorkspaceRole) Protected() bool { return r == WorkspaceOwner }

func ParseWorkspaceRole(s string) (WorkspaceRole, error) {
	r := WorkspaceRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid workspace role %q", s)
	}
	return r, nil
}

type ProjectRole string

const (
	ProjectLead        ProjectRole = "PROJECT_LEAD"
	ProjectContributor ProjectRole = "CONTRIBUTOR"
	ProjectViewer      ProjectRole = "PROJECT_VIEWER"
)

func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectLead, ProjectContributor, ProjectViewer:
		return true
	}
	return false
}

func (r ProjectRole) Protected() bool { return r == ProjectLead }

func ParseProjectRole(s string) (ProjectRole, error) {
	r := ProjectRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid project role %q", s)
	}
	return r, nil
}
