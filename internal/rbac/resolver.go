package rbac

import "context"

// MembershipLookup is the slice of the credential store the resolver needs.
// ok=false means no membership row; a missing scope looks the same.
type MembershipLookup interface {
	WorkspaceMemberRole(ctx context.Context, workspaceID, userID string) (role WorkspaceRole, ok bool, err error)
	ProjectMemberRole(ctx context.Context, projectID, userID string) (role ProjectRole, ok bool, err error)
}

// Resolver answers "what role does this user hold in this scope". Every call is a
// fresh lookup.
type Resolver struct {
	lookup MembershipLookup
}

func NewResolver(l MembershipLookup) *Resolver {
	return &Resolver{lookup: l}
}

func (r *Resolver) WorkspaceRole(ctx context.Context, userID, workspaceID string) (WorkspaceRole, bool, error) {
	if userID == "" || workspaceID == "" {
		return "", false, nil
	}
	return r.lookup.WorkspaceMemberRole(ctx, workspaceID, userID)
}

func (r *Resolver) ProjectRole(ctx context.Context, userID, projectID string) (ProjectRole, bool, error) {
	if userID == "" || projectID == "" {
		return "", false, nil
	}
	return r.lookup.ProjectMemberRole(ctx, projectID, userID)
}
