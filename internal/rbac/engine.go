package rbac

import (
	"context"
	"fmt"

	"collab-platform/internal/auth"
)

// Grant is the outcome of a successful authorization.
type Grant struct {
	Principal     auth.Principal
	Action        Action
	Scope         Scope
	ScopeID       string
	WorkspaceRole WorkspaceRole
	ProjectRole   ProjectRole
}

// Engine is the single authorization entry point for every guarded operation.
//
// Check order:
//  1. Unauthenticated (anonymous, or wrong principal kind for the scope)
//  2. Banned
//  3. NotAMember
//  4. InsufficientRole
//
// Protected-entity checks happen after the caller has resolved the target member
// (see GuardWorkspaceRemoval and friends).
type Engine struct {
	policy   Policy
	resolver *Resolver
}

func NewEngine(policy Policy, lookup MembershipLookup) *Engine {
	return &Engine{policy: policy, resolver: NewResolver(lookup)}
}

// Using returns an engine with the same policy that resolves memberships through l.
// Services pass their transaction-bound store so the check and the write see the same rows.
func (e *Engine) Using(l MembershipLookup) *Engine {
	return &Engine{policy: e.policy, resolver: NewResolver(l)}
}

func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) Authorize(ctx context.Context, p auth.Principal, a Action, scopeID string) (Grant, error) {
	rule, ok := e.policy.Rule(a)
	if !ok {
		return Grant{}, fmt.Errorf("rbac: unknown action %q", a)
	}

	g := Grant{Principal: p, Action: a, Scope: rule.Scope, ScopeID: scopeID}

	if p.IsAnonymous() {
		return Grant{}, Deny(DenyUnauthenticated, "Not authenticated")
	}

	if rule.Scope == ScopeAdmin {
		if !p.IsAdmin() {
			return Grant{}, Deny(DenyInsufficientRole, "Admin access required")
		}
		return g, nil
	}

	if err := e.RequireUser(p); err != nil {
		return Grant{}, err
	}

	switch rule.Scope {
	case ScopeNone:
		return g, nil

	case ScopeWorkspace:
		role, ok, err := e.resolver.WorkspaceRole(ctx, p.ID, scopeID)
		if err != nil {
			return Grant{}, fmt.Errorf("rbac: resolve workspace role: %w", err)
		}
		if !ok {
			return Grant{}, Deny(DenyNotAMember, "workspace not found")
		}
		if !rule.allowsWorkspace(role) {
			return Grant{}, Deny(DenyInsufficientRole, insufficientReason(a))
		}
		g.WorkspaceRole = role
		return g, nil

	case ScopeProject:
		role, ok, err := e.resolver.ProjectRole(ctx, p.ID, scopeID)
		if err != nil {
			return Grant{}, fmt.Errorf("rbac: resolve project role: %w", err)
		}
		if !ok {
			return Grant{}, Deny(DenyNotAMember, "project not found")
		}
		if !rule.allowsProject(role) {
			return Grant{}, Deny(DenyInsufficientRole, insufficientReason(a))
		}
		g.ProjectRole = role
		return g, nil
	}

	return Grant{}, fmt.Errorf("rbac: unhandled scope %v", rule.Scope)
}

// RequireUser runs the principal checks shared by every user action. Callers that
// must load a target before they know its scope run it first, so anonymous and
// banned callers never learn whether the target exists.
func (e *Engine) RequireUser(p auth.Principal) error {
	// Admins live in a separate identity space and hold no memberships.
	if !p.IsUser() {
		return Deny(DenyUnauthenticated, "Not authenticated")
	}
	if p.Banned {
		return Deny(DenyBanned, "Account is banned")
	}
	return nil
}

func insufficientReason(a Action) string {
	switch a {
	case ActionManageWorkspaceMembers:
		return "Only the workspace owner can manage members"
	case ActionCreateProject:
		return "Only workspace owners and members can create projects"
	case ActionDeleteProject:
		return "Only the project owner can delete the project"
	case ActionManageProjectMembers:
		return "Only the project lead can manage project members"
	case ActionCreateTask, ActionUpdateTask, ActionDeleteTask:
		return "Only project leads and contributors can modify tasks"
	}
	return "Insufficient role"
}

/* ===================== PROTECTED TARGETS ===================== */

func GuardWorkspaceRemoval(target WorkspaceRole) error {
	if target.Protected() {
		return Deny(DenyProtectedEntity, "Cannot remove the workspace owner")
	}
	return nil
}

// GuardWorkspaceRoleChange rejects re-roling the owner and promoting anyone to owner.
func GuardWorkspaceRoleChange(target, next WorkspaceRole) error {
	if target.Protected() {
		return Deny(DenyProtectedEntity, "Cannot change the role of the owner")
	}
	if next.Protected() {
		return Deny(DenyProtectedEntity, "Cannot promote a member to owner")
	}
	return nil
}

func GuardProjectRemoval(target ProjectRole) error {
	if target.Protected() {
		return Deny(DenyProtectedEntity, "Cannot remove the project owner")
	}
	return nil
}

func GuardProjectRoleChange(target, next ProjectRole) error {
	if target.Protected() {
		return Deny(DenyProtectedEntity, "Cannot change the role of the project owner")
	}
	if next.Protected() {
		return Deny(DenyProtectedEntity, "Cannot promote a member to project lead")
	}
	return nil
}
