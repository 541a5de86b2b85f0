package rbac

import (
	"context"
	"errors"
	"testing"

	"collab-platform/internal/auth"
)

type fakeLookup struct {
	workspaces map[string]WorkspaceRole // key: workspaceID + "/" + userID
	projects   map[string]ProjectRole
	err        error
}

func (f fakeLookup) WorkspaceMemberRole(ctx context.Context, workspaceID, userID string) (WorkspaceRole, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	r, ok := f.workspaces[workspaceID+"/"+userID]
	return r, ok, nil
}

func (f fakeLookup) ProjectMemberRole(ctx context.Context, projectID, userID string) (ProjectRole, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	r, ok := f.projects[projectID+"/"+userID]
	return r, ok, nil
}

func newTestEngine(policy Policy) *Engine {
	return NewEngine(policy, fakeLookup{
		workspaces: map[string]WorkspaceRole{
			"w1/owner":  WorkspaceOwner,
			"w1/admin":  WorkspaceAdmin,
			"w1/member": WorkspaceMember,
			"w1/viewer": WorkspaceViewer,
		},
		projects: map[string]ProjectRole{
			"p1/lead":        ProjectLead,
			"p1/contributor": ProjectContributor,
			"p1/viewer":      ProjectViewer,
		},
	})
}

func TestAuthorize_RoleTable(t *testing.T) {
	e := newTestEngine(Policy{})
	ctx := context.Background()

	cases := []struct {
		name   string
		user   string
		action Action
		scope  string
		want   error
	}{
		{"owner manages members", "owner", ActionManageWorkspaceMembers, "w1", nil},
		{"admin cannot manage members", "admin", ActionManageWorkspaceMembers, "w1", ErrInsufficientRole},
		{"member cannot manage members", "member", ActionManageWorkspaceMembers, "w1", ErrInsufficientRole},
		{"owner creates project", "owner", ActionCreateProject, "w1", nil},
		{"member creates project", "member", ActionCreateProject, "w1", nil},
		{"workspace admin cannot create project", "admin", ActionCreateProject, "w1", ErrInsufficientRole},
		{"viewer cannot create project", "viewer", ActionCreateProject, "w1", ErrInsufficientRole},
		{"viewer views workspace", "viewer", ActionViewWorkspace, "w1", nil},
		{"lead deletes project", "lead", ActionDeleteProject, "p1", nil},
		{"contributor cannot delete project", "contributor", ActionDeleteProject, "p1", ErrInsufficientRole},
		{"viewer updates project", "viewer", ActionUpdateProject, "p1", nil},
		{"contributor creates task", "contributor", ActionCreateTask, "p1", nil},
		{"viewer cannot create task", "viewer", ActionCreateTask, "p1", ErrInsufficientRole},
		{"viewer cannot delete task", "viewer", ActionDeleteTask, "p1", ErrInsufficientRole},
		{"viewer reads tasks", "viewer", ActionViewTask, "p1", nil},
		{"lead manages project members", "lead", ActionManageProjectMembers, "p1", nil},
		{"viewer cannot manage project members", "viewer", ActionManageProjectMembers, "p1", ErrInsufficientRole},
		{"any user creates workspace", "stranger", ActionCreateWorkspace, "", nil},
	}

	for _, tc := range cases {
		_, err := e.Authorize(ctx, auth.User(tc.user, false), tc.action, tc.scope)
		if tc.want == nil && err != nil {
			t.Fatalf("%s: expected allow, got %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestAuthorize_NonMemberDeniedOnEveryScopedAction(t *testing.T) {
	e := newTestEngine(Policy{ViewerManagesProjectMembers: true})
	ctx := context.Background()

	workspaceActions := []Action{ActionViewWorkspace, ActionManageWorkspaceMembers, ActionCreateProject}
	projectActions := []Action{
		ActionViewProject, ActionUpdateProject, ActionDeleteProject, ActionManageProjectMembers,
		ActionViewTask, ActionCreateTask, ActionUpdateTask, ActionDeleteTask,
	}

	// lead of p1 is not a member of w1, owner of w1 is not a member of p1.
	for _, a := range workspaceActions {
		for _, scope := range []string{"w1", "missing"} {
			_, err := e.Authorize(ctx, auth.User("lead", false), a, scope)
			if !errors.Is(err, ErrNotAMember) {
				t.Fatalf("%s on %s: expected NotAMember, got %v", a, scope, err)
			}
			if err.Error() != "workspace not found" {
				t.Fatalf("expected scrubbed reason, got %q", err.Error())
			}
		}
	}
	for _, a := range projectActions {
		_, err := e.Authorize(ctx, auth.User("owner", false), a, "p1")
		if !errors.Is(err, ErrNotAMember) {
			t.Fatalf("%s: expected NotAMember, got %v", a, err)
		}
		// Non-membership also reads as an insufficient role.
		if !errors.Is(err, ErrInsufficientRole) {
			t.Fatalf("%s: expected NotAMember to match ErrInsufficientRole", a)
		}
	}
}

func TestAuthorize_CheckOrder(t *testing.T) {
	e := newTestEngine(Policy{})
	ctx := context.Background()

	if _, err := e.Authorize(ctx, auth.Anonymous, ActionCreateWorkspace, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := e.Authorize(ctx, auth.Admin("a1"), ActionViewWorkspace, "w1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("admins hold no memberships, got %v", err)
	}
	// Banned is reported before membership is even looked at.
	if _, err := e.Authorize(ctx, auth.User("owner", true), ActionManageWorkspaceMembers, "w1"); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected banned, got %v", err)
	}
	if _, err := e.Authorize(ctx, auth.User("stranger", true), ActionViewWorkspace, "w1"); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected banned before not-a-member, got %v", err)
	}
}

func TestAuthorize_AdminScope(t *testing.T) {
	e := newTestEngine(Policy{})
	ctx := context.Background()

	if _, err := e.Authorize(ctx, auth.Admin("a1"), ActionModerateUsers, ""); err != nil {
		t.Fatalf("expected admin allowed, got %v", err)
	}
	if _, err := e.Authorize(ctx, auth.User("owner", false), ActionListAllWorkspaces, ""); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected user denied admin action, got %v", err)
	}
}

func TestAuthorize_ViewerPolicyFlag(t *testing.T) {
	ctx := context.Background()
	on := newTestEngine(Policy{ViewerManagesProjectMembers: true})
	g, err := on.Authorize(ctx, auth.User("viewer", false), ActionManageProjectMembers, "p1")
	if err != nil {
		t.Fatalf("expected viewer allowed with flag, got %v", err)
	}
	if g.ProjectRole != ProjectViewer {
		t.Fatalf("expected grant to carry role, got %+v", g)
	}
	// The flag never extends to task mutation.
	if _, err := on.Authorize(ctx, auth.User("viewer", false), ActionUpdateTask, "p1"); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected viewer denied task update, got %v", err)
	}
}

func TestAuthorize_LookupFailureIsNotADenial(t *testing.T) {
	e := NewEngine(Policy{}, fakeLookup{err: errors.New("db down")})
	_, err := e.Authorize(context.Background(), auth.User("u", false), ActionViewWorkspace, "w1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := AsDenial(err); ok {
		t.Fatalf("infrastructure failure must not look like a denial")
	}
}

func TestUsing_SwapsLookup(t *testing.T) {
	e := newTestEngine(Policy{})
	other := e.Using(fakeLookup{workspaces: map[string]WorkspaceRole{"w2/u": WorkspaceOwner}})
	if _, err := other.Authorize(context.Background(), auth.User("u", false), ActionManageWorkspaceMembers, "w2"); err != nil {
		t.Fatalf("expected allow through swapped lookup, got %v", err)
	}
}

func TestGuards_ProtectedRolesImmutable(t *testing.T) {
	if err := GuardWorkspaceRemoval(WorkspaceOwner); !errors.Is(err, ErrProtectedEntity) {
		t.Fatalf("expected protected owner, got %v", err)
	}
	if err := GuardWorkspaceRemoval(WorkspaceAdmin); err != nil {
		t.Fatalf("expected admin removable, got %v", err)
	}
	for _, next := range []WorkspaceRole{WorkspaceAdmin, WorkspaceMember, WorkspaceViewer, WorkspaceOwner} {
		if err := GuardWorkspaceRoleChange(WorkspaceOwner, next); !errors.Is(err, ErrProtectedEntity) {
			t.Fatalf("owner -> %s: expected protected, got %v", next, err)
		}
	}
	if err := GuardWorkspaceRoleChange(WorkspaceMember, WorkspaceOwner); !errors.Is(err, ErrProtectedEntity) {
		t.Fatalf("expected promotion to owner rejected, got %v", err)
	}
	if err := GuardWorkspaceRoleChange(WorkspaceMember, WorkspaceAdmin); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}

	if err := GuardProjectRemoval(ProjectLead); !errors.Is(err, ErrProtectedEntity) {
		t.Fatalf("expected protected lead, got %v", err)
	}
	if err := GuardProjectRoleChange(ProjectContributor, ProjectLead); !errors.Is(err, ErrProtectedEntity) {
		t.Fatalf("expected promotion to lead rejected, got %v", err)
	}
	if err := GuardProjectRoleChange(ProjectViewer, ProjectContributor); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestParseRoles(t *testing.T) {
	if _, err := ParseWorkspaceRole("OWNER"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := ParseWorkspaceRole("owner"); err == nil {
		t.Fatalf("role names are case sensitive")
	}
	if _, err := ParseProjectRole("PROJECT_VIEWER"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := ParseProjectRole("VIEWER"); err == nil {
		t.Fatalf("workspace role is not a project role")
	}
}

func TestConceal(t *testing.T) {
	e := newTestEngine(Policy{})
	_, err := e.Authorize(context.Background(), auth.User("stranger", false), ActionViewTask, "p1")
	err = Conceal(err, "task")
	if !errors.Is(err, ErrNotAMember) || err.Error() != "task not found" {
		t.Fatalf("unexpected %v", err)
	}
	other := Deny(DenyInsufficientRole, "no")
	if Conceal(other, "task") != other {
		t.Fatalf("only non-membership is concealed")
	}
}
