package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab-platform/internal/auth"
	"collab-platform/internal/rbac"
	"collab-platform/internal/store"

	"github.com/google/uuid"
)

type fixture struct {
	svc   *Service
	store *store.Memory
}

func newFixture(t *testing.T, policy rbac.Policy) *fixture {
	t.Helper()
	st := store.NewMemory()
	svc := NewService(st, rbac.NewEngine(policy, st))
	svc.clock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return &fixture{svc: svc, store: st}
}

func (f *fixture) user(t *testing.T, email string) auth.Principal {
	t.Helper()
	u := store.User{ID: uuid.NewString(), Email: email, PasswordHash: "x", Status: store.UserActive, CreatedAt: time.Now()}
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return auth.User(u.ID, false)
}

func (f *fixture) workspace(t *testing.T, owner auth.Principal) store.Workspace {
	t.Helper()
	w, err := f.svc.CreateWorkspace(context.Background(), owner, CreateWorkspaceInput{Name: "acme"})
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return w
}

func (f *fixture) project(t *testing.T, lead auth.Principal, workspaceID string) store.Project {
	t.Helper()
	p, err := f.svc.CreateProject(context.Background(), lead, CreateProjectInput{WorkspaceID: workspaceID, Name: "launch"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestCreateWorkspaceMakesCallerOwner(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")

	w := f.workspace(t, a)
	role, ok, err := f.store.WorkspaceMemberRole(ctx, w.ID, a.ID)
	if err != nil || !ok || role != rbac.WorkspaceOwner {
		t.Fatalf("expected OWNER membership, got %v %v %v", role, ok, err)
	}

	if _, err := f.svc.CreateWorkspace(ctx, auth.Anonymous, CreateWorkspaceInput{Name: "x"}); !errors.Is(err, rbac.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := f.svc.CreateWorkspace(ctx, a, CreateWorkspaceInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

// A creates W and Pr, invites B. B may create projects in W but cannot delete A's project.
func TestMemberCannotDeleteForeignProject(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")

	w := f.workspace(t, a)
	pr := f.project(t, a, w.ID)

	role, ok, _ := f.store.ProjectMemberRole(ctx, pr.ID, a.ID)
	if !ok || role != rbac.ProjectLead {
		t.Fatalf("expected A to lead the project, got %v %v", role, ok)
	}

	m, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "B@example.com")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Role != rbac.WorkspaceMember || m.UserID != b.ID {
		t.Fatalf("unexpected membership %+v", m)
	}

	if _, err := f.svc.CreateProject(ctx, b, CreateProjectInput{WorkspaceID: w.ID, Name: "side"}); err != nil {
		t.Fatalf("member should create projects: %v", err)
	}

	err = f.svc.DeleteProject(ctx, b, pr.ID)
	if !errors.Is(err, rbac.ErrInsufficientRole) || !errors.Is(err, rbac.ErrNotAMember) {
		t.Fatalf("expected not-a-member denial, got %v", err)
	}
	if _, err := f.store.ProjectByID(ctx, pr.ID); err != nil {
		t.Fatalf("project must survive: %v", err)
	}
}

func TestViewerCannotCreateProject(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	v := f.user(t, "v@example.com")
	w := f.workspace(t, a)

	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "v@example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.UpdateWorkspaceMemberRole(ctx, a, w.ID, v.ID, "VIEWER"); err != nil {
		t.Fatalf("demote: %v", err)
	}
	_, err := f.svc.CreateProject(ctx, v, CreateProjectInput{WorkspaceID: w.ID, Name: "nope"})
	if !errors.Is(err, rbac.ErrInsufficientRole) || errors.Is(err, rbac.ErrNotAMember) {
		t.Fatalf("expected insufficient role, got %v", err)
	}
}

func TestWorkspaceMemberMutations(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	w := f.workspace(t, a)

	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected unknown user, got %v", err)
	}
	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "b@example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "b@example.com"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	// Only the owner manages members.
	if _, err := f.svc.AddWorkspaceMember(ctx, b, w.ID, "a@example.com"); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("expected insufficient role, got %v", err)
	}

	change, err := f.svc.UpdateWorkspaceMemberRole(ctx, a, w.ID, b.ID, "ADMIN")
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if change.Previous != rbac.WorkspaceMember || change.New != rbac.WorkspaceAdmin || change.Member.Role != rbac.WorkspaceAdmin {
		t.Fatalf("unexpected change %+v", change)
	}

	if _, err := f.svc.UpdateWorkspaceMemberRole(ctx, a, w.ID, b.ID, "OWNER"); !errors.Is(err, rbac.ErrProtectedEntity) {
		t.Fatalf("expected promotion to owner to be refused, got %v", err)
	}
	if _, err := f.svc.UpdateWorkspaceMemberRole(ctx, a, w.ID, b.ID, "GOD"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid role, got %v", err)
	}

	if err := f.svc.RemoveWorkspaceMember(ctx, a, w.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.svc.RemoveWorkspaceMember(ctx, a, w.ID, b.ID); !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected member not found, got %v", err)
	}
}

func TestOwnerIsProtected(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	w := f.workspace(t, a)

	// Forged self-calls included.
	if err := f.svc.RemoveWorkspaceMember(ctx, a, w.ID, a.ID); !errors.Is(err, rbac.ErrProtectedEntity) {
		t.Fatalf("expected protected owner, got %v", err)
	}
	if _, err := f.svc.UpdateWorkspaceMemberRole(ctx, a, w.ID, a.ID, "MEMBER"); !errors.Is(err, rbac.ErrProtectedEntity) {
		t.Fatalf("expected protected owner, got %v", err)
	}
	role, _, _ := f.store.WorkspaceMemberRole(ctx, w.ID, a.ID)
	if role != rbac.WorkspaceOwner {
		t.Fatalf("owner role changed to %v", role)
	}
}

func TestGetWorkspaceConcealsExistence(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	c := f.user(t, "c@example.com")
	w := f.workspace(t, a)

	_, errExisting := f.svc.GetWorkspace(ctx, c, w.ID)
	_, errMissing := f.svc.GetWorkspace(ctx, c, uuid.NewString())
	if errExisting == nil || errMissing == nil || errExisting.Error() != errMissing.Error() {
		t.Fatalf("expected identical denials, got %v / %v", errExisting, errMissing)
	}
	if errExisting.Error() != "workspace not found" {
		t.Fatalf("unexpected reason %q", errExisting.Error())
	}

	got, err := f.svc.GetWorkspace(ctx, a, w.ID)
	if err != nil || got.ID != w.ID {
		t.Fatalf("owner get: %v %+v", err, got)
	}
}

func TestListAllWorkspacesRequiresAdmin(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	f.workspace(t, a)
	f.workspace(t, f.user(t, "b@example.com"))

	if _, err := f.svc.ListAllWorkspaces(ctx, a); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("expected admin-only, got %v", err)
	}
	all, err := f.svc.ListAllWorkspaces(ctx, auth.Admin("admin-1"))
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 workspaces, got %d %v", len(all), err)
	}
	mine, err := f.svc.ListWorkspaces(ctx, a)
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected 1 own workspace, got %d %v", len(mine), err)
	}
}

func TestBannedUserIsDeniedEverywhere(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	w := f.workspace(t, a)

	banned := auth.User(a.ID, true)
	if _, err := f.svc.GetWorkspace(ctx, banned, w.ID); !errors.Is(err, rbac.ErrBanned) {
		t.Fatalf("expected banned, got %v", err)
	}
	if _, err := f.svc.ListWorkspaces(ctx, banned); !errors.Is(err, rbac.ErrBanned) {
		t.Fatalf("expected banned, got %v", err)
	}
}

func TestProjectMembers(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	f.user(t, "outsider@example.com")
	w := f.workspace(t, a)
	pr := f.project(t, a, w.ID)

	if _, err := f.svc.AddProjectMember(ctx, a, pr.ID, "outsider@example.com"); !errors.Is(err, ErrNotWorkspaceMember) {
		t.Fatalf("expected workspace membership requirement, got %v", err)
	}
	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "b@example.com"); err != nil {
		t.Fatalf("add ws member: %v", err)
	}
	m, err := f.svc.AddProjectMember(ctx, a, pr.ID, "b@example.com")
	if err != nil || m.Role != rbac.ProjectContributor {
		t.Fatalf("add project member: %v %+v", err, m)
	}
	if _, err := f.svc.AddProjectMember(ctx, a, pr.ID, "b@example.com"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	// Contributors do not manage members.
	if err := f.svc.RemoveProjectMember(ctx, b, pr.ID, a.ID); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("expected insufficient role, got %v", err)
	}
	if err := f.svc.RemoveProjectMember(ctx, a, pr.ID, a.ID); !errors.Is(err, rbac.ErrProtectedEntity) {
		t.Fatalf("expected protected lead, got %v", err)
	}
	if _, err := f.svc.UpdateProjectMemberRole(ctx, a, pr.ID, b.ID, "PROJECT_LEAD"); !errors.Is(err, rbac.ErrProtectedEntity) {
		t.Fatalf("expected promotion refused, got %v", err)
	}

	change, err := f.svc.UpdateProjectMemberRole(ctx, a, pr.ID, b.ID, "PROJECT_VIEWER")
	if err != nil || change.Previous != rbac.ProjectContributor || change.New != rbac.ProjectViewer {
		t.Fatalf("update role: %v %+v", err, change)
	}
	if err := f.svc.RemoveProjectMember(ctx, a, pr.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestViewerManagesProjectMembersOnlyWhenEnabled(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		f := newFixture(t, rbac.Policy{ViewerManagesProjectMembers: enabled})
		ctx := context.Background()
		a := f.user(t, "a@example.com")
		v := f.user(t, "v@example.com")
		f.user(t, "c@example.com")
		w := f.workspace(t, a)
		pr := f.project(t, a, w.ID)
		for _, email := range []string{"v@example.com", "c@example.com"} {
			if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, email); err != nil {
				t.Fatalf("add ws member: %v", err)
			}
		}
		if _, err := f.svc.AddProjectMember(ctx, a, pr.ID, "v@example.com"); err != nil {
			t.Fatalf("add project member: %v", err)
		}
		if _, err := f.svc.UpdateProjectMemberRole(ctx, a, pr.ID, v.ID, "PROJECT_VIEWER"); err != nil {
			t.Fatalf("demote: %v", err)
		}

		_, err := f.svc.AddProjectMember(ctx, v, pr.ID, "c@example.com")
		if enabled && err != nil {
			t.Fatalf("flag on: expected viewer to add members, got %v", err)
		}
		if !enabled && !errors.Is(err, rbac.ErrInsufficientRole) {
			t.Fatalf("flag off: expected insufficient role, got %v", err)
		}
	}
}

func TestUpdateAndDeleteProject(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	w := f.workspace(t, a)
	pr := f.project(t, a, w.ID)
	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "b@example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.AddProjectMember(ctx, a, pr.ID, "b@example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}

	name := "renamed"
	got, err := f.svc.UpdateProject(ctx, b, pr.ID, UpdateProjectInput{Name: &name})
	if err != nil || got.Name != "renamed" {
		t.Fatalf("any member may update: %v %+v", err, got)
	}
	empty := ""
	if _, err := f.svc.UpdateProject(ctx, b, pr.ID, UpdateProjectInput{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	if err := f.svc.DeleteProject(ctx, b, pr.ID); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("contributor must not delete, got %v", err)
	}
	if err := f.svc.DeleteProject(ctx, a, pr.ID); err != nil {
		t.Fatalf("lead delete: %v", err)
	}
	if _, err := f.svc.GetProject(ctx, a, pr.ID); !errors.Is(err, rbac.ErrNotAMember) {
		t.Fatalf("expected project gone, got %v", err)
	}
}

func TestRemoveWorkspaceMemberDropsProjectAccess(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	w := f.workspace(t, a)
	pr := f.project(t, a, w.ID)

	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "b@example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.AddProjectMember(ctx, a, pr.ID, "b@example.com"); err != nil {
		t.Fatalf("add project member: %v", err)
	}
	if err := f.svc.RemoveWorkspaceMember(ctx, a, w.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := f.store.ProjectMemberRole(ctx, pr.ID, b.ID); ok {
		t.Fatalf("project membership must go with the workspace membership")
	}
	if _, err := f.svc.CreateTask(ctx, b, CreateTaskInput{ProjectID: pr.ID, Title: "x"}); !errors.Is(err, rbac.ErrNotAMember) {
		t.Fatalf("removed member: expected not a member, got %v", err)
	}

	// A member who leads a project in the workspace cannot be removed.
	if _, err := f.svc.AddWorkspaceMember(ctx, a, w.ID, "b@example.com"); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	side := f.project(t, b, w.ID)
	if err := f.svc.RemoveWorkspaceMember(ctx, a, w.ID, b.ID); !errors.Is(err, rbac.ErrProtectedEntity) {
		t.Fatalf("expected protected entity, got %v", err)
	}
	if _, ok, _ := f.store.WorkspaceMemberRole(ctx, w.ID, b.ID); !ok {
		t.Fatalf("refused removal must leave the workspace membership")
	}
	if role, ok, _ := f.store.ProjectMemberRole(ctx, side.ID, b.ID); !ok || role != rbac.ProjectLead {
		t.Fatalf("refused removal must leave the lead in place, got %v %v", role, ok)
	}
}

func TestNonMemberIsDeniedBeforeInputIsChecked(t *testing.T) {
	f := newFixture(t, rbac.Policy{})
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	o := f.user(t, "o@example.com")
	w := f.workspace(t, a)
	pr := f.project(t, a, w.ID)
	task, err := f.svc.CreateTask(ctx, a, CreateTaskInput{ProjectID: pr.ID, Title: "t"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	empty := ""
	bad := store.TaskStatus("WONTFIX")

	checks := map[string]func() error{
		"createProject": func() error {
			_, err := f.svc.CreateProject(ctx, o, CreateProjectInput{WorkspaceID: w.ID})
			return err
		},
		"updateProject": func() error {
			_, err := f.svc.UpdateProject(ctx, o, pr.ID, UpdateProjectInput{Name: &empty})
			return err
		},
		"updateWorkspaceMemberRole": func() error {
			_, err := f.svc.UpdateWorkspaceMemberRole(ctx, o, w.ID, a.ID, "GOD")
			return err
		},
		"updateProjectMemberRole": func() error {
			_, err := f.svc.UpdateProjectMemberRole(ctx, o, pr.ID, a.ID, "GOD")
			return err
		},
		"createTask": func() error {
			_, err := f.svc.CreateTask(ctx, o, CreateTaskInput{ProjectID: pr.ID, DueDate: "someday"})
			return err
		},
		"updateTask": func() error {
			_, err := f.svc.UpdateTask(ctx, o, task.ID, UpdateTaskInput{Status: &bad})
			return err
		},
	}
	for name, run := range checks {
		err := run()
		if !errors.Is(err, rbac.ErrNotAMember) || errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected not a member, got %v", name, err)
		}
	}
}
