package graph

import (
	"context"

	"collab-platform/internal/account"
	"collab-platform/internal/auth"
	"collab-platform/internal/collab"
	"collab-platform/internal/session"
	"collab-platform/internal/store"

	"github.com/graphql-go/graphql"
)

// Resolver binds the schema to the services.
type Resolver struct {
	Accounts *account.Service
	Collab   *collab.Service
}

type deviceKey struct{}

// WithDevice records the caller's network identity for session bookkeeping.
func WithDevice(ctx context.Context, d session.Device) context.Context {
	return context.WithValue(ctx, deviceKey{}, d)
}

func deviceFrom(ctx context.Context) session.Device {
	d, _ := ctx.Value(deviceKey{}).(session.Device)
	return d
}

func argString(p graphql.ResolveParams, name string) string {
	s, _ := p.Args[name].(string)
	return s
}

// argOptional returns nil when the argument was omitted or null.
func argOptional(p graphql.ResolveParams, name string) *string {
	s, ok := p.Args[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func principal(p graphql.ResolveParams) auth.Principal {
	return auth.PrincipalFrom(p.Context)
}

/* ===================== QUERIES ===================== */

func (r *Resolver) hello(p graphql.ResolveParams) (any, error) {
	return "Hello world!", nil
}

func (r *Resolver) me(p graphql.ResolveParams) (any, error) {
	id, err := r.Accounts.Me(p.Context, principal(p))
	if err != nil {
		return nil, present(p.Context, "me", err)
	}
	return map[string]any{"id": id.ID, "email": id.Email, "kind": id.Kind, "status": id.Status}, nil
}

func (r *Resolver) getWorkspace(p graphql.ResolveParams) (any, error) {
	w, err := r.Collab.GetWorkspace(p.Context, principal(p), argString(p, "id"))
	if err != nil {
		return nil, present(p.Context, "getWorkspace", err)
	}
	return workspaceView(w), nil
}

func (r *Resolver) getAllWorkspaces(p graphql.ResolveParams) (any, error) {
	ws, err := r.Collab.ListAllWorkspaces(p.Context, principal(p))
	if err != nil {
		return nil, present(p.Context, "getAllWorkspaces", err)
	}
	return listOf(ws, workspaceView), nil
}

func (r *Resolver) getMyWorkspaces(p graphql.ResolveParams) (any, error) {
	ws, err := r.Collab.ListWorkspaces(p.Context, principal(p))
	if err != nil {
		return nil, present(p.Context, "getMyWorkspaces", err)
	}
	return listOf(ws, workspaceView), nil
}

func (r *Resolver) getProject(p graphql.ResolveParams) (any, error) {
	pr, err := r.Collab.GetProject(p.Context, principal(p), argString(p, "id"))
	if err != nil {
		return nil, present(p.Context, "getProject", err)
	}
	return projectView(pr), nil
}

func (r *Resolver) getAllProjects(p graphql.ResolveParams) (any, error) {
	ps, err := r.Collab.ListProjects(p.Context, principal(p))
	if err != nil {
		return nil, present(p.Context, "getAllProjects", err)
	}
	return listOf(ps, projectView), nil
}

func (r *Resolver) getTask(p graphql.ResolveParams) (any, error) {
	t, err := r.Collab.GetTask(p.Context, principal(p), argString(p, "id"))
	if err != nil {
		return nil, present(p.Context, "getTask", err)
	}
	return taskView(t), nil
}

func (r *Resolver) getAllTasks(p graphql.ResolveParams) (any, error) {
	ts, err := r.Collab.ListTasks(p.Context, principal(p), argString(p, "projectId"))
	if err != nil {
		return nil, present(p.Context, "getAllTasks", err)
	}
	return listOf(ts, taskView), nil
}

/* ===================== NESTED FIELDS ===================== */

// Nested fields are only reached through a parent the caller was authorized to read.

func (r *Resolver) memberUser(p graphql.ResolveParams) (any, error) {
	u, err := r.Collab.User(p.Context, sourceString(p.Source, "userId"))
	if err != nil {
		return nil, present(p.Context, "member.user", err)
	}
	return userView(u), nil
}

func (r *Resolver) workspaceMembers(p graphql.ResolveParams) (any, error) {
	ms, err := r.Collab.WorkspaceMembers(p.Context, sourceString(p.Source, "id"))
	if err != nil {
		return nil, present(p.Context, "workspace.members", err)
	}
	return listOf(ms, workspaceMemberView), nil
}

func (r *Resolver) projectMembers(p graphql.ResolveParams) (any, error) {
	ms, err := r.Collab.ProjectMembers(p.Context, sourceString(p.Source, "id"))
	if err != nil {
		return nil, present(p.Context, "project.members", err)
	}
	return listOf(ms, projectMemberView), nil
}

func (r *Resolver) projectTasks(p graphql.ResolveParams) (any, error) {
	ts, err := r.Collab.ProjectTasks(p.Context, sourceString(p.Source, "id"))
	if err != nil {
		return nil, present(p.Context, "project.tasks", err)
	}
	return listOf(ts, taskView), nil
}

func (r *Resolver) taskProject(p graphql.ResolveParams) (any, error) {
	pr, err := r.Collab.ProjectByID(p.Context, sourceString(p.Source, "projectId"))
	if err != nil {
		return nil, present(p.Context, "task.project", err)
	}
	return projectView(pr), nil
}

func (r *Resolver) taskAssignee(p graphql.ResolveParams) (any, error) {
	id := sourceString(p.Source, "assigneeId")
	if id == "" {
		return nil, nil
	}
	u, err := r.Collab.User(p.Context, id)
	if err != nil {
		return nil, present(p.Context, "task.assignee", err)
	}
	return userView(u), nil
}

/* ===================== ACCOUNT MUTATIONS ===================== */

func (r *Resolver) register(p graphql.ResolveParams) (any, error) {
	in := account.RegisterInput{Email: argString(p, "email"), Password: argString(p, "password")}
	u, pair, err := r.Accounts.Register(p.Context, in, deviceFrom(p.Context))
	if err != nil {
		return nil, present(p.Context, "register", err)
	}
	return map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         userView(u),
	}, nil
}

func (r *Resolver) forgotPassword(p graphql.ResolveParams) (any, error) {
	msg, err := r.Accounts.ForgotPassword(p.Context, argString(p, "email"))
	if err != nil {
		return nil, present(p.Context, "forgotPassword", err)
	}
	return outcome(msg), nil
}

func (r *Resolver) resetPassword(p graphql.ResolveParams) (any, error) {
	if err := r.Accounts.ResetPassword(p.Context, argString(p, "token"), argString(p, "newPassword")); err != nil {
		return nil, present(p.Context, "resetPassword", err)
	}
	return outcome("Password has been reset"), nil
}

func (r *Resolver) updatePassword(p graphql.ResolveParams) (any, error) {
	err := r.Accounts.UpdatePassword(p.Context, principal(p), argString(p, "currentPassword"), argString(p, "newPassword"))
	if err != nil {
		return nil, present(p.Context, "updatePassword", err)
	}
	return outcome("Password updated successfully"), nil
}

/* ===================== WORKSPACE MUTATIONS ===================== */

func (r *Resolver) createWorkspace(p graphql.ResolveParams) (any, error) {
	w, err := r.Collab.CreateWorkspace(p.Context, principal(p), collab.CreateWorkspaceInput{
		Name:        argString(p, "name"),
		Description: argString(p, "description"),
	})
	if err != nil {
		return nil, present(p.Context, "createWorkspace", err)
	}
	return workspaceView(w), nil
}

func (r *Resolver) addWorkspaceMember(p graphql.ResolveParams) (any, error) {
	m, err := r.Collab.AddWorkspaceMember(p.Context, principal(p), argString(p, "workspaceId"), argString(p, "userEmail"))
	if err != nil {
		return nil, present(p.Context, "addWorkspaceMember", err)
	}
	return workspaceMemberView(m), nil
}

func (r *Resolver) removeWorkspaceMember(p graphql.ResolveParams) (any, error) {
	err := r.Collab.RemoveWorkspaceMember(p.Context, principal(p), argString(p, "workspaceId"), argString(p, "memberId"))
	if err != nil {
		return nil, present(p.Context, "removeWorkspaceMember", err)
	}
	return outcome("Member removed"), nil
}

func (r *Resolver) updateWorkspaceMemberRole(p graphql.ResolveParams) (any, error) {
	ch, err := r.Collab.UpdateWorkspaceMemberRole(p.Context, principal(p), argString(p, "workspaceId"), argString(p, "memberId"), argString(p, "newRole"))
	if err != nil {
		return nil, present(p.Context, "updateWorkspaceMemberRole", err)
	}
	out := outcome("Role updated")
	out["previousRole"] = string(ch.Previous)
	out["newRole"] = string(ch.New)
	return out, nil
}

/* ===================== PROJECT MUTATIONS ===================== */

func (r *Resolver) createProject(p graphql.ResolveParams) (any, error) {
	pr, err := r.Collab.CreateProject(p.Context, principal(p), collab.CreateProjectInput{
		WorkspaceID: argString(p, "workspaceId"),
		Name:        argString(p, "name"),
		Description: argString(p, "description"),
	})
	if err != nil {
		return nil, present(p.Context, "createProject", err)
	}
	return projectView(pr), nil
}

func (r *Resolver) updateProject(p graphql.ResolveParams) (any, error) {
	pr, err := r.Collab.UpdateProject(p.Context, principal(p), argString(p, "projectId"), collab.UpdateProjectInput{
		Name:        argOptional(p, "name"),
		Description: argOptional(p, "description"),
	})
	if err != nil {
		return nil, present(p.Context, "updateProject", err)
	}
	return projectView(pr), nil
}

func (r *Resolver) deleteProject(p graphql.ResolveParams) (any, error) {
	if err := r.Collab.DeleteProject(p.Context, principal(p), argString(p, "projectId")); err != nil {
		return nil, present(p.Context, "deleteProject", err)
	}
	return outcome("Project deleted"), nil
}

func (r *Resolver) addProjectMember(p graphql.ResolveParams) (any, error) {
	m, err := r.Collab.AddProjectMember(p.Context, principal(p), argString(p, "projectId"), argString(p, "userEmail"))
	if err != nil {
		return nil, present(p.Context, "addProjectMember", err)
	}
	return projectMemberView(m), nil
}

func (r *Resolver) removeProjectMember(p graphql.ResolveParams) (any, error) {
	err := r.Collab.RemoveProjectMember(p.Context, principal(p), argString(p, "projectId"), argString(p, "memberId"))
	if err != nil {
		return nil, present(p.Context, "removeProjectMember", err)
	}
	return outcome("Project member removed"), nil
}

func (r *Resolver) updateProjectMemberRole(p graphql.ResolveParams) (any, error) {
	ch, err := r.Collab.UpdateProjectMemberRole(p.Context, principal(p), argString(p, "projectId"), argString(p, "memberId"), argString(p, "newRole"))
	if err != nil {
		return nil, present(p.Context, "updateProjectMemberRole", err)
	}
	out := outcome("Project member role updated")
	out["previousRole"] = string(ch.Previous)
	out["newRole"] = string(ch.New)
	return out, nil
}

/* ===================== TASK MUTATIONS ===================== */

func (r *Resolver) createTask(p graphql.ResolveParams) (any, error) {
	t, err := r.Collab.CreateTask(p.Context, principal(p), collab.CreateTaskInput{
		ProjectID:   argString(p, "projectId"),
		Title:       argString(p, "title"),
		Description: argString(p, "description"),
		Status:      store.TaskStatus(argString(p, "status")),
		AssigneeID:  argString(p, "assigneeId"),
		DueDate:     argString(p, "dueDate"),
	})
	if err != nil {
		return nil, present(p.Context, "createTask", err)
	}
	return taskView(t), nil
}

func (r *Resolver) updateTask(p graphql.ResolveParams) (any, error) {
	in := collab.UpdateTaskInput{
		Title:       argOptional(p, "title"),
		Description: argOptional(p, "description"),
		AssigneeID:  argOptional(p, "assigneeId"),
		DueDate:     argOptional(p, "dueDate"),
	}
	if s := argOptional(p, "status"); s != nil {
		status := store.TaskStatus(*s)
		in.Status = &status
	}
	t, err := r.Collab.UpdateTask(p.Context, principal(p), argString(p, "taskId"), in)
	if err != nil {
		return nil, present(p.Context, "updateTask", err)
	}
	return taskView(t), nil
}

func (r *Resolver) deleteTask(p graphql.ResolveParams) (any, error) {
	if err := r.Collab.DeleteTask(p.Context, principal(p), argString(p, "taskId")); err != nil {
		return nil, present(p.Context, "deleteTask", err)
	}
	return outcome("Task deleted"), nil
}
