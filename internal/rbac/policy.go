package rbac

// Action names one guarded operation.
type Action string

const (
	ActionCreateWorkspace        Action = "workspace.create"
	ActionViewWorkspace          Action = "workspace.view"
	ActionManageWorkspaceMembers Action = "workspace.members.manage"

	ActionCreateProject        Action = "project.create"
	ActionViewProject          Action = "project.view"
	ActionUpdateProject        Action = "project.update"
	ActionDeleteProject        Action = "project.delete"
	ActionManageProjectMembers Action = "project.members.manage"

	ActionViewTask   Action = "task.view"
	ActionCreateTask Action = "task.create"
	ActionUpdateTask Action = "task.update"
	ActionDeleteTask Action = "task.delete"

	ActionListAllWorkspaces Action = "admin.workspaces.list"
	ActionModerateUsers     Action = "admin.users.moderate"
)

// Scope is the level at which an action's roles are evaluated.
type Scope int

const (
	// ScopeNone needs only an authenticated, non-banned user.
	ScopeNone Scope = iota
	ScopeWorkspace
	ScopeProject
	// ScopeAdmin needs an admin principal.
	ScopeAdmin
)

func (s Scope) String() string {
	switch s {
	case ScopeWorkspace:
		return "workspace"
	case ScopeProject:
		return "project"
	case ScopeAdmin:
		return "admin"
	}
	return "none"
}

// Rule is one row of the policy table. A nil role list on a scoped rule means
// any member of the scope.
type Rule struct {
	Scope          Scope
	WorkspaceRoles []WorkspaceRole
	ProjectRoles   []ProjectRole
}

func (r Rule) allowsWorkspace(role WorkspaceRole) bool {
	if r.WorkspaceRoles == nil {
		return true
	}
	for _, allowed := range r.WorkspaceRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

func (r Rule) allowsProject(role ProjectRole) bool {
	if r.ProjectRoles == nil {
		return true
	}
	for _, allowed := range r.ProjectRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Policy holds the rule table. The zero value is the canonical policy.
type Policy struct {
	// ViewerManagesProjectMembers grants PROJECT_VIEWER the member-management
	// rights of PROJECT_LEAD. Off unless explicitly configured.
	ViewerManagesProjectMembers bool
}

// Rule returns the table row for action.
func (p Policy) Rule(a Action) (Rule, bool) {
	switch a {
	case ActionCreateWorkspace:
		return Rule{Scope: ScopeNone}, true
	case ActionViewWorkspace:
		return Rule{Scope: ScopeWorkspace}, true
	case ActionManageWorkspaceMembers:
		return Rule{Scope: ScopeWorkspace, WorkspaceRoles: []WorkspaceRole{WorkspaceOwner}}, true
	case ActionCreateProject:
		return Rule{Scope: ScopeWorkspace, WorkspaceRoles: []WorkspaceRole{WorkspaceOwner, WorkspaceMember}}, true

	case ActionViewProject, ActionUpdateProject, ActionViewTask:
		return Rule{Scope: ScopeProject}, true
	case ActionDeleteProject:
		return Rule{Scope: ScopeProject, ProjectRoles: []ProjectRole{ProjectLead}}, true
	case ActionManageProjectMembers:
		roles := []ProjectRole{ProjectLead}
		if p.ViewerManagesProjectMembers {
			roles = append(roles, ProjectViewer)
		}
		return Rule{Scope: ScopeProject, ProjectRoles: roles}, true
	case ActionCreateTask, ActionUpdateTask, ActionDeleteTask:
		return Rule{Scope: ScopeProject, ProjectRoles: []ProjectRole{ProjectLead, ProjectContributor}}, true

	case ActionListAllWorkspaces, ActionModerateUsers:
		return Rule{Scope: ScopeAdmin}, true
	}
	return Rule{}, false
}
