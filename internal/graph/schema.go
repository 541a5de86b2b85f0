package graph

import (
	"collab-platform/internal/rbac"
	"collab-platform/internal/store"

	"github.com/graphql-go/graphql"
)

func enumOf(name string, values ...string) *graphql.Enum {
	m := graphql.EnumValueConfigMap{}
	for _, v := range values {
		m[v] = &graphql.EnumValueConfig{Value: v}
	}
	return graphql.NewEnum(graphql.EnumConfig{Name: name, Values: m})
}

func nn(t graphql.Type) *graphql.NonNull { return graphql.NewNonNull(t) }

func listNN(t graphql.Type) *graphql.NonNull { return nn(graphql.NewList(nn(t))) }

func outcomeType(name string) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			"success": &graphql.Field{Type: nn(graphql.Boolean)},
			"message": &graphql.Field{Type: graphql.String},
		},
	})
}

func roleChangeType(name string, role *graphql.Enum) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			"success":      &graphql.Field{Type: nn(graphql.Boolean)},
			"message":      &graphql.Field{Type: graphql.String},
			"previousRole": &graphql.Field{Type: role},
			"newRole":      &graphql.Field{Type: role},
		},
	})
}

type types struct {
	workspaceRole, projectRole, taskStatus *graphql.Enum

	user, identity, authPayload *graphql.Object
	workspace, workspaceMember  *graphql.Object
	project, projectMember      *graphql.Object
	task                        *graphql.Object

	forgotPassword, resetPassword, updatePassword *graphql.Object
	removeMember, removeProjectMember             *graphql.Object
	updateMemberRole, updateProjectMemberRole     *graphql.Object
	deleteProject, deleteTask                     *graphql.Object
}

func (r *Resolver) buildTypes() *types {
	t := &types{
		workspaceRole: enumOf("WorkspaceRole",
			string(rbac.WorkspaceOwner), string(rbac.WorkspaceMember), string(rbac.WorkspaceViewer), string(rbac.WorkspaceAdmin)),
		projectRole: enumOf("ProjectRole",
			string(rbac.ProjectLead), string(rbac.ProjectContributor), string(rbac.ProjectViewer)),
		taskStatus: enumOf("TaskStatus",
			string(store.TaskTodo), string(store.TaskInProgress), string(store.TaskDone), string(store.TaskBlocked)),
	}

	t.user = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: nn(graphql.ID)},
			"email":     &graphql.Field{Type: nn(graphql.String)},
			"status":    &graphql.Field{Type: graphql.String},
			"createdAt": &graphql.Field{Type: nn(graphql.String)},
			"updatedAt": &graphql.Field{Type: nn(graphql.String)},
		},
	})

	t.identity = graphql.NewObject(graphql.ObjectConfig{
		Name: "Identity",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: nn(graphql.ID)},
			"email":  &graphql.Field{Type: nn(graphql.String)},
			"kind":   &graphql.Field{Type: nn(graphql.String)},
			"status": &graphql.Field{Type: graphql.String},
		},
	})

	t.authPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "AuthPayload",
		Fields: graphql.Fields{
			"accessToken":  &graphql.Field{Type: nn(graphql.String)},
			"refreshToken": &graphql.Field{Type: nn(graphql.String)},
			"user":         &graphql.Field{Type: nn(t.user)},
		},
	})

	t.workspaceMember = graphql.NewObject(graphql.ObjectConfig{
		Name: "WorkspaceMember",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: nn(graphql.ID)},
			"user":     &graphql.Field{Type: nn(t.user), Resolve: r.memberUser},
			"role":     &graphql.Field{Type: nn(t.workspaceRole)},
			"joinedAt": &graphql.Field{Type: nn(graphql.String)},
		},
	})

	t.workspace = graphql.NewObject(graphql.ObjectConfig{
		Name: "Workspace",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: nn(graphql.ID)},
			"name":        &graphql.Field{Type: nn(graphql.String)},
			"description": &graphql.Field{Type: graphql.String},
			"createdAt":   &graphql.Field{Type: nn(graphql.String)},
			"updatedAt":   &graphql.Field{Type: nn(graphql.String)},
			"members":     &graphql.Field{Type: listNN(t.workspaceMember), Resolve: r.workspaceMembers},
		},
	})

	t.projectMember = graphql.NewObject(graphql.ObjectConfig{
		Name: "ProjectMember",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: nn(graphql.ID)},
			"user":     &graphql.Field{Type: nn(t.user), Resolve: r.memberUser},
			"role":     &graphql.Field{Type: nn(t.projectRole)},
			"joinedAt": &graphql.Field{Type: nn(graphql.String)},
		},
	})

	// Project and Task reference each other.
	t.project = graphql.NewObject(graphql.ObjectConfig{
		Name: "Project",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":          &graphql.Field{Type: nn(graphql.ID)},
				"workspaceId": &graphql.Field{Type: nn(graphql.ID)},
				"name":        &graphql.Field{Type: nn(graphql.String)},
				"description": &graphql.Field{Type: graphql.String},
				"createdAt":   &graphql.Field{Type: nn(graphql.String)},
				"updatedAt":   &graphql.Field{Type: nn(graphql.String)},
				"members":     &graphql.Field{Type: listNN(t.projectMember), Resolve: r.projectMembers},
				"tasks":       &graphql.Field{Type: listNN(t.task), Resolve: r.projectTasks},
			}
		}),
	})

	t.task = graphql.NewObject(graphql.ObjectConfig{
		Name: "Task",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":          &graphql.Field{Type: nn(graphql.ID)},
				"project":     &graphql.Field{Type: nn(t.project), Resolve: r.taskProject},
				"title":       &graphql.Field{Type: nn(graphql.String)},
				"description": &graphql.Field{Type: graphql.String},
				"status":      &graphql.Field{Type: nn(t.taskStatus)},
				"assignee":    &graphql.Field{Type: t.user, Resolve: r.taskAssignee},
				"dueDate":     &graphql.Field{Type: graphql.String},
				"createdAt":   &graphql.Field{Type: nn(graphql.String)},
				"updatedAt":   &graphql.Field{Type: nn(graphql.String)},
			}
		}),
	})

	t.forgotPassword = outcomeType("ForgotPasswordResponse")
	t.resetPassword = outcomeType("ResetPasswordResponse")
	t.updatePassword = outcomeType("UpdatePasswordResponse")
	t.removeMember = outcomeType("RemoveMemberResponse")
	t.removeProjectMember = outcomeType("RemoveProjectMemberResponse")
	t.deleteProject = outcomeType("DeleteProjectResponse")
	t.deleteTask = outcomeType("DeleteTaskResponse")
	t.updateMemberRole = roleChangeType("UpdateMemberRoleResponse", t.workspaceRole)
	t.updateProjectMemberRole = roleChangeType("UpdateProjectMemberRoleResponse", t.projectRole)

	return t
}

func arg(t graphql.Input) *graphql.ArgumentConfig { return &graphql.ArgumentConfig{Type: t} }

// NewSchema builds the executable schema around r.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	t := r.buildTypes()
	id := graphql.NewNonNull(graphql.ID)
	str := graphql.NewNonNull(graphql.String)

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello":            &graphql.Field{Type: graphql.String, Resolve: r.hello},
			"me":               &graphql.Field{Type: t.identity, Resolve: r.me},
			"getWorkspace":     &graphql.Field{Type: t.workspace, Args: graphql.FieldConfigArgument{"id": arg(id)}, Resolve: r.getWorkspace},
			"getAllWorkspaces": &graphql.Field{Type: listNN(t.workspace), Resolve: r.getAllWorkspaces},
			"getMyWorkspaces":  &graphql.Field{Type: listNN(t.workspace), Resolve: r.getMyWorkspaces},
			"getProject":       &graphql.Field{Type: t.project, Args: graphql.FieldConfigArgument{"id": arg(id)}, Resolve: r.getProject},
			"getAllProjects":   &graphql.Field{Type: listNN(t.project), Resolve: r.getAllProjects},
			"getTask":          &graphql.Field{Type: t.task, Args: graphql.FieldConfigArgument{"id": arg(id)}, Resolve: r.getTask},
			"getAllTasks":      &graphql.Field{Type: listNN(t.task), Args: graphql.FieldConfigArgument{"projectId": arg(id)}, Resolve: r.getAllTasks},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type:    nn(t.authPayload),
				Args:    graphql.FieldConfigArgument{"email": arg(str), "password": arg(str)},
				Resolve: r.register,
			},
			"forgotPassword": &graphql.Field{
				Type:    nn(t.forgotPassword),
				Args:    graphql.FieldConfigArgument{"email": arg(str)},
				Resolve: r.forgotPassword,
			},
			"resetPassword": &graphql.Field{
				Type:    nn(t.resetPassword),
				Args:    graphql.FieldConfigArgument{"token": arg(str), "newPassword": arg(str)},
				Resolve: r.resetPassword,
			},
			"updatePassword": &graphql.Field{
				Type:    nn(t.updatePassword),
				Args:    graphql.FieldConfigArgument{"currentPassword": arg(str), "newPassword": arg(str)},
				Resolve: r.updatePassword,
			},

			"createWorkspace": &graphql.Field{
				Type:    nn(t.workspace),
				Args:    graphql.FieldConfigArgument{"name": arg(str), "description": arg(graphql.String)},
				Resolve: r.createWorkspace,
			},
			"addWorkspaceMember": &graphql.Field{
				Type:    nn(t.workspaceMember),
				Args:    graphql.FieldConfigArgument{"workspaceId": arg(id), "userEmail": arg(str)},
				Resolve: r.addWorkspaceMember,
			},
			"removeWorkspaceMember": &graphql.Field{
				Type:    nn(t.removeMember),
				Args:    graphql.FieldConfigArgument{"workspaceId": arg(id), "memberId": arg(id)},
				Resolve: r.removeWorkspaceMember,
			},
			"updateWorkspaceMemberRole": &graphql.Field{
				Type:    nn(t.updateMemberRole),
				Args:    graphql.FieldConfigArgument{"workspaceId": arg(id), "memberId": arg(id), "newRole": arg(nn(t.workspaceRole))},
				Resolve: r.updateWorkspaceMemberRole,
			},

			"createProject": &graphql.Field{
				Type:    nn(t.project),
				Args:    graphql.FieldConfigArgument{"workspaceId": arg(id), "name": arg(str), "description": arg(graphql.String)},
				Resolve: r.createProject,
			},
			"updateProject": &graphql.Field{
				Type:    nn(t.project),
				Args:    graphql.FieldConfigArgument{"projectId": arg(id), "name": arg(graphql.String), "description": arg(graphql.String)},
				Resolve: r.updateProject,
			},
			"deleteProject": &graphql.Field{
				Type:    nn(t.deleteProject),
				Args:    graphql.FieldConfigArgument{"projectId": arg(id)},
				Resolve: r.deleteProject,
			},
			"addProjectMember": &graphql.Field{
				Type:    nn(t.projectMember),
				Args:    graphql.FieldConfigArgument{"projectId": arg(id), "userEmail": arg(str)},
				Resolve: r.addProjectMember,
			},
			"removeProjectMember": &graphql.Field{
				Type:    nn(t.removeProjectMember),
				Args:    graphql.FieldConfigArgument{"projectId": arg(id), "memberId": arg(id)},
				Resolve: r.removeProjectMember,
			},
			"updateProjectMemberRole": &graphql.Field{
				Type:    nn(t.updateProjectMemberRole),
				Args:    graphql.FieldConfigArgument{"projectId": arg(id), "memberId": arg(id), "newRole": arg(nn(t.projectRole))},
				Resolve: r.updateProjectMemberRole,
			},

			"createTask": &graphql.Field{
				Type: nn(t.task),
				Args: graphql.FieldConfigArgument{
					"projectId":   arg(id),
					"title":       arg(str),
					"description": arg(graphql.String),
					"assigneeId":  arg(graphql.ID),
					"dueDate":     arg(graphql.String),
					"status":      arg(t.taskStatus),
				},
				Resolve: r.createTask,
			},
			"updateTask": &graphql.Field{
				Type: nn(t.task),
				Args: graphql.FieldConfigArgument{
					"taskId":      arg(id),
					"title":       arg(graphql.String),
					"description": arg(graphql.String),
					"assigneeId":  arg(graphql.ID),
					"dueDate":     arg(graphql.String),
					"status":      arg(t.taskStatus),
				},
				Resolve: r.updateTask,
			},
			"deleteTask": &graphql.Field{
				Type:    nn(t.deleteTask),
				Args:    graphql.FieldConfigArgument{"taskId": arg(id)},
				Resolve: r.deleteTask,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}
