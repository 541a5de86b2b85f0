package graph

import (
	"time"

	"collab-platform/internal/store"
)

// Objects are handed to graphql-go as maps keyed by schema field name so the
// default resolver serves scalar fields.

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func userView(u store.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"status":    string(u.Status),
		"createdAt": stamp(u.CreatedAt),
		"updatedAt": stamp(u.UpdatedAt),
	}
}

func workspaceView(w store.Workspace) map[string]any {
	return map[string]any{
		"id":          w.ID,
		"name":        w.Name,
		"description": w.Description,
		"createdAt":   stamp(w.CreatedAt),
		"updatedAt":   stamp(w.UpdatedAt),
	}
}

func workspaceMemberView(m store.WorkspaceMember) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"workspaceId": m.WorkspaceID,
		"userId":      m.UserID,
		"role":        string(m.Role),
		"joinedAt":    stamp(m.JoinedAt),
	}
}

func projectView(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"workspaceId": p.WorkspaceID,
		"name":        p.Name,
		"description": p.Description,
		"createdAt":   stamp(p.CreatedAt),
		"updatedAt":   stamp(p.UpdatedAt),
	}
}

func projectMemberView(m store.ProjectMember) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"projectId": m.ProjectID,
		"userId":    m.UserID,
		"role":      string(m.Role),
		"joinedAt":  stamp(m.JoinedAt),
	}
}

func taskView(t store.Task) map[string]any {
	v := map[string]any{
		"id":          t.ID,
		"projectId":   t.ProjectID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"assigneeId":  t.AssigneeID,
		"createdAt":   stamp(t.CreatedAt),
		"updatedAt":   stamp(t.UpdatedAt),
	}
	if t.DueDate != nil {
		v["dueDate"] = stamp(*t.DueDate)
	}
	return v
}

func outcome(message string) map[string]any {
	return map[string]any{"success": true, "message": message}
}

func listOf[T any](items []T, view func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, view(it))
	}
	return out
}

// sourceString reads a key from the parent object of a field resolver.
func sourceString(src any, key string) string {
	m, ok := src.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
