package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-platform/internal/rbac"
	"collab-platform/pkg/utils"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the database/sql Store. Open the *sql.DB with the pgx stdlib driver.
type Postgres struct {
	db   *sql.DB
	q    utils.Querier
	inTx bool
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, q: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return utils.HealthCheck(ctx, s.db, 2*time.Second)
}

func (s *Postgres) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(&Postgres{db: s.db, q: tx, inTx: true})
	})
}

// forUpdate locks rows read inside a transaction so check-then-act sequences
// cannot interleave with concurrent writers.
func (s *Postgres) forUpdate() string {
	if s.inTx {
		return "\nFOR UPDATE"
	}
	return ""
}

type scanner interface {
	Scan(dest ...any) error
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case utils.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

/* ===================== USERS ===================== */

const userColumns = `id, email, password_hash, status, created_at, updated_at`

func scanUser(row scanner) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, mapErr(err)
	}
	return u, nil
}

func (s *Postgres) CreateUser(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (id, email, password_hash, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := s.q.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, string(u.Status), u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1` + s.forUpdate()
	return scanUser(s.q.QueryRowContext(ctx, q, id))
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1` + s.forUpdate()
	return scanUser(s.q.QueryRowContext(ctx, q, email))
}

func (s *Postgres) UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return expectOne(s.q.ExecContext(ctx, q, id, passwordHash, now))
}

func (s *Postgres) SetUserStatus(ctx context.Context, id string, status UserStatus, now time.Time) error {
	const q = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	return expectOne(s.q.ExecContext(ctx, q, id, string(status), now))
}

/* ===================== ADMINS ===================== */

func scanAdmin(row scanner) (Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		return Admin{}, mapErr(err)
	}
	return a, nil
}

func (s *Postgres) CreateAdmin(ctx context.Context, a Admin) error {
	const q = `INSERT INTO admins (id, email, password_hash, created_at) VALUES ($1,$2,$3,$4)`
	_, err := s.q.ExecContext(ctx, q, a.ID, a.Email, a.PasswordHash, a.CreatedAt)
	return mapErr(err)
}

func (s *Postgres) AdminByID(ctx context.Context, id string) (Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admins WHERE id = $1`
	return scanAdmin(s.q.QueryRowContext(ctx, q, id))
}

func (s *Postgres) AdminByEmail(ctx context.Context, email string) (Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`
	return scanAdmin(s.q.QueryRowContext(ctx, q, email))
}

/* ===================== TOKENS ===================== */

func (s *Postgres) CreateRefreshToken(ctx context.Context, t RefreshToken) error {
	const q = `
INSERT INTO refresh_tokens (token_hash, user_id, expires_at, revoked, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.q.ExecContext(ctx, q, t.TokenHash, t.UserID, t.ExpiresAt, t.Revoked, t.CreatedAt)
	return mapErr(err)
}

func (s *Postgres) RefreshTokenByHash(ctx context.Context, hash string) (RefreshToken, error) {
	q := `
SELECT token_hash, user_id, expires_at, revoked, created_at
FROM refresh_tokens
WHERE token_hash = $1` + s.forUpdate()
	var t RefreshToken
	if err := s.q.QueryRowContext(ctx, q, hash).Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		return RefreshToken{}, mapErr(err)
	}
	return t, nil
}

func (s *Postgres) RevokeRefreshToken(ctx context.Context, hash string) error {
	const q = `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`
	return expectOne(s.q.ExecContext(ctx, q, hash))
}

func (s *Postgres) CreatePasswordResetToken(ctx context.Context, t PasswordResetToken) error {
	const q = `
INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, used_at, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.q.ExecContext(ctx, q, t.TokenHash, t.UserID, t.ExpiresAt, nullTime(t.UsedAt), t.CreatedAt)
	return mapErr(err)
}

func (s *Postgres) PasswordResetTokenByHash(ctx context.Context, hash string) (PasswordResetToken, error) {
	q := `
SELECT token_hash, user_id, expires_at, used_at, created_at
FROM password_reset_tokens
WHERE token_hash = $1` + s.forUpdate()
	var (
		t    PasswordResetToken
		used sql.NullTime
	)
	if err := s.q.QueryRowContext(ctx, q, hash).Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &used, &t.CreatedAt); err != nil {
		return PasswordResetToken{}, mapErr(err)
	}
	t.UsedAt = timePtr(used)
	return t, nil
}

func (s *Postgres) MarkPasswordResetTokenUsed(ctx context.Context, hash string, now time.Time) error {
	const q = `UPDATE password_reset_tokens SET used_at = $2 WHERE token_hash = $1`
	return expectOne(s.q.ExecContext(ctx, q, hash, now))
}

/* ===================== WORKSPACES ===================== */

const workspaceColumns = `w.id, w.name, w.description, w.created_at, w.updated_at`

func scanWorkspace(row scanner) (Workspace, error) {
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Workspace{}, mapErr(err)
	}
	return w, nil
}

func (s *Postgres) queryWorkspaces(ctx context.Context, q string, args ...any) ([]Workspace, error) {
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateWorkspace(ctx context.Context, w Workspace) error {
	const q = `
INSERT INTO workspaces (id, name, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.q.ExecContext(ctx, q, w.ID, w.Name, w.Description, w.CreatedAt, w.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) WorkspaceByID(ctx context.Context, id string) (Workspace, error) {
	q := `SELECT ` + workspaceColumns + ` FROM workspaces w WHERE w.id = $1`
	return scanWorkspace(s.q.QueryRowContext(ctx, q, id))
}

func (s *Postgres) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	q := `SELECT ` + workspaceColumns + ` FROM workspaces w ORDER BY w.created_at, w.id`
	return s.queryWorkspaces(ctx, q)
}

func (s *Postgres) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	q := `
SELECT ` + workspaceColumns + `
FROM workspaces w
JOIN workspace_members m ON m.workspace_id = w.id
WHERE m.user_id = $1
ORDER BY w.created_at, w.id
`
	return s.queryWorkspaces(ctx, q, userID)
}

func (s *Postgres) AddWorkspaceMember(ctx context.Context, m WorkspaceMember) error {
	const q = `
INSERT INTO workspace_members (id, workspace_id, user_id, role, joined_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.q.ExecContext(ctx, q, m.ID, m.WorkspaceID, m.UserID, string(m.Role), m.JoinedAt)
	return mapErr(err)
}

func (s *Postgres) WorkspaceMember(ctx context.Context, workspaceID, userID string) (WorkspaceMember, error) {
	q := `
SELECT id, workspace_id, user_id, role, joined_at
FROM workspace_members
WHERE workspace_id = $1 AND user_id = $2` + s.forUpdate()
	var m WorkspaceMember
	if err := s.q.QueryRowContext(ctx, q, workspaceID, userID).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
		return WorkspaceMember{}, mapErr(err)
	}
	return m, nil
}

func (s *Postgres) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	const q = `
SELECT id, workspace_id, user_id, role, joined_at
FROM workspace_members
WHERE workspace_id = $1
ORDER BY joined_at, id
`
	rows, err := s.q.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkspaceMember
	for rows.Next() {
		var m WorkspaceMember
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID string, role rbac.WorkspaceRole) error {
	const q = `UPDATE workspace_members SET role = $3 WHERE workspace_id = $1 AND user_id = $2`
	return expectOne(s.q.ExecContext(ctx, q, workspaceID, userID, string(role)))
}

func (s *Postgres) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	const q = `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`
	return expectOne(s.q.ExecContext(ctx, q, workspaceID, userID))
}

func (s *Postgres) WorkspaceMemberRole(ctx context.Context, workspaceID, userID string) (rbac.WorkspaceRole, bool, error) {
	q := `SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2` + s.forUpdate()
	var role rbac.WorkspaceRole
	if err := s.q.QueryRowContext(ctx, q, workspaceID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return role, true, nil
}

/* ===================== PROJECTS ===================== */

const projectColumns = `p.id, p.workspace_id, p.name, p.description, p.created_at, p.updated_at`

func scanProject(row scanner) (Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, mapErr(err)
	}
	return p, nil
}

func (s *Postgres) queryProjects(ctx context.Context, q string, args ...any) ([]Project, error) {
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateProject(ctx context.Context, p Project) error {
	const q = `
INSERT INTO projects (id, workspace_id, name, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := s.q.ExecContext(ctx, q, p.ID, p.WorkspaceID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) ProjectByID(ctx context.Context, id string) (Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1` + s.forUpdate()
	return scanProject(s.q.QueryRowContext(ctx, q, id))
}

func (s *Postgres) ListProjectsInWorkspace(ctx context.Context, workspaceID string) ([]Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects p WHERE p.workspace_id = $1 ORDER BY p.created_at, p.id`
	return s.queryProjects(ctx, q, workspaceID)
}

func (s *Postgres) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	q := `
SELECT ` + projectColumns + `
FROM projects p
JOIN project_members m ON m.project_id = p.id
WHERE m.user_id = $1
ORDER BY p.created_at, p.id
`
	return s.queryProjects(ctx, q, userID)
}

func (s *Postgres) UpdateProject(ctx context.Context, p Project) error {
	const q = `UPDATE projects SET name = $2, description = $3, updated_at = $4 WHERE id = $1`
	return expectOne(s.q.ExecContext(ctx, q, p.ID, p.Name, p.Description, p.UpdatedAt))
}

// DeleteProject relies on ON DELETE CASCADE for memberships and tasks.
func (s *Postgres) DeleteProject(ctx context.Context, id string) error {
	const q = `DELETE FROM projects WHERE id = $1`
	return expectOne(s.q.ExecContext(ctx, q, id))
}

func (s *Postgres) AddProjectMember(ctx context.Context, m ProjectMember) error {
	const q = `
INSERT INTO project_members (id, project_id, user_id, role, joined_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := s.q.ExecContext(ctx, q, m.ID, m.ProjectID, m.UserID, string(m.Role), m.JoinedAt)
	return mapErr(err)
}

func (s *Postgres) ProjectMember(ctx context.Context, projectID, userID string) (ProjectMember, error) {
	q := `
SELECT id, project_id, user_id, role, joined_at
FROM project_members
WHERE project_id = $1 AND user_id = $2` + s.forUpdate()
	var m ProjectMember
	if err := s.q.QueryRowContext(ctx, q, projectID, userID).Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
		return ProjectMember{}, mapErr(err)
	}
	return m, nil
}

func (s *Postgres) ListProjectMembers(ctx context.Context, projectID string) ([]ProjectMember, error) {
	const q = `
SELECT id, project_id, user_id, role, joined_at
FROM project_members
WHERE project_id = $1
ORDER BY joined_at, id
`
	rows, err := s.q.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectMember
	for rows.Next() {
		var m ProjectMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateProjectMemberRole(ctx context.Context, projectID, userID string, role rbac.ProjectRole) error {
	const q = `UPDATE project_members SET role = $3 WHERE project_id = $1 AND user_id = $2`
	return expectOne(s.q.ExecContext(ctx, q, projectID, userID, string(role)))
}

func (s *Postgres) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	const q = `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	return expectOne(s.q.ExecContext(ctx, q, projectID, userID))
}

func (s *Postgres) ProjectMemberRole(ctx context.Context, projectID, userID string) (rbac.ProjectRole, bool, error) {
	q := `SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2` + s.forUpdate()
	var role rbac.ProjectRole
	if err := s.q.QueryRowContext(ctx, q, projectID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return role, true, nil
}

/* ===================== TASKS ===================== */

const taskColumns = `id, project_id, title, description, status, assignee_id, due_date, created_at, updated_at`

func scanTask(row scanner) (Task, error) {
	var (
		t        Task
		assignee sql.NullString
		due      sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &assignee, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, mapErr(err)
	}
	t.AssigneeID = assignee.String
	t.DueDate = timePtr(due)
	return t, nil
}

func (s *Postgres) CreateTask(ctx context.Context, t Task) error {
	const q = `
INSERT INTO tasks (id, project_id, title, description, status, assignee_id, due_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := s.q.ExecContext(ctx, q,
		t.ID,
		t.ProjectID,
		t.Title,
		t.Description,
		string(t.Status),
		nullString(t.AssigneeID),
		nullTime(t.DueDate),
		t.CreatedAt,
		t.UpdatedAt,
	)
	return mapErr(err)
}

func (s *Postgres) TaskByID(ctx context.Context, id string) (Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1` + s.forUpdate()
	return scanTask(s.q.QueryRowContext(ctx, q, id))
}

func (s *Postgres) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY created_at, id`
	rows, err := s.q.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateTask(ctx context.Context, t Task) error {
	const q = `
UPDATE tasks
SET title = $2, description = $3, status = $4, assignee_id = $5, due_date = $6, updated_at = $7
WHERE id = $1
`
	return expectOne(s.q.ExecContext(ctx, q,
		t.ID,
		t.Title,
		t.Description,
		string(t.Status),
		nullString(t.AssigneeID),
		nullTime(t.DueDate),
		t.UpdatedAt,
	))
}

func (s *Postgres) DeleteTask(ctx context.Context, id string) error {
	const q = `DELETE FROM tasks WHERE id = $1`
	return expectOne(s.q.ExecContext(ctx, q, id))
}

var _ Store = (*Postgres)(nil)
var _ Store = (*Memory)(nil)
