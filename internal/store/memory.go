package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"collab-platform/internal/rbac"
)

// Memory is an in-memory Store for tests and local runs.
// Transactions are serialized and roll back by restoring a snapshot. Writes
// outside a transaction wait for the open one, so a rollback only ever undoes
// the transaction's own writes.
type Memory struct {
	*memState
	// inTx marks the handle passed to WithinTx callbacks.
	inTx bool
}

type memState struct {
	txMu sync.Mutex

	mu sync.RWMutex
	d  *memData
}

type memberKey struct {
	scopeID string
	userID  string
}

type memData struct {
	users      map[string]User
	admins     map[string]Admin
	refresh    map[string]RefreshToken
	resets     map[string]PasswordResetToken
	workspaces map[string]Workspace
	wsMembers  map[memberKey]WorkspaceMember
	projects   map[string]Project
	prMembers  map[memberKey]ProjectMember
	tasks      map[string]Task
}

func newMemData() *memData {
	return &memData{
		users:      map[string]User{},
		admins:     map[string]Admin{},
		refresh:    map[string]RefreshToken{},
		resets:     map[string]PasswordResetToken{},
		workspaces: map[string]Workspace{},
		wsMembers:  map[memberKey]WorkspaceMember{},
		projects:   map[string]Project{},
		prMembers:  map[memberKey]ProjectMember{},
		tasks:      map[string]Task{},
	}
}

func (d *memData) clone() *memData {
	out := newMemData()
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.admins {
		out.admins[k] = v
	}
	for k, v := range d.refresh {
		out.refresh[k] = v
	}
	for k, v := range d.resets {
		out.resets[k] = v
	}
	for k, v := range d.workspaces {
		out.workspaces[k] = v
	}
	for k, v := range d.wsMembers {
		out.wsMembers[k] = v
	}
	for k, v := range d.projects {
		out.projects[k] = v
	}
	for k, v := range d.prMembers {
		out.prMembers[k] = v
	}
	for k, v := range d.tasks {
		out.tasks[k] = v
	}
	return out
}

func NewMemory() *Memory {
	return &Memory{memState: &memState{d: newMemData()}}
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) WithinTx(ctx context.Context, fn func(tx Store) error) (err error) {
	// Nested calls join the outer transaction.
	if m.inTx {
		return fn(m)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snap := m.d.clone()
	m.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			m.restore(snap)
			panic(p)
		}
		if err != nil {
			m.restore(snap)
		}
	}()

	return fn(&Memory{memState: m.memState, inTx: true})
}

func (m *Memory) restore(snap *memData) {
	m.mu.Lock()
	m.d = snap
	m.mu.Unlock()
}

// lockWrite takes the locks a write needs and returns their release.
func (m *Memory) lockWrite() func() {
	if !m.inTx {
		m.txMu.Lock()
	}
	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		if !m.inTx {
			m.txMu.Unlock()
		}
	}
}

/* ===================== USERS ===================== */

func (m *Memory) CreateUser(ctx context.Context, u User) error {
	defer m.lockWrite()()
	if _, ok := m.d.users[u.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.d.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	m.d.users[u.ID] = u
	return nil
}

func (m *Memory) UserByID(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	defer m.lockWrite()()
	u, ok := m.d.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = now
	m.d.users[id] = u
	return nil
}

func (m *Memory) SetUserStatus(ctx context.Context, id string, status UserStatus, now time.Time) error {
	defer m.lockWrite()()
	u, ok := m.d.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = now
	m.d.users[id] = u
	return nil
}

/* ===================== ADMINS ===================== */

func (m *Memory) CreateAdmin(ctx context.Context, a Admin) error {
	defer m.lockWrite()()
	if _, ok := m.d.admins[a.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.d.admins {
		if existing.Email == a.Email {
			return ErrConflict
		}
	}
	m.d.admins[a.ID] = a
	return nil
}

func (m *Memory) AdminByID(ctx context.Context, id string) (Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.d.admins[id]
	if !ok {
		return Admin{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) AdminByEmail(ctx context.Context, email string) (Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.d.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return Admin{}, ErrNotFound
}

/* ===================== TOKENS ===================== */

func (m *Memory) CreateRefreshToken(ctx context.Context, t RefreshToken) error {
	defer m.lockWrite()()
	if _, ok := m.d.refresh[t.TokenHash]; ok {
		return ErrConflict
	}
	m.d.refresh[t.TokenHash] = t
	return nil
}

func (m *Memory) RefreshTokenByHash(ctx context.Context, hash string) (RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.d.refresh[hash]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) RevokeRefreshToken(ctx context.Context, hash string) error {
	defer m.lockWrite()()
	t, ok := m.d.refresh[hash]
	if !ok {
		return ErrNotFound
	}
	t.Revoked = true
	m.d.refresh[hash] = t
	return nil
}

func (m *Memory) CreatePasswordResetToken(ctx context.Context, t PasswordResetToken) error {
	defer m.lockWrite()()
	if _, ok := m.d.resets[t.TokenHash]; ok {
		return ErrConflict
	}
	m.d.resets[t.TokenHash] = t
	return nil
}

func (m *Memory) PasswordResetTokenByHash(ctx context.Context, hash string) (PasswordResetToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.d.resets[hash]
	if !ok {
		return PasswordResetToken{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) MarkPasswordResetTokenUsed(ctx context.Context, hash string, now time.Time) error {
	defer m.lockWrite()()
	t, ok := m.d.resets[hash]
	if !ok {
		return ErrNotFound
	}
	used := now
	t.UsedAt = &used
	m.d.resets[hash] = t
	return nil
}

/* ===================== WORKSPACES ===================== */

func (m *Memory) CreateWorkspace(ctx context.Context, w Workspace) error {
	defer m.lockWrite()()
	if _, ok := m.d.workspaces[w.ID]; ok {
		return ErrConflict
	}
	m.d.workspaces[w.ID] = w
	return nil
}

func (m *Memory) WorkspaceByID(ctx context.Context, id string) (Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.d.workspaces[id]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Workspace, 0, len(m.d.workspaces))
	for _, w := range m.d.workspaces {
		out = append(out, w)
	}
	sortByCreated(out, func(w Workspace) (time.Time, string) { return w.CreatedAt, w.ID })
	return out, nil
}

func (m *Memory) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Workspace
	for k := range m.d.wsMembers {
		if k.userID != userID {
			continue
		}
		if w, ok := m.d.workspaces[k.scopeID]; ok {
			out = append(out, w)
		}
	}
	sortByCreated(out, func(w Workspace) (time.Time, string) { return w.CreatedAt, w.ID })
	return out, nil
}

func (m *Memory) AddWorkspaceMember(ctx context.Context, wm WorkspaceMember) error {
	defer m.lockWrite()()
	if _, ok := m.d.workspaces[wm.WorkspaceID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.d.users[wm.UserID]; !ok {
		return ErrNotFound
	}
	k := memberKey{wm.WorkspaceID, wm.UserID}
	if _, ok := m.d.wsMembers[k]; ok {
		return ErrConflict
	}
	m.d.wsMembers[k] = wm
	return nil
}

func (m *Memory) WorkspaceMember(ctx context.Context, workspaceID, userID string) (WorkspaceMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wm, ok := m.d.wsMembers[memberKey{workspaceID, userID}]
	if !ok {
		return WorkspaceMember{}, ErrNotFound
	}
	return wm, nil
}

func (m *Memory) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []WorkspaceMember
	for k, wm := range m.d.wsMembers {
		if k.scopeID == workspaceID {
			out = append(out, wm)
		}
	}
	sortByCreated(out, func(wm WorkspaceMember) (time.Time, string) { return wm.JoinedAt, wm.ID })
	return out, nil
}

func (m *Memory) UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID string, role rbac.WorkspaceRole) error {
	defer m.lockWrite()()
	k := memberKey{workspaceID, userID}
	wm, ok := m.d.wsMembers[k]
	if !ok {
		return ErrNotFound
	}
	wm.Role = role
	m.d.wsMembers[k] = wm
	return nil
}

func (m *Memory) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	defer m.lockWrite()()
	k := memberKey{workspaceID, userID}
	if _, ok := m.d.wsMembers[k]; !ok {
		return ErrNotFound
	}
	delete(m.d.wsMembers, k)
	return nil
}

func (m *Memory) WorkspaceMemberRole(ctx context.Context, workspaceID, userID string) (rbac.WorkspaceRole, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wm, ok := m.d.wsMembers[memberKey{workspaceID, userID}]
	if !ok {
		return "", false, nil
	}
	return wm.Role, true, nil
}

/* ===================== PROJECTS ===================== */

func (m *Memory) CreateProject(ctx context.Context, p Project) error {
	defer m.lockWrite()()
	if _, ok := m.d.workspaces[p.WorkspaceID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.d.projects[p.ID]; ok {
		return ErrConflict
	}
	m.d.projects[p.ID] = p
	return nil
}

func (m *Memory) ProjectByID(ctx context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.d.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListProjectsInWorkspace(ctx context.Context, workspaceID string) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Project
	for _, p := range m.d.projects {
		if p.WorkspaceID == workspaceID {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p Project) (time.Time, string) { return p.CreatedAt, p.ID })
	return out, nil
}

func (m *Memory) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Project
	for k := range m.d.prMembers {
		if k.userID != userID {
			continue
		}
		if p, ok := m.d.projects[k.scopeID]; ok {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p Project) (time.Time, string) { return p.CreatedAt, p.ID })
	return out, nil
}

func (m *Memory) UpdateProject(ctx context.Context, p Project) error {
	defer m.lockWrite()()
	existing, ok := m.d.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	existing.UpdatedAt = p.UpdatedAt
	m.d.projects[p.ID] = existing
	return nil
}

func (m *Memory) DeleteProject(ctx context.Context, id string) error {
	defer m.lockWrite()()
	if _, ok := m.d.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.d.projects, id)
	for k := range m.d.prMembers {
		if k.scopeID == id {
			delete(m.d.prMembers, k)
		}
	}
	for tid, t := range m.d.tasks {
		if t.ProjectID == id {
			delete(m.d.tasks, tid)
		}
	}
	return nil
}

func (m *Memory) AddProjectMember(ctx context.Context, pm ProjectMember) error {
	defer m.lockWrite()()
	if _, ok := m.d.projects[pm.ProjectID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.d.users[pm.UserID]; !ok {
		return ErrNotFound
	}
	k := memberKey{pm.ProjectID, pm.UserID}
	if _, ok := m.d.prMembers[k]; ok {
		return ErrConflict
	}
	m.d.prMembers[k] = pm
	return nil
}

func (m *Memory) ProjectMember(ctx context.Context, projectID, userID string) (ProjectMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.d.prMembers[memberKey{projectID, userID}]
	if !ok {
		return ProjectMember{}, ErrNotFound
	}
	return pm, nil
}

func (m *Memory) ListProjectMembers(ctx context.Context, projectID string) ([]ProjectMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ProjectMember
	for k, pm := range m.d.prMembers {
		if k.scopeID == projectID {
			out = append(out, pm)
		}
	}
	sortByCreated(out, func(pm ProjectMember) (time.Time, string) { return pm.JoinedAt, pm.ID })
	return out, nil
}

func (m *Memory) UpdateProjectMemberRole(ctx context.Context, projectID, userID string, role rbac.ProjectRole) error {
	defer m.lockWrite()()
	k := memberKey{projectID, userID}
	pm, ok := m.d.prMembers[k]
	if !ok {
		return ErrNotFound
	}
	pm.Role = role
	m.d.prMembers[k] = pm
	return nil
}

func (m *Memory) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	defer m.lockWrite()()
	k := memberKey{projectID, userID}
	if _, ok := m.d.prMembers[k]; !ok {
		return ErrNotFound
	}
	delete(m.d.prMembers, k)
	return nil
}

func (m *Memory) ProjectMemberRole(ctx context.Context, projectID, userID string) (rbac.ProjectRole, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.d.prMembers[memberKey{projectID, userID}]
	if !ok {
		return "", false, nil
	}
	return pm.Role, true, nil
}

/* ===================== TASKS ===================== */

func (m *Memory) CreateTask(ctx context.Context, t Task) error {
	defer m.lockWrite()()
	if _, ok := m.d.projects[t.ProjectID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.d.tasks[t.ID]; ok {
		return ErrConflict
	}
	m.d.tasks[t.ID] = t
	return nil
}

func (m *Memory) TaskByID(ctx context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.d.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Task
	for _, t := range m.d.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sortByCreated(out, func(t Task) (time.Time, string) { return t.CreatedAt, t.ID })
	return out, nil
}

func (m *Memory) UpdateTask(ctx context.Context, t Task) error {
	defer m.lockWrite()()
	existing, ok := m.d.tasks[t.ID]
	if !ok {
		return ErrNotFound
	}
	t.ProjectID = existing.ProjectID
	t.CreatedAt = existing.CreatedAt
	m.d.tasks[t.ID] = t
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	defer m.lockWrite()()
	if _, ok := m.d.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.d.tasks, id)
	return nil
}

func sortByCreated[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
}
