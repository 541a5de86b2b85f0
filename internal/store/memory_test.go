package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab-platform/internal/rbac"
)

func seedUser(t *testing.T, s Store, id, email string) User {
	t.Helper()
	now := time.Now().UTC()
	u := User{ID: id, Email: email, PasswordHash: "x", Status: UserActive, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestMemory_UserEmailUnique(t *testing.T) {
	s := NewMemory()
	seedUser(t, s, "u1", "a@example.com")
	err := s.CreateUser(context.Background(), User{ID: "u2", Email: "a@example.com"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemory_MembershipUniquePerScope(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	if err := s.CreateWorkspace(ctx, Workspace{ID: "w1", Name: "W"}); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	m := WorkspaceMember{ID: "m1", WorkspaceID: "w1", UserID: "u1", Role: rbac.WorkspaceMember}
	if err := s.AddWorkspaceMember(ctx, m); err != nil {
		t.Fatalf("add member: %v", err)
	}
	m.ID = "m2"
	if err := s.AddWorkspaceMember(ctx, m); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	role, ok, err := s.WorkspaceMemberRole(ctx, "w1", "u1")
	if err != nil || !ok || role != rbac.WorkspaceMember {
		t.Fatalf("unexpected lookup: %v %v %v", role, ok, err)
	}
	if _, ok, _ := s.WorkspaceMemberRole(ctx, "missing", "u1"); ok {
		t.Fatalf("missing workspace must report no membership")
	}
}

func TestMemory_WithinTxRollsBack(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx Store) error {
		if err := tx.CreateWorkspace(ctx, Workspace{ID: "w1", Name: "W"}); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return tx.WithinTx(ctx, func(inner Store) error {
			if err := inner.AddWorkspaceMember(ctx, WorkspaceMember{ID: "m1", WorkspaceID: "w1", UserID: "u1", Role: rbac.WorkspaceOwner}); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.WorkspaceByID(ctx, "w1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected workspace rolled back, got %v", err)
	}
	if _, ok, _ := s.WorkspaceMemberRole(ctx, "w1", "u1"); ok {
		t.Fatalf("expected membership rolled back")
	}
}

func TestMemory_RollbackKeepsWritesMadeOutsideTx(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	done := make(chan error, 1)
	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx Store) error {
		if err := tx.CreateWorkspace(ctx, Workspace{ID: "w1", Name: "W"}); err != nil {
			return err
		}
		go func() {
			done <- s.CreateRefreshToken(ctx, RefreshToken{TokenHash: "h1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
		}()
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("concurrent write: %v", err)
	}
	if _, err := s.RefreshTokenByHash(ctx, "h1"); err != nil {
		t.Fatalf("write made outside the tx was lost: %v", err)
	}
	if _, err := s.WorkspaceByID(ctx, "w1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected workspace rolled back, got %v", err)
	}
}

func TestMemory_WithinTxCommits(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	err := s.WithinTx(ctx, func(tx Store) error {
		return tx.CreateWorkspace(ctx, Workspace{ID: "w1", Name: "W"})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, err := s.WorkspaceByID(ctx, "w1"); err != nil {
		t.Fatalf("expected committed workspace, got %v", err)
	}
}

func TestMemory_DeleteProjectCascades(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	_ = s.CreateWorkspace(ctx, Workspace{ID: "w1"})
	if err := s.CreateProject(ctx, Project{ID: "p1", WorkspaceID: "w1", Name: "P"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := s.AddProjectMember(ctx, ProjectMember{ID: "pm1", ProjectID: "p1", UserID: "u1", Role: rbac.ProjectLead}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := s.CreateTask(ctx, Task{ID: "t1", ProjectID: "p1", Title: "x", Status: TaskTodo}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.TaskByID(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected task removed, got %v", err)
	}
	if _, ok, _ := s.ProjectMemberRole(ctx, "p1", "u1"); ok {
		t.Fatalf("expected membership removed")
	}
	if err := s.DeleteProject(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMemory_RefreshTokenRevocation(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	rt := RefreshToken{TokenHash: "h", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.CreateRefreshToken(ctx, rt); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.RevokeRefreshToken(ctx, "h"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, err := s.RefreshTokenByHash(ctx, "h")
	if err != nil || !got.Revoked {
		t.Fatalf("expected revoked record, got %+v %v", got, err)
	}
	if err := s.RevokeRefreshToken(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemory_ListsAreOrdered(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	base := time.Unix(1700000000, 0).UTC()
	for i, id := range []string{"w3", "w1", "w2"} {
		_ = s.CreateWorkspace(ctx, Workspace{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		_ = s.AddWorkspaceMember(ctx, WorkspaceMember{ID: "m" + id, WorkspaceID: id, UserID: "u1", Role: rbac.WorkspaceMember})
	}
	got, err := s.ListWorkspacesForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "w3" || got[2].ID != "w2" {
		t.Fatalf("unexpected order %+v", got)
	}
}
