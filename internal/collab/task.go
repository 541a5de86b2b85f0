package collab

import (
	"context"
	"fmt"

	"collab-platform/internal/auth"
	"collab-platform/internal/rbac"
	"collab-platform/internal/store"
	"collab-platform/pkg/logger"

	"github.com/google/uuid"
)

// CreateTaskInput creates a task. Status defaults to TODO.
type CreateTaskInput struct {
	ProjectID   string `validate:"required"`
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=5000"`
	Status      store.TaskStatus
	AssigneeID  string
	DueDate     string
}

// UpdateTaskInput is a patch; nil fields are left unchanged. An empty AssigneeID unassigns.
type UpdateTaskInput struct {
	Title       *string `validate:"omitnil,min=1,max=200"`
	Description *string `validate:"omitnil,max=5000"`
	Status      *store.TaskStatus
	AssigneeID  *string
	DueDate     *string
}

func (s *Service) CreateTask(ctx context.Context, p auth.Principal, in CreateTaskInput) (store.Task, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return store.Task{}, err
	}

	var t store.Task
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionCreateTask, in.ProjectID); err != nil {
			return err
		}
		if err := s.check(in); err != nil {
			return err
		}
		status := in.Status
		if status == "" {
			status = store.TaskTodo
		}
		if !status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		due, err := parseDueDate(in.DueDate)
		if err != nil {
			return err
		}
		if err := checkAssignee(ctx, tx, in.ProjectID, in.AssigneeID); err != nil {
			return err
		}

		now := s.now()
		t = store.Task{
			ID:          uuid.NewString(),
			ProjectID:   in.ProjectID,
			Title:       in.Title,
			Description: in.Description,
			Status:      status,
			AssigneeID:  in.AssigneeID,
			DueDate:     due,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.CreateTask(ctx, t)
	})
	if err != nil {
		return store.Task{}, err
	}
	logger.From(ctx).Info("task created", "task_id", t.ID, "project_id", t.ProjectID)
	return t, nil
}

// GetTask returns a task to any member of its project. Non-members and missing
// tasks get the same "task not found" denial.
func (s *Service) GetTask(ctx context.Context, p auth.Principal, id string) (store.Task, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return store.Task{}, err
	}
	t, err := s.store.TaskByID(ctx, id)
	if err != nil {
		return store.Task{}, notFoundAs(err, "task")
	}
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionViewTask, t.ProjectID); err != nil {
		return store.Task{}, rbac.Conceal(err, "task")
	}
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, p auth.Principal, projectID string) ([]store.Task, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionViewTask, projectID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, projectID)
}

func (s *Service) UpdateTask(ctx context.Context, p auth.Principal, id string, in UpdateTaskInput) (store.Task, error) {
	if err := s.engine.RequireUser(p); err != nil {
		return store.Task{}, err
	}

	var out store.Task
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		t, err := tx.TaskByID(ctx, id)
		if err != nil {
			return notFoundAs(err, "task")
		}
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionUpdateTask, t.ProjectID); err != nil {
			return rbac.Conceal(err, "task")
		}
		if err := s.check(in); err != nil {
			return err
		}
		if in.Status != nil && !in.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
		}

		if in.Title != nil {
			t.Title = *in.Title
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Status != nil {
			t.Status = *in.Status
		}
		if in.AssigneeID != nil {
			if err := checkAssignee(ctx, tx, t.ProjectID, *in.AssigneeID); err != nil {
				return err
			}
			t.AssigneeID = *in.AssigneeID
		}
		if in.DueDate != nil {
			due, err := parseDueDate(*in.DueDate)
			if err != nil {
				return err
			}
			t.DueDate = due
		}
		t.UpdatedAt = s.now()

		if err := tx.UpdateTask(ctx, t); err != nil {
			return notFoundAs(err, "task")
		}
		out = t
		return nil
	})
	return out, err
}

func (s *Service) DeleteTask(ctx context.Context, p auth.Principal, id string) error {
	if err := s.engine.RequireUser(p); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		t, err := tx.TaskByID(ctx, id)
		if err != nil {
			return notFoundAs(err, "task")
		}
		if _, err := s.engine.Using(tx).Authorize(ctx, p, rbac.ActionDeleteTask, t.ProjectID); err != nil {
			return rbac.Conceal(err, "task")
		}
		return notFoundAs(tx.DeleteTask(ctx, id), "task")
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("task deleted", "task_id", id, "by", p.ID)
	return nil
}

func checkAssignee(ctx context.Context, tx store.Store, projectID, assigneeID string) error {
	if assigneeID == "" {
		return nil
	}
	_, ok, err := tx.ProjectMemberRole(ctx, projectID, assigneeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssigneeNotMember
	}
	return nil
}
