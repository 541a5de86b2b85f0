package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-platform/internal/rbac"
	"collab-platform/internal/store"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrAlreadyMember      = errors.New("user is already a member")
	ErrNotWorkspaceMember = errors.New("user is not a member of the workspace")
	ErrAssigneeNotMember  = errors.New("assignee is not a member of the project")
)

// Service implements workspace, project and task operations. Every mutation
// goes through the rbac engine; member mutations run check-then-act inside one
// store transaction.
type Service struct {
	store    store.Store
	engine   *rbac.Engine
	validate *validator.Validate
	clock    func() time.Time
}

func NewService(st store.Store, engine *rbac.Engine) *Service {
	return &Service{
		store:    st,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    time.Now,
	}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, strings.ToLower(f.Field()), f.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// notFoundAs turns a store miss into the public not-found denial for what.
func notFoundAs(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return rbac.NotFound(what)
	}
	return err
}

// memberUser resolves an invitee by email.
func memberUser(ctx context.Context, tx store.Store, email string) (store.User, error) {
	u, err := tx.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrUserNotFound
		}
		return store.User{}, err
	}
	return u, nil
}

/* ===================== READ HELPERS ===================== */

// The helpers below do not authorize. They serve nested fields of an entity the
// caller has already been authorized to read.

func (s *Service) User(ctx context.Context, id string) (store.User, error) {
	u, err := s.store.UserByID(ctx, id)
	return u, notFoundAs(err, "user")
}

func (s *Service) WorkspaceMembers(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, error) {
	return s.store.ListWorkspaceMembers(ctx, workspaceID)
}

func (s *Service) ProjectMembers(ctx context.Context, projectID string) ([]store.ProjectMember, error) {
	return s.store.ListProjectMembers(ctx, projectID)
}

func (s *Service) ProjectTasks(ctx context.Context, projectID string) ([]store.Task, error) {
	return s.store.ListTasks(ctx, projectID)
}

func (s *Service) ProjectByID(ctx context.Context, projectID string) (store.Project, error) {
	p, err := s.store.ProjectByID(ctx, projectID)
	return p, notFoundAs(err, "project")
}
