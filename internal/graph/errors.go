package graph

import (
	"context"

	"collab-platform/internal/apierr"
	"collab-platform/pkg/logger"
)

// Error is what a resolver failure looks like on the wire. graphql-go copies
// Extensions into the "extensions" member of the error.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Extensions() map[string]any {
	return map[string]any{"code": e.Code}
}

func present(ctx context.Context, op string, err error) error {
	pr := apierr.Describe(err)
	if pr.Internal {
		logger.From(ctx).Error("graphql resolver failed", "op", op, "err", err)
	}
	return &Error{Message: pr.Message, Code: pr.Code}
}
