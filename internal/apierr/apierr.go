// Package apierr maps service errors onto what API clients see.
package apierr

import (
	"errors"
	"net/http"

	"collab-platform/internal/account"
	"collab-platform/internal/collab"
	"collab-platform/internal/rbac"
	"collab-platform/internal/session"
)

// Problem is the client-facing shape of an error.
type Problem struct {
	Status  int
	Code    string
	Message string
	// Internal problems carry a generic message; the cause must only be logged.
	Internal bool
}

const internalMessage = "internal error"

var badInput = []error{
	account.ErrInvalidInput,
	account.ErrEmailTaken,
	account.ErrWrongPassword,
	account.ErrResetTokenUsed,
	collab.ErrInvalidInput,
	collab.ErrUserNotFound,
	collab.ErrNotWorkspaceMember,
	collab.ErrAssigneeNotMember,
}

var conflicts = []error{
	account.ErrAlreadyBanned,
	account.ErrAlreadyActive,
	collab.ErrAlreadyMember,
}

var unauthenticated = []error{
	session.ErrInvalidCredentials,
	session.ErrInvalidToken,
	session.ErrTokenRevoked,
	session.ErrTokenExpired,
}

// Describe classifies err. Denials keep their reason; unknown errors become Internal.
func Describe(err error) Problem {
	if d, ok := rbac.AsDenial(err); ok {
		return Problem{Status: rbac.HTTPStatus(err), Code: denialCode(d.Kind), Message: d.Reason}
	}

	switch {
	case errors.Is(err, session.ErrRateLimited):
		return Problem{Status: http.StatusTooManyRequests, Code: "RATE_LIMITED", Message: err.Error()}
	case errors.Is(err, account.ErrUserNotFound):
		return Problem{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case isAny(err, unauthenticated):
		return Problem{Status: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: err.Error()}
	case isAny(err, conflicts):
		return Problem{Status: http.StatusConflict, Code: "CONFLICT", Message: err.Error()}
	case isAny(err, badInput):
		return Problem{Status: http.StatusBadRequest, Code: "BAD_USER_INPUT", Message: err.Error()}
	}
	return Problem{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: internalMessage, Internal: true}
}

func denialCode(k rbac.DenialKind) string {
	switch k {
	case rbac.DenyUnauthenticated:
		return "UNAUTHENTICATED"
	case rbac.DenyBanned:
		return "BANNED"
	case rbac.DenyNotAMember, rbac.DenyNotFound:
		// Indistinguishable on purpose.
		return "NOT_FOUND"
	case rbac.DenyInsufficientRole:
		return "FORBIDDEN"
	case rbac.DenyProtectedEntity:
		return "PROTECTED_ENTITY"
	}
	return "FORBIDDEN"
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
