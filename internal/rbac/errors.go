package rbac

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrBanned           = errors.New("banned")
	ErrNotAMember       = errors.New("not a member")
	ErrInsufficientRole = errors.New("insufficient role")
	ErrProtectedEntity  = errors.New("protected entity")
	ErrNotFound         = errors.New("not found")
)

type DenialKind int

const (
	DenyUnauthenticated DenialKind = iota + 1
	DenyBanned
	DenyNotAMember
	DenyInsufficientRole
	DenyProtectedEntity
	DenyNotFound
)

func (k DenialKind) String() string {
	switch k {
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyBanned:
		return "banned"
	case DenyNotAMember:
		return "not_a_member"
	case DenyInsufficientRole:
		return "insufficient_role"
	case DenyProtectedEntity:
		return "protected_entity"
	case DenyNotFound:
		return "not_found"
	}
	return "unknown"
}

// Denial is the single error type for every authorization outcome other than allow.
// Reason is safe to show to the caller.
type Denial struct {
	Kind   DenialKind
	Reason string
}

func (d *Denial) Error() string { return d.Reason }

// Is lets callers match a Denial against the package sentinels.
// A missing membership is also the degenerate case of an insufficient role.
func (d *Denial) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return d.Kind == DenyUnauthenticated
	case ErrBanned:
		return d.Kind == DenyBanned
	case ErrNotAMember:
		return d.Kind == DenyNotAMember
	case ErrInsufficientRole:
		return d.Kind == DenyInsufficientRole || d.Kind == DenyNotAMember
	case ErrProtectedEntity:
		return d.Kind == DenyProtectedEntity
	case ErrNotFound:
		return d.Kind == DenyNotFound
	}
	return false
}

func Deny(kind DenialKind, reason string) error {
	return &Denial{Kind: kind, Reason: reason}
}

// NotFound builds the denial used for absent entities. Non-members of a scope get
// the same reason so that scope ids cannot be probed.
func NotFound(what string) error {
	return &Denial{Kind: DenyNotFound, Reason: what + " not found"}
}

// AsDenial extracts a Denial from err.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// HTTPStatus maps a denial to a response code; non-denials map to 500.
func HTTPStatus(err error) int {
	d, ok := AsDenial(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch d.Kind {
	case DenyUnauthenticated:
		return http.StatusUnauthorized
	case DenyNotAMember, DenyNotFound:
		return http.StatusNotFound
	case DenyProtectedEntity:
		return http.StatusConflict
	default:
		return http.StatusForbidden
	}
}

// Conceal rewrites a NotAMember denial so it reads like a missing what. Used when
// the target was looked up by its own id rather than by scope id.
func Conceal(err error, what string) error {
	if d, ok := AsDenial(err); ok && d.Kind == DenyNotAMember {
		return &Denial{Kind: DenyNotAMember, Reason: what + " not found"}
	}
	return err
}
