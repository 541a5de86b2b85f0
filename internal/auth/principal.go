package auth

import "context"

// PrincipalKind tags which identity domain a principal belongs to.
type PrincipalKind int

const (
	KindAnonymous PrincipalKind = iota
	KindUser
	KindAdmin
)

func (k PrincipalKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// Principal is the actor behind a request. Users and admins live in disjoint id spaces,
// so the id is only meaningful together with the kind.
type Principal struct {
	Kind PrincipalKind
	ID   string

	// Banned is only meaningful for users. Banned users still authenticate;
	// the authorization layer rejects them.
	Banned bool
}

// Anonymous is the zero principal.
var Anonymous = Principal{}

func User(id string, banned bool) Principal {
	return Principal{Kind: KindUser, ID: id, Banned: banned}
}

func Admin(id string) Principal {
	return Principal{Kind: KindAdmin, ID: id}
}

func (p Principal) String() string {
	if p.IsAnonymous() {
		return "anonymous"
	}
	return p.Kind.String() + ":" + p.ID
}

func (p Principal) IsAnonymous() bool { return p.Kind == KindAnonymous || p.ID == "" }
func (p Principal) IsUser() bool      { return p.Kind == KindUser && p.ID != "" }
func (p Principal) IsAdmin() bool     { return p.Kind == KindAdmin && p.ID != "" }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the request principal, Anonymous when none was resolved.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
