package session

import (
	"context"

	"collab-platform/internal/auth"
)

// Resolver plugs both identity domains into auth.ResolvePrincipal.
type Resolver struct {
	Users  *UserManager
	Admins *AdminManager
}

func (r Resolver) ResolveUser(ctx context.Context, accessToken string) (auth.Principal, error) {
	return r.Users.Authenticate(ctx, accessToken)
}

func (r Resolver) ResolveAdmin(ctx context.Context, sessionToken string) (auth.Principal, error) {
	return r.Admins.Authenticate(ctx, sessionToken)
}

var _ auth.PrincipalResolver = Resolver{}
