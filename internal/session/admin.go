package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collab-platform/internal/auth"
	"collab-platform/internal/store"
	"collab-platform/pkg/logger"
)

type AdminConfig struct {
	SessionTTL time.Duration
}

// AdminSession is the single admin-class token handed out at login. There is no refresh.
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminManager runs the admin session lifecycle. Admin tokens are signed with a
// secret of their own and are revoked through the denylist.
type AdminManager struct {
	admins   store.Admins
	codec    *auth.Codec
	hasher   auth.Hasher
	denylist Denylist
	limiter  Limiter
	cfg      AdminConfig
	clock    func() time.Time
}

func NewAdminManager(admins store.Admins, codec *auth.Codec, hasher auth.Hasher, denylist Denylist, limiter Limiter, cfg AdminConfig) *AdminManager {
	if limiter == nil {
		limiter = NoLimit{}
	}
	return &AdminManager{
		admins:   admins,
		codec:    codec,
		hasher:   hasher,
		denylist: denylist,
		limiter:  limiter,
		cfg:      cfg,
		clock:    time.Now,
	}
}

func (m *AdminManager) Login(ctx context.Context, req LoginRequest) (store.Admin, AdminSession, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return store.Admin{}, AdminSession{}, ErrInvalidCredentials
	}

	key := "admin:" + email + "|" + req.Device.IP
	ok, _, err := m.limiter.Allow(ctx, key)
	if err != nil {
		return store.Admin{}, AdminSession{}, fmt.Errorf("login throttle: %w", err)
	}
	if !ok {
		return store.Admin{}, AdminSession{}, ErrRateLimited
	}

	a, err := m.admins.AdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Admin{}, AdminSession{}, ErrInvalidCredentials
		}
		return store.Admin{}, AdminSession{}, err
	}
	if !m.hasher.Verify(req.Password, a.PasswordHash) {
		return store.Admin{}, AdminSession{}, ErrInvalidCredentials
	}
	if err := m.limiter.Reset(ctx, key); err != nil {
		logger.From(ctx).Warn("login throttle reset failed", "err", err)
	}

	tok, claims, err := m.codec.Sign(m.clock().UTC(), a.ID, auth.TokenClassAdmin, m.cfg.SessionTTL)
	if err != nil {
		return store.Admin{}, AdminSession{}, err
	}
	logger.From(ctx).Info("admin logged in", "admin_id", a.ID)
	return a, AdminSession{Token: tok, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout denylists the session until it expires. Logging out twice fails with ErrTokenRevoked.
func (m *AdminManager) Logout(ctx context.Context, token string) error {
	claims, err := m.codec.Verify(token, auth.TokenClassAdmin, m.clock().UTC())
	if err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	denied, err := m.denylist.Denied(ctx, claims.ID)
	if err != nil {
		return err
	}
	if denied {
		return ErrTokenRevoked
	}
	if err := m.denylist.Deny(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	logger.From(ctx).Info("admin logged out", "admin_id", claims.SubjectID())
	return nil
}

func (m *AdminManager) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	claims, err := m.codec.Verify(token, auth.TokenClassAdmin, m.clock().UTC())
	if err != nil {
		return auth.Anonymous, err
	}
	denied, err := m.denylist.Denied(ctx, claims.ID)
	if err != nil {
		return auth.Anonymous, err
	}
	if denied {
		return auth.Anonymous, fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	if _, err := m.admins.AdminByID(ctx, claims.SubjectID()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Anonymous, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return auth.Anonymous, err
	}
	return auth.Admin(claims.SubjectID()), nil
}
