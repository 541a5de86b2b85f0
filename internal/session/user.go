package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"collab-platform/internal/audit"
	"collab-platform/internal/auth"
	"collab-platform/internal/rbac"
	"collab-platform/internal/store"
	"collab-platform/pkg/logger"
)

// Device is the client metadata recorded for every issued session.
type Device = audit.Device

type LoginRequest struct {
	Email    string
	Password string
	Device   Device
}

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type UserConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// UserManager runs the user session lifecycle:
// Anonymous -> Authenticated(access) -> {Refreshing, LoggedOut}.
//
// Invariants:
// - Refresh records are keyed by token hash and never deleted; logout flips Revoked.
// - Once revoked, every refresh or logout with that token fails with ErrTokenRevoked.
// - Refresh mints a new access token only; the refresh token is not rotated.
type UserManager struct {
	store   store.Store
	codec   *auth.Codec
	hasher  auth.Hasher
	audit   *audit.Service
	limiter Limiter
	cfg     UserConfig
	clock   func() time.Time
}

func NewUserManager(st store.Store, codec *auth.Codec, hasher auth.Hasher, au *audit.Service, limiter Limiter, cfg UserConfig) *UserManager {
	if limiter == nil {
		limiter = NoLimit{}
	}
	return &UserManager{
		store:   st,
		codec:   codec,
		hasher:  hasher,
		audit:   au,
		limiter: limiter,
		cfg:     cfg,
		clock:   time.Now,
	}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func throttleKey(email, ip string) string {
	return "user:" + email + "|" + ip
}

func (m *UserManager) Login(ctx context.Context, req LoginRequest) (store.User, Pair, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return store.User{}, Pair{}, ErrInvalidCredentials
	}

	key := throttleKey(email, req.Device.IP)
	ok, retryIn, err := m.limiter.Allow(ctx, key)
	if err != nil {
		return store.User{}, Pair{}, fmt.Errorf("login throttle: %w", err)
	}
	if !ok {
		logger.From(ctx).Info("login throttled", "retry_in", retryIn.String())
		return store.User{}, Pair{}, ErrRateLimited
	}

	u, err := m.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, Pair{}, ErrInvalidCredentials
		}
		return store.User{}, Pair{}, err
	}
	if !m.hasher.Verify(req.Password, u.PasswordHash) {
		return store.User{}, Pair{}, ErrInvalidCredentials
	}

	if err := m.limiter.Reset(ctx, key); err != nil {
		logger.From(ctx).Warn("login throttle reset failed", "err", err)
	}
	// Checked after the password so the ban does not reveal the account.
	if u.Banned() {
		logger.From(ctx).Info("banned user login refused", "user_id", u.ID)
		return store.User{}, Pair{}, rbac.Deny(rbac.DenyBanned, "Your account has been banned")
	}

	pair, err := m.Issue(ctx, u, req.Device)
	if err != nil {
		return store.User{}, Pair{}, err
	}
	logger.From(ctx).Info("user logged in", "user_id", u.ID)
	return u, pair, nil
}

// Issue mints a new session for u, persists its refresh record and appends the
// device record. Used by login and registration.
func (m *UserManager) Issue(ctx context.Context, u store.User, d Device) (Pair, error) {
	now := m.clock().UTC()

	access, accessClaims, err := m.codec.Sign(now, u.ID, auth.TokenClassAccess, m.cfg.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshClaims, err := m.codec.Sign(now, u.ID, auth.TokenClassRefresh, m.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}

	hash := auth.HashToken(refresh)
	rec := store.RefreshToken{
		TokenHash: hash,
		UserID:    u.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		CreatedAt: now,
	}
	if err := m.store.CreateRefreshToken(ctx, rec); err != nil {
		return Pair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	if m.audit != nil {
		if err := m.audit.LogSession(ctx, u.ID, hash, d); err != nil {
			logger.From(ctx).Error("device record failed", "user_id", u.ID, "err", err)
		}
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// checkRefresh runs the shared refresh/logout validation chain against st.
func (m *UserManager) checkRefresh(ctx context.Context, st store.Tokens, token string, now time.Time) (store.RefreshToken, error) {
	claims, verr := m.codec.Verify(token, auth.TokenClassRefresh, now)
	if verr != nil && !errors.Is(verr, auth.ErrExpired) {
		return store.RefreshToken{}, ErrInvalidToken
	}

	// A record only exists for tokens this service minted, so a hash match also
	// vouches for an expired token's origin.
	rec, err := st.RefreshTokenByHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.RefreshToken{}, ErrInvalidToken
		}
		return store.RefreshToken{}, err
	}
	if verr == nil && rec.UserID != claims.SubjectID() {
		return store.RefreshToken{}, ErrInvalidToken
	}
	if rec.Revoked {
		return store.RefreshToken{}, ErrTokenRevoked
	}
	if verr != nil || !now.Before(rec.ExpiresAt) {
		return store.RefreshToken{}, ErrTokenExpired
	}
	return rec, nil
}

// Refresh mints a new access token. The refresh token stays valid.
func (m *UserManager) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	now := m.clock().UTC()
	rec, err := m.checkRefresh(ctx, m.store, refreshToken, now)
	if err != nil {
		return "", time.Time{}, err
	}
	access, claims, err := m.codec.Sign(now, rec.UserID, auth.TokenClassAccess, m.cfg.AccessTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return access, claims.ExpiresAt.Time, nil
}

// Logout revokes the refresh token. A second logout with the same token fails
// with ErrTokenRevoked.
func (m *UserManager) Logout(ctx context.Context, refreshToken string) error {
	now := m.clock().UTC()
	return m.store.WithinTx(ctx, func(tx store.Store) error {
		rec, err := m.checkRefresh(ctx, tx, refreshToken, now)
		if err != nil {
			return err
		}
		if err := tx.RevokeRefreshToken(ctx, rec.TokenHash); err != nil {
			return err
		}
		logger.From(ctx).Info("user logged out", "user_id", rec.UserID)
		return nil
	})
}

// Authenticate resolves an access token to a user principal. Banned users still
// authenticate; the authorization layer rejects them.
func (m *UserManager) Authenticate(ctx context.Context, accessToken string) (auth.Principal, error) {
	claims, err := m.codec.Verify(accessToken, auth.TokenClassAccess, m.clock().UTC())
	if err != nil {
		return auth.Anonymous, err
	}
	u, err := m.store.UserByID(ctx, claims.SubjectID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Anonymous, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return auth.Anonymous, err
	}
	if u.Banned() {
		logger.From(ctx).Debug("banned user authenticated", slog.String("user_id", u.ID))
	}
	return auth.User(u.ID, u.Banned()), nil
}
