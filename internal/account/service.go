package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"collab-platform/internal/audit"
	"collab-platform/internal/auth"
	"collab-platform/internal/mailer"
	"collab-platform/internal/rbac"
	"collab-platform/internal/session"
	"collab-platform/internal/store"
	"collab-platform/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmailTaken     = errors.New("email already registered")
	ErrWrongPassword  = errors.New("current password is incorrect")
	ErrUserNotFound   = errors.New("user not found")
	ErrAlreadyBanned  = errors.New("user already banned")
	ErrAlreadyActive  = errors.New("user already active")
	ErrResetTokenUsed = errors.New("reset token already used")
)

type Config struct {
	ResetTTL time.Duration
	// PublicURL prefixes the password reset link.
	PublicURL string
}

// Service owns registration, password management and user moderation.
type Service struct {
	store    store.Store
	sessions *session.UserManager
	codec    *auth.Codec
	hasher   auth.Hasher
	engine   *rbac.Engine
	mail     mailer.Mailer
	audit    *audit.Service
	validate *validator.Validate
	cfg      Config
	clock    func() time.Time
}

func NewService(
	st store.Store,
	sessions *session.UserManager,
	codec *auth.Codec,
	hasher auth.Hasher,
	engine *rbac.Engine,
	mail mailer.Mailer,
	au *audit.Service,
	cfg Config,
) *Service {
	return &Service{
		store:    st,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		engine:   engine,
		mail:     mail,
		audit:    au,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		clock:    time.Now,
	}
}

type RegisterInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

type passwordInput struct {
	Password string `validate:"required,min=8,max=72"`
}

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

// Register creates an ACTIVE user and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput, d session.Device) (store.User, session.Pair, error) {
	in.Email = session.NormalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return store.User{}, session.Pair{}, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return store.User{}, session.Pair{}, err
	}
	now := s.clock().UTC()
	u := store.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: digest,
		Status:       store.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, session.Pair{}, ErrEmailTaken
		}
		return store.User{}, session.Pair{}, err
	}

	pair, err := s.sessions.Issue(ctx, u, d)
	if err != nil {
		return store.User{}, session.Pair{}, err
	}
	logger.From(ctx).Info("user registered", "user_id", u.ID)
	return u, pair, nil
}

// ForgotPassword mails a reset link when the address belongs to a user. The
// response is identical whether or not it does.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = session.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	message := "Reset link was sent to your email. " + MaskEmail(email)

	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return message, nil
		}
		return "", err
	}

	now := s.clock().UTC()
	tok, claims, err := s.codec.Sign(now, u.ID, auth.TokenClassPasswordReset, s.cfg.ResetTTL)
	if err != nil {
		return "", err
	}
	rec := store.PasswordResetToken{
		TokenHash: auth.HashToken(tok),
		UserID:    u.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: now,
	}
	if err := s.store.CreatePasswordResetToken(ctx, rec); err != nil {
		return "", fmt.Errorf("persist reset token: %w", err)
	}

	link := strings.TrimRight(s.cfg.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(tok)
	if err := s.mail.SendPasswordReset(ctx, u.Email, link); err != nil {
		// Failing here would tell the caller the address exists.
		logger.From(ctx).Error("password reset mail failed", "user_id", u.ID, "err", err)
	}
	return message, nil
}

// ResetPassword consumes a reset token once and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.check(passwordInput{Password: newPassword}); err != nil {
		return err
	}
	now := s.clock().UTC()
	claims, err := s.codec.Verify(token, auth.TokenClassPasswordReset, now)
	if err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return session.ErrTokenExpired
		}
		return session.ErrInvalidToken
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.store.WithinTx(ctx, func(tx store.Store) error {
		rec, err := tx.PasswordResetTokenByHash(ctx, auth.HashToken(token))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return session.ErrInvalidToken
			}
			return err
		}
		if rec.UserID != claims.SubjectID() {
			return session.ErrInvalidToken
		}
		if rec.UsedAt != nil {
			return ErrResetTokenUsed
		}
		if !now.Before(rec.ExpiresAt) {
			return session.ErrTokenExpired
		}
		if err := tx.UpdateUserPassword(ctx, rec.UserID, digest, now); err != nil {
			return err
		}
		if err := tx.MarkPasswordResetTokenUsed(ctx, rec.TokenHash, now); err != nil {
			return err
		}
		logger.From(ctx).Info("password reset", "user_id", rec.UserID)
		return nil
	})
}

// UpdatePassword changes the caller's password after checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, p auth.Principal, current, next string) error {
	if err := s.engine.RequireUser(p); err != nil {
		return err
	}
	if err := s.check(passwordInput{Password: next}); err != nil {
		return err
	}

	u, err := s.store.UserByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.hasher.Verify(current, u.PasswordHash) {
		return ErrWrongPassword
	}
	digest, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, u.ID, digest, s.clock().UTC())
}

// Ban marks a user BANNED. Only admins may call it.
func (s *Service) Ban(ctx context.Context, p auth.Principal, userID, ip string) (store.User, error) {
	return s.setStatus(ctx, p, userID, ip, store.UserBanned)
}

// Unban restores a BANNED user to ACTIVE. Only admins may call it.
func (s *Service) Unban(ctx context.Context, p auth.Principal, userID, ip string) (store.User, error) {
	return s.setStatus(ctx, p, userID, ip, store.UserActive)
}

func (s *Service) setStatus(ctx context.Context, p auth.Principal, userID, ip string, status store.UserStatus) (store.User, error) {
	if _, err := s.engine.Authorize(ctx, p, rbac.ActionModerateUsers, ""); err != nil {
		return store.User{}, err
	}
	if userID == "" {
		return store.User{}, fmt.Errorf("%w: id", ErrInvalidInput)
	}

	var out store.User
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.UserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if u.Status == status {
			if status == store.UserBanned {
				return ErrAlreadyBanned
			}
			return ErrAlreadyActive
		}
		now := s.clock().UTC()
		if err := tx.SetUserStatus(ctx, u.ID, status, now); err != nil {
			return err
		}
		u.Status = status
		u.UpdatedAt = now
		out = u
		return nil
	})
	if err != nil {
		return store.User{}, err
	}

	banned := status == store.UserBanned
	if err := s.audit.LogModeration(ctx, p.ID, userID, banned, ip); err != nil {
		logger.From(ctx).Error("moderation audit failed", "user_id", userID, "err", err)
	}
	logger.From(ctx).Info("user status changed", "user_id", userID, "status", string(status), "admin_id", p.ID)
	return out, nil
}

// Identity is what "who am I" reports for either principal kind.
type Identity struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Kind   string `json:"kind"`
	Status string `json:"status,omitempty"`
}

func (s *Service) Me(ctx context.Context, p auth.Principal) (Identity, error) {
	switch {
	case p.IsUser():
		u, err := s.store.UserByID(ctx, p.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Identity{}, ErrUserNotFound
			}
			return Identity{}, err
		}
		return Identity{ID: u.ID, Email: u.Email, Kind: p.Kind.String(), Status: string(u.Status)}, nil
	case p.IsAdmin():
		a, err := s.store.AdminByID(ctx, p.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Identity{}, ErrUserNotFound
			}
			return Identity{}, err
		}
		return Identity{ID: a.ID, Email: a.Email, Kind: p.Kind.String()}, nil
	}
	return Identity{}, rbac.Deny(rbac.DenyUnauthenticated, "Not authenticated")
}

// MaskEmail keeps the first three characters of the local part.
func MaskEmail(email string) string {
	name, domain, ok := strings.Cut(email, "@")
	if !ok || name == "" || domain == "" {
		return email
	}
	runes := []rune(name)
	if len(runes) <= 3 {
		return name + "@" + domain
	}
	return string(runes[:3]) + strings.Repeat("*", len(runes)-3) + "@" + domain
}
