package main

import (
	"database/sql"
	"log/slog"

	"collab-platform/internal/account"
	"collab-platform/internal/audit"
	"collab-platform/internal/auth"
	"collab-platform/internal/collab"
	"collab-platform/internal/config"
	"collab-platform/internal/mailer"
	"collab-platform/internal/rbac"
	"collab-platform/internal/session"
	"collab-platform/internal/store"

	"github.com/redis/go-redis/v9"
)

// deps is the wired service graph. Nothing here is global.
type deps struct {
	cfg      config.Config
	store    store.Store
	engine   *rbac.Engine
	users    *session.UserManager
	admins   *session.AdminManager
	accounts *account.Service
	collab   *collab.Service
	resolver session.Resolver
}

func buildDeps(cfg config.Config, db *sql.DB, st store.Store, rdb *redis.Client, log *slog.Logger) (*deps, error) {
	userCodec, err := auth.NewCodec(auth.CodecConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
	})
	if err != nil {
		return nil, err
	}
	// Admin tokens use their own secret so neither domain can mint the other's tokens.
	adminCodec, err := auth.NewCodec(auth.CodecConfig{
		Secret:   cfg.Admin.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
	})
	if err != nil {
		return nil, err
	}

	hasher := auth.BcryptHasher{}
	au := audit.NewService(audit.NewPostgresRepo(db))
	engine := rbac.NewEngine(rbac.Policy{ViewerManagesProjectMembers: cfg.Policy.ViewerManagesProjectMembers}, st)

	limiter := session.NewRedisLimiter(rdb, "login:", cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow)
	users := session.NewUserManager(st, userCodec, hasher, au, limiter, session.UserConfig{
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	admins := session.NewAdminManager(st, adminCodec, hasher, session.NewRedisDenylist(rdb, "admin-session:"), limiter, session.AdminConfig{
		SessionTTL: cfg.Admin.SessionTTL,
	})

	var mail mailer.Mailer = mailer.Log{L: log}
	if cfg.Mail.SendGridAPIKey != "" {
		sg, err := mailer.NewSendGrid(mailer.SendGridConfig{APIKey: cfg.Mail.SendGridAPIKey, From: cfg.Mail.From})
		if err != nil {
			return nil, err
		}
		mail = sg
	} else {
		log.Warn("SENDGRID_API_KEY not set; password reset links are logged instead of mailed")
	}

	accounts := account.NewService(st, users, userCodec, hasher, engine, mail, au, account.Config{
		ResetTTL:  cfg.Auth.ResetTokenTTL,
		PublicURL: cfg.App.PublicURL,
	})

	return &deps{
		cfg:      cfg,
		store:    st,
		engine:   engine,
		users:    users,
		admins:   admins,
		accounts: accounts,
		collab:   collab.NewService(st, engine),
		resolver: session.Resolver{Users: users, Admins: admins},
	}, nil
}
