package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"collab-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

const (
	AdminCookie  = "adminToken"
	AccessCookie = "accessToken"
)

// PrincipalResolver turns presented credentials into a principal.
// Credential problems must be reported as (wrapping) ErrInvalidToken; any other
// error is treated as an infrastructure failure.
type PrincipalResolver interface {
	ResolveUser(ctx context.Context, accessToken string) (Principal, error)
	ResolveAdmin(ctx context.Context, sessionToken string) (Principal, error)
}

// ResolvePrincipal resolves the caller once per request and stores it in the request context.
// It never rejects a request for bad credentials; the caller simply stays Anonymous.
// Authorization decisions belong to RequireUser/RequireAdmin and internal/rbac.
func ResolvePrincipal(r PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := resolve(c, r)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				logger.FromGin(c).Error("principal resolution failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			logger.FromGin(c).Debug("credentials rejected", "err", err)
			p = Anonymous
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Set("principal", p)
		c.Next()
	}
}

func resolve(c *gin.Context, r PrincipalResolver) (Principal, error) {
	ctx := c.Request.Context()

	// A stale admin cookie must not shadow other credentials on the request.
	if tok, err := c.Cookie(AdminCookie); err == nil && tok != "" {
		p, err := r.ResolveAdmin(ctx, tok)
		if err == nil || !errors.Is(err, ErrInvalidToken) {
			return p, err
		}
	}

	if tok := bearerToken(c); tok != "" {
		p, err := r.ResolveUser(ctx, tok)
		if err == nil || !errors.Is(err, ErrInvalidToken) {
			return p, err
		}
		// Admin clients without cookies present their session token as a bearer token.
		return r.ResolveAdmin(ctx, tok)
	}

	if tok, err := c.Cookie(AccessCookie); err == nil && tok != "" {
		return r.ResolveUser(ctx, tok)
	}

	return Anonymous, nil
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
}

// RequireUser rejects requests whose resolved principal is not a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c.Request.Context()).IsUser() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests whose resolved principal is not an admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c.Request.Context()).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
