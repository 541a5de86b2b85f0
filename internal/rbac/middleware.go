package rbac

import (
	"collab-platform/internal/auth"
	"collab-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const grantKey = "rbac_grant"

// RequireWorkspaceAction authorizes action against the workspace id found in the
// named path parameter. Denials become JSON errors; the grant is stored on the
// gin context for handlers.
func RequireWorkspaceAction(e *Engine, action Action, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.PrincipalFrom(c.Request.Context())
		g, err := e.Authorize(c.Request.Context(), p, action, c.Param(param))
		if err != nil {
			if d, ok := AsDenial(err); ok {
				logger.FromGin(c).Debug("authorization denied", "action", action, "kind", d.Kind.String())
				c.AbortWithStatusJSON(HTTPStatus(err), gin.H{"error": d.Reason})
				return
			}
			logger.FromGin(c).Error("authorization failed", "action", action, "err", err)
			c.AbortWithStatusJSON(HTTPStatus(err), gin.H{"error": "internal error"})
			return
		}
		c.Set(grantKey, g)
		c.Next()
	}
}

// GrantFrom returns the grant stored by RequireWorkspaceAction.
func GrantFrom(c *gin.Context) (Grant, bool) {
	v, ok := c.Get(grantKey)
	if !ok {
		return Grant{}, false
	}
	g, ok := v.(Grant)
	return g, ok
}
