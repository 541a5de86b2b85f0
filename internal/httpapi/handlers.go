package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"collab-platform/internal/account"
	"collab-platform/internal/apierr"
	"collab-platform/internal/auth"
	"collab-platform/internal/collab"
	"collab-platform/internal/rbac"
	"collab-platform/internal/session"
	"collab-platform/internal/store"
	"collab-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Users    *session.UserManager
	Admins   *session.AdminManager
	Accounts *account.Service
	Collab   *collab.Service
	Engine   *rbac.Engine

	// Ping reports database reachability for /healthz.
	Ping func(ctx context.Context) error
	// SecureCookies sets the Secure attribute on the admin cookie.
	SecureCookies bool
}

// Register wires the REST surface onto r.
func Register(r gin.IRouter, h Handlers) {
	r.GET("/healthz", h.Health)

	a := r.Group("/auth")
	{
		a.POST("/login", h.Login)
		a.POST("/refresh", h.Refresh)
		a.POST("/logout", h.Logout)
		a.GET("/me", auth.RequireUser(), h.Me)
	}

	adm := r.Group("/admin")
	{
		adm.POST("/login", h.AdminLogin)

		guarded := adm.Group("", auth.RequireAdmin())
		guarded.POST("/logout", h.AdminLogout)
		guarded.POST("/ban/user", h.BanUser)
		guarded.POST("/unban/user", h.UnbanUser)
	}

	ws := r.Group("/workspaces", auth.RequireUser())
	{
		ws.POST("", h.CreateWorkspace)
		ws.GET("/:workspaceId", rbac.RequireWorkspaceAction(h.Engine, rbac.ActionViewWorkspace, "workspaceId"), h.GetWorkspace)
	}
}

// fail writes err the way every REST endpoint reports failures.
func fail(c *gin.Context, err error) {
	pr := apierr.Describe(err)
	if pr.Internal {
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(pr.Status, gin.H{"error": pr.Message, "code": pr.Code})
}

func device(c *gin.Context) session.Device {
	return session.Device{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.Ping == nil || h.Ping(ctx) != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"apiWorking": true, "databaseConnected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"apiWorking": true, "databaseConnected": true})
}

// --- Auth ---

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenBody struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h Handlers) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}
	_, pair, err := h.Users.Login(c.Request.Context(), session.LoginRequest{Email: req.Email, Password: req.Password, Device: device(c)})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Refresh(c *gin.Context) {
	var req tokenBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}
	access, exp, err := h.Users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "accessExpiresAt": exp})
}

func (h Handlers) Logout(c *gin.Context) {
	var req tokenBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}
	if err := h.Users.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h Handlers) Me(c *gin.Context) {
	id, err := h.Accounts.Me(c.Request.Context(), auth.PrincipalFrom(c.Request.Context()))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id})
}

// --- Admin ---

func (h Handlers) AdminLogin(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}
	_, sess, err := h.Admins.Login(c.Request.Context(), session.LoginRequest{Email: req.Email, Password: req.Password, Device: device(c)})
	if err != nil {
		fail(c, err)
		return
	}
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.AdminCookie, sess.Token, maxAge, "/", "", h.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Admin logged in successfully", "expiresAt": sess.ExpiresAt})
}

func (h Handlers) AdminLogout(c *gin.Context) {
	tok, err := c.Cookie(auth.AdminCookie)
	if err != nil || tok == "" {
		tok = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	}
	if err := h.Admins.Logout(c.Request.Context(), tok); err != nil {
		fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.AdminCookie, "", -1, "/", "", h.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Admin logged out successfully"})
}

type userRef struct {
	ID string `json:"id" binding:"required"`
}

func (h Handlers) BanUser(c *gin.Context) {
	h.moderate(c, h.Accounts.Ban, "User banned successfully")
}

func (h Handlers) UnbanUser(c *gin.Context) {
	h.moderate(c, h.Accounts.Unban, "User active successfully")
}

type moderation func(ctx context.Context, p auth.Principal, userID, ip string) (store.User, error)

func (h Handlers) moderate(c *gin.Context, op moderation, message string) {
	var req userRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}
	u, err := op(c.Request.Context(), auth.PrincipalFrom(c.Request.Context()), req.ID, c.ClientIP())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "user": u})
}

// --- Workspaces ---

type createWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (h Handlers) CreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name and description required"})
		return
	}
	w, err := h.Collab.CreateWorkspace(c.Request.Context(), auth.PrincipalFrom(c.Request.Context()), collab.CreateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workspace created successfully", "workspace": w})
}

// GetWorkspace runs behind RequireWorkspaceAction, so the caller is a member.
func (h Handlers) GetWorkspace(c *gin.Context) {
	w, err := h.Collab.GetWorkspace(c.Request.Context(), auth.PrincipalFrom(c.Request.Context()), c.Param("workspaceId"))
	if err != nil {
		fail(c, err)
		return
	}
	members, err := h.Collab.WorkspaceMembers(c.Request.Context(), w.ID)
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"message": "Workspace fetched successfully", "workspace": w, "members": members}
	if g, ok := rbac.GrantFrom(c); ok {
		resp["role"] = g.WorkspaceRole
	}
	c.JSON(http.StatusOK, resp)
}
