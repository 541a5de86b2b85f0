package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"collab-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func routerAs(p auth.Principal, e *Engine, action Action) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/workspaces/:workspaceId", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}, RequireWorkspaceAction(e, action, "workspaceId"), func(c *gin.Context) {
		g, _ := GrantFrom(c)
		c.JSON(http.StatusOK, gin.H{"role": g.WorkspaceRole})
	})
	return r
}

func TestRequireWorkspaceAction(t *testing.T) {
	e := newTestEngine(Policy{})

	cases := []struct {
		name string
		p    auth.Principal
		path string
		want int
	}{
		{"member allowed", auth.User("member", false), "/workspaces/w1", http.StatusOK},
		{"anonymous", auth.Anonymous, "/workspaces/w1", http.StatusUnauthorized},
		{"banned", auth.User("member", true), "/workspaces/w1", http.StatusForbidden},
		{"non member looks like missing", auth.User("stranger", false), "/workspaces/w1", http.StatusNotFound},
		{"missing workspace", auth.User("member", false), "/workspaces/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		routerAs(tc.p, e, ActionViewWorkspace).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestRequireWorkspaceAction_InsufficientRole(t *testing.T) {
	e := newTestEngine(Policy{})
	w := httptest.NewRecorder()
	routerAs(auth.User("viewer", false), e, ActionManageWorkspaceMembers).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/w1", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
