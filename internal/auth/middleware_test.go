package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeResolver struct {
	users  map[string]Principal
	admins map[string]Principal
	err    error
}

func (f fakeResolver) ResolveUser(ctx context.Context, tok string) (Principal, error) {
	if f.err != nil {
		return Anonymous, f.err
	}
	if p, ok := f.users[tok]; ok {
		return p, nil
	}
	return Anonymous, ErrInvalidToken
}

func (f fakeResolver) ResolveAdmin(ctx context.Context, tok string) (Principal, error) {
	if f.err != nil {
		return Anonymous, f.err
	}
	if p, ok := f.admins[tok]; ok {
		return p, nil
	}
	return Anonymous, ErrInvalidToken
}

func newRouter(r PrincipalResolver, seen *Principal, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	handlers := append([]gin.HandlerFunc{ResolvePrincipal(r)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		*seen = PrincipalFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})
	e.GET("/x", handlers...)
	return e
}

func TestResolvePrincipal_BearerUser(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{users: map[string]Principal{"u-tok": User("u1", false)}}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer u-tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !seen.IsUser() || seen.ID != "u1" {
		t.Fatalf("expected user u1, got %d %+v", w.Code, seen)
	}
}

func TestResolvePrincipal_AdminCookieWins(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{
		users:  map[string]Principal{"u-tok": User("u1", false)},
		admins: map[string]Principal{"a-tok": Admin("a1")},
	}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: AdminCookie, Value: "a-tok"})
	req.Header.Set("Authorization", "Bearer u-tok")
	r.ServeHTTP(w, req)

	if !seen.IsAdmin() || seen.ID != "a1" {
		t.Fatalf("expected admin a1, got %+v", seen)
	}
}

func TestResolvePrincipal_StaleAdminCookieFallsThrough(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{users: map[string]Principal{"u-tok": User("u1", false)}}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: AdminCookie, Value: "revoked"})
	req.Header.Set("Authorization", "Bearer u-tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !seen.IsUser() || seen.ID != "u1" {
		t.Fatalf("expected user u1 behind a stale admin cookie, got %d %+v", w.Code, seen)
	}

	seen = Principal{}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: AdminCookie, Value: "revoked"})
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "u-tok"})
	r.ServeHTTP(w, req)

	if !seen.IsUser() || seen.ID != "u1" {
		t.Fatalf("expected access cookie to resolve, got %+v", seen)
	}
}

func TestResolvePrincipal_BearerFallsBackToAdmin(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{admins: map[string]Principal{"a-tok": Admin("a1")}}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer a-tok")
	r.ServeHTTP(w, req)

	if !seen.IsAdmin() {
		t.Fatalf("expected admin, got %+v", seen)
	}
}

func TestResolvePrincipal_InvalidTokenDegradesToAnonymous(t *testing.T) {
	var seen = User("stale", false)
	r := newRouter(fakeResolver{}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !seen.IsAnonymous() {
		t.Fatalf("expected anonymous pass-through, got %d %+v", w.Code, seen)
	}
}

func TestResolvePrincipal_InfrastructureFailureIs500(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{err: errors.New("db down")}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer anything")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRequireUser_RejectsAdminAndAnonymous(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{admins: map[string]Principal{"a-tok": Admin("a1")}}, &seen, RequireUser())

	for _, header := range []string{"", "Bearer a-tok"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestRequireAdmin_RejectsUser(t *testing.T) {
	var seen Principal
	r := newRouter(fakeResolver{users: map[string]Principal{"u-tok": User("u1", false)}}, &seen, RequireAdmin())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer u-tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
