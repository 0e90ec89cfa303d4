package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.header)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("bearerToken(%q) = %q %v, want %q %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

// newProtectedRouter echoes the identity AuthMiddleware put in the request context.
func newProtectedRouter() *gin.Engine {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	api := r.Group("/api", AuthMiddleware())
	api.GET("/me", func(c *gin.Context) {
		id, _ := utils.GetUserIdFromContext(c.Request.Context())
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	api.GET("/admin", AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	r := newProtectedRouter()

	if w := serve(r, "/api/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if w := serve(r, "/api/me", "not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", w.Code)
	}

	staff, err := utils.JwtGenerate(5, "reception", "Staff")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	w := serve(r, "/api/me", staff)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"id":5,"role":"Staff"}` {
		t.Fatalf("unexpected body %s", body)
	}
	if w.Header().Get(CorrelationIdHeader) == "" {
		t.Fatalf("correlation id header missing")
	}

	if w := serve(r, "/api/admin", staff); w.Code != http.StatusForbidden {
		t.Fatalf("staff on admin route: expected 403, got %d", w.Code)
	}
	admin, err := utils.JwtGenerate(1, "admin", "Admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if w := serve(r, "/api/admin", admin); w.Code != http.StatusNoContent {
		t.Fatalf("admin on admin route: expected 204, got %d", w.Code)
	}

	t.Setenv("API_SECRET", "rotated-secret")
	if w := serve(r, "/api/me", staff); w.Code != http.StatusUnauthorized {
		t.Fatalf("token signed with an old secret: expected 401, got %d", w.Code)
	}
}

func TestCorrelationMiddleware_ReusesCallerId(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, cid)
	})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIdHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get(CorrelationIdHeader) != "abc-123" {
		t.Fatalf("expected caller correlation id to be kept, got body=%q header=%q", w.Body.String(), w.Header().Get(CorrelationIdHeader))
	}
}
