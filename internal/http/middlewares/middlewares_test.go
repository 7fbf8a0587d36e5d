package middlewares

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/usermgmt/internal/actorctx"
	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) { return f.claims, f.err }

type fakeUsers map[int64]user.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (user.User, error) {
	u, ok := f[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	users := fakeUsers{7: {ID: 7, Role: user.RoleAdmin, Email: "a@example.com"}}

	tests := []struct {
		name     string
		header   string
		verifier fakeVerifier
		wantCode int
		wantRole user.Role
	}{
		{"no header", "", fakeVerifier{}, http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", fakeVerifier{}, http.StatusUnauthorized, ""},
		{"bad token", "Bearer x", fakeVerifier{err: auth.ErrInvalidToken}, http.StatusUnauthorized, ""},
		{"unknown user", "Bearer x", fakeVerifier{claims: &auth.Claims{UserID: 99}}, http.StatusUnauthorized, ""},
		// role comes from the record, not the token
		{"ok", "Bearer x", fakeVerifier{claims: &auth.Claims{UserID: 7, Role: user.RoleUser}}, http.StatusOK, user.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(tt.verifier, users, nil, quiet())

			var gotRole user.Role
			r := gin.New()
			r.GET("/", m.RequireAuth(), func(c *gin.Context) {
				a, _ := actorctx.ActorFrom(c.Request.Context())
				gotRole = a.Identity.Role
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("got %d want %d body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			if gotRole != tt.wantRole {
				t.Fatalf("got role %q want %q", gotRole, tt.wantRole)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(a *actorctx.Actor) int {
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			if a != nil {
				c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), *a))
			}
			c.Next()
		}, RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Code
	}

	if got := run(nil); got != http.StatusUnauthorized {
		t.Fatalf("no actor: got %d", got)
	}
	if got := run(&actorctx.Actor{Identity: user.Identity{ID: 1, Role: user.RoleUser}}); got != http.StatusForbidden {
		t.Fatalf("user: got %d", got)
	}
	if got := run(&actorctx.Actor{Identity: user.Identity{ID: 1, Role: user.RoleAdmin}}); got != http.StatusOK {
		t.Fatalf("admin: got %d", got)
	}
}

func TestRecovery_HidesPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	r := gin.New()
	r.Use(Recovery(log), RequestID())
	r.GET("/boom", func(*gin.Context) { panic("db exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "db exploded") {
		t.Fatalf("panic value leaked: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if !strings.Contains(logs.String(), "db exploded") {
		t.Fatalf("panic not logged: %s", logs.String())
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/", RateLimit(brokenLimiter{}, KeyByIP, nil, quiet()), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://app.local"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://app.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://app.local" {
		t.Fatalf("missing allow origin header")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow origin for unknown origin")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/", MaxBodyBytes(4), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d", w.Code)
	}
}

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	r := gin.New()
	r.Use(RequestID(), RequestLogger(log))
	r.GET("/api/users/:id", func(c *gin.Context) { c.Status(http.StatusForbidden) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/9", nil))

	out := logs.String()
	for _, want := range []string{`"level":"WARN"`, `"route":"/api/users/:id"`, `"status":403`, `"path":"/api/users/9"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s: %s", want, out)
		}
	}
}

func TestRequireJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/", RequireJSON(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		contentType string
		want        int
	}{
		{"application/json", http.StatusNoContent},
		{"application/json; charset=utf-8", http.StatusNoContent},
		{"text/plain", http.StatusUnsupportedMediaType},
		{"", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Fatalf("content type %q: got %d, want %d", tt.contentType, w.Code, tt.want)
		}
	}
}
