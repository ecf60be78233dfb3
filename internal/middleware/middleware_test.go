package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository/memstore"
	"github.com/vblendo1/koisando-green-alien/internal/security"
)

const secret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := security.GenerateAccessToken(secret, userID, time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + token
}

func newRouter(store *memstore.Store, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(secret, store.Users(), zerolog.New(io.Discard))}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.String(http.StatusOK, "%s:%s", actor.UserID, actor.Role)
	})
	r.Any("/x", handlers...)
	return r
}

func TestAuth(t *testing.T) {
	store := memstore.New()
	store.SetRoles("boss", models.RoleUser, models.RoleAdmin)
	router := newRouter(store)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "missing_token"},
		{"malformed", "Token abc", http.StatusUnauthorized, "missing_token"},
		{"invalid", "Bearer abc.def.ghi", http.StatusUnauthorized, "invalid_token"},
		{"user", bearer(t, "alice"), http.StatusOK, "alice:user"},
		{"admin", bearer(t, "boss"), http.StatusOK, "boss:admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.status || !strings.Contains(w.Body.String(), tc.body) {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthRoleLookupFailure(t *testing.T) {
	store := memstore.New()
	store.Fail("users.roles", context.DeadlineExceeded)
	router := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", bearer(t, "alice"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	store := memstore.New()
	store.SetRoles("boss", models.RoleAdmin)
	router := newRouter(store, RequireAdmin())

	for user, status := range map[string]int{"alice": http.StatusForbidden, "boss": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", bearer(t, user))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != status {
			t.Errorf("%s: got %d, want %d", user, w.Code, status)
		}
	}
}

func TestSignature(t *testing.T) {
	store := memstore.New()
	unreachable := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = unreachable.Close() })
	router := newRouter(store, Signature(secret, unreachable, zerolog.New(io.Discard)))

	send := func(method string, sign bool) *httptest.ResponseRecorder {
		body := `{"name":"Kit"}`
		req := httptest.NewRequest(method, "/x", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, "alice"))
		if sign {
			date := time.Now().UTC().Format(time.RFC3339)
			sig := security.ComputeSignature(secret, "alice", method, "/x", "", security.ComputeBodyHash([]byte(body)), date, "n1")
			req.Header.Set(security.HeaderDate, date)
			req.Header.Set(security.HeaderNonce, "n1")
			req.Header.Set(security.HeaderSignature, sig)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := send(http.MethodGet, false); w.Code != http.StatusOK {
		t.Fatalf("reads need no signature, got %d", w.Code)
	}
	if w := send(http.MethodPost, false); w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned write: got %d", w.Code)
	}
	// signature is valid; the nonce store is down
	w := send(http.MethodPost, true)
	if w.Code != http.StatusServiceUnavailable || w.Header().Get("Retry-After") == "" {
		t.Fatalf("nonce store down: got %d", w.Code)
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.GET("/x", Timeout(time.Second), func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		if !ok || time.Until(deadline) > time.Second {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("request id not propagated: %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if len(w.Body.String()) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Body.String())
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.New(io.Discard)))
	r.GET("/x", func(*gin.Context) { panic("boom") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://members.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://members.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://members.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
}
