package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/config"
	"github.com/vblendo1/koisando-green-alien/internal/handlers"
	"github.com/vblendo1/koisando-green-alien/internal/repository/memstore"
)

func TestServerRoutes(t *testing.T) {
	cfg := &config.AppConfig{Environment: "test"}
	cfg.HTTP.RequestTimeout = time.Second
	cfg.Security.JWTAccessSecret = "s"
	log := zerolog.New(io.Discard)

	hs := handlers.NewHandlerSet(handlers.Deps{Config: cfg, Log: log, Users: memstore.New().Users()})
	srv := NewHTTPServer(cfg, log, hs)

	cases := map[string]int{
		"/api/healthz":        http.StatusOK,
		"/api/v1/feed":        http.StatusUnauthorized,
		"/nothing/here":       http.StatusNotFound,
		"/api/v1/admin/users": http.StatusUnauthorized,
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Errorf("%s: got %d, want %d", path, w.Code, want)
		}
		if w.Header().Get("X-Request-Id") == "" {
			t.Errorf("%s: missing request id", path)
		}
	}
}
