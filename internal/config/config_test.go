package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEMBERS_SECURITY_JWTACCESSSECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Security.JWTAccessSecret != "test-secret" {
		t.Fatalf("jwt secret = %q", cfg.Security.JWTAccessSecret)
	}
	if cfg.HTTP.RequestTimeout != 15*time.Second {
		t.Errorf("request timeout = %s", cfg.HTTP.RequestTimeout)
	}
	if cfg.Feed.DefaultCategory != "Outros" || cfg.Feed.NewItemWindowDays != 7 || cfg.Feed.ContinueWatchingLimit != 10 {
		t.Errorf("feed defaults = %+v", cfg.Feed)
	}
	if cfg.Events.Stream != "catalog:events" {
		t.Errorf("stream = %q", cfg.Events.Stream)
	}
	if cfg.Redis.CommandTimeout != 500*time.Millisecond {
		t.Errorf("redis command timeout = %s", cfg.Redis.CommandTimeout)
	}
	if cfg.Postgres.DSN != "" || cfg.Storage.Endpoint != "" {
		t.Errorf("unexpected backends configured: %q %q", cfg.Postgres.DSN, cfg.Storage.Endpoint)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEMBERS_SECURITY_JWTACCESSSECRET", "test-secret")
	t.Setenv("MEMBERS_HTTP_PORT", "9090")
	t.Setenv("MEMBERS_CACHE_ACCESSTTL", "90s")
	t.Setenv("MEMBERS_ALLOWCORSORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.Cache.AccessTTL != 90*time.Second {
		t.Errorf("access ttl = %s", cfg.Cache.AccessTTL)
	}
	if len(cfg.AllowCORSOrigins) != 2 || cfg.AllowCORSOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.AllowCORSOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"MEMBERS_SECURITY_JWTACCESSSECRET": ""}},
		{name: "signature without secret", env: map[string]string{
			"MEMBERS_SECURITY_JWTACCESSSECRET":  "s",
			"MEMBERS_SECURITY_REQUIRESIGNATURE": "true",
		}},
		{name: "zero continue watching limit", env: map[string]string{
			"MEMBERS_SECURITY_JWTACCESSSECRET":   "s",
			"MEMBERS_FEED_CONTINUEWATCHINGLIMIT": "0",
		}},
		{name: "continue watching limit above 100", env: map[string]string{
			"MEMBERS_SECURITY_JWTACCESSSECRET":   "s",
			"MEMBERS_FEED_CONTINUEWATCHINGLIMIT": "200",
		}},
		{name: "zero request timeout", env: map[string]string{
			"MEMBERS_SECURITY_JWTACCESSSECRET": "s",
			"MEMBERS_HTTP_REQUESTTIMEOUT":      "0s",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
