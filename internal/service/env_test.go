package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/feed"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository/memstore"
)

var (
	admin = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	alice = models.Actor{UserID: "alice", Role: models.RoleUser}
	bob   = models.Actor{UserID: "bob", Role: models.RoleUser}
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type env struct {
	store        *memstore.Store
	clock        *clock
	events       *events.Recorder
	entitlements *EntitlementService
	catalog      *CatalogService
	progress     *ProgressService
	admin        *AdminService
	feed         *FeedService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := memstore.New(memstore.WithClock(c.now))
	rec := &events.Recorder{}
	log := zerolog.New(io.Discard)

	entitlements := NewEntitlementService(store.Entitlements(), nil, time.Minute, rec, log)
	catalog := NewCatalogService(store.Products(), store.Modules(), store.Lessons(), entitlements, nil, time.Minute, log)
	progress := NewProgressService(store.Progress(), store.Lessons(), entitlements, log)
	adminSvc := NewAdminService(store.Products(), store.Modules(), store.Lessons(), store.Users(), nil, rec, log)
	feedSvc := NewFeedService(catalog, entitlements, progress, feed.DefaultOptions(), log).WithClock(c.now)

	return &env{
		store:        store,
		clock:        c,
		events:       rec,
		entitlements: entitlements,
		catalog:      catalog,
		progress:     progress,
		admin:        adminSvc,
		feed:         feedSvc,
	}
}

func (e *env) product(t *testing.T, slug string) models.Product {
	t.Helper()
	p, err := e.admin.CreateProduct(context.Background(), admin, ProductDraft{Name: "Product " + slug, Slug: slug})
	if err != nil {
		t.Fatalf("create product %s: %v", slug, err)
	}
	return p
}

func (e *env) module(t *testing.T, productID, title string) models.Module {
	t.Helper()
	m, err := e.admin.CreateModule(context.Background(), admin, ModuleDraft{Title: title, ProductID: productID})
	if err != nil {
		t.Fatalf("create module %s: %v", title, err)
	}
	return m
}

func (e *env) lesson(t *testing.T, moduleID, title string) models.Lesson {
	t.Helper()
	desc := "secret notes for " + title
	l, err := e.admin.CreateLesson(context.Background(), admin, LessonDraft{
		Title:       title,
		VideoURL:    "https://www.youtube.com/watch?v=" + title,
		ModuleID:    moduleID,
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("create lesson %s: %v", title, err)
	}
	return l
}

func (e *env) grant(t *testing.T, userID, productID string) models.Entitlement {
	t.Helper()
	g, err := e.entitlements.Grant(context.Background(), admin, GrantDraft{UserID: userID, ProductID: productID})
	if err != nil {
		t.Fatalf("grant %s/%s: %v", userID, productID, err)
	}
	return g
}

// course builds a product with two modules of three and two lessons.
func (e *env) course(t *testing.T, slug string) (models.Product, []models.Lesson) {
	t.Helper()
	p := e.product(t, slug)
	m1 := e.module(t, p.ID, "Module one")
	m2 := e.module(t, p.ID, "Module two")
	var lessons []models.Lesson
	for _, title := range []string{"a1", "a2", "a3"} {
		lessons = append(lessons, e.lesson(t, m1.ID, slug+"-"+title))
	}
	for _, title := range []string{"b1", "b2"} {
		lessons = append(lessons, e.lesson(t, m2.ID, slug+"-"+title))
	}
	return p, lessons
}
