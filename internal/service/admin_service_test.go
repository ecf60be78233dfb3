package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

func TestCreateProductDuplicateSlug(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.product(t, "kit-a")

	_, err := e.admin.CreateProduct(ctx, admin, ProductDraft{Name: "Another kit", Slug: "kit-a"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	products, _ := e.store.Products().List(ctx, models.ProductFilter{})
	if len(products) != 1 {
		t.Fatalf("expected one product, got %d", len(products))
	}
}

func TestUpdateProductKeepsOwnSlug(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.product(t, "kit-a")
	e.product(t, "kit-b")

	category := "  Design "
	updated, err := e.admin.UpdateProduct(ctx, admin, p.ID, ProductDraft{Name: "Kit A v2", Slug: "kit-a", Category: &category})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Kit A v2" || updated.Category == nil || *updated.Category != "Design" {
		t.Fatalf("unexpected product %+v", updated)
	}
	if _, err := e.admin.UpdateProduct(ctx, admin, p.ID, ProductDraft{Name: "Kit A v3", Slug: "kit-b"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDraftValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.product(t, "kit-a")
	negative := -1

	cases := []struct {
		name  string
		run   func() error
		field string
	}{
		{"short name", func() error {
			_, err := e.admin.CreateProduct(ctx, admin, ProductDraft{Name: "ab", Slug: "kit-z"})
			return err
		}, "name"},
		{"blank name", func() error {
			_, err := e.admin.CreateProduct(ctx, admin, ProductDraft{Name: "   ", Slug: "kit-z"})
			return err
		}, "name"},
		{"bad slug", func() error {
			_, err := e.admin.CreateProduct(ctx, admin, ProductDraft{Name: "Kit Z", Slug: "Kit Z"})
			return err
		}, "slug"},
		{"double dash", func() error {
			_, err := e.admin.CreateProduct(ctx, admin, ProductDraft{Name: "Kit Z", Slug: "kit--z"})
			return err
		}, "slug"},
		{"module title", func() error {
			_, err := e.admin.CreateModule(ctx, admin, ModuleDraft{ProductID: p.ID})
			return err
		}, "title"},
		{"module order", func() error {
			_, err := e.admin.CreateModule(ctx, admin, ModuleDraft{Title: "M", ProductID: p.ID, OrderIndex: &negative})
			return err
		}, "order_index"},
		{"lesson video", func() error {
			_, err := e.admin.CreateLesson(ctx, admin, LessonDraft{Title: "L", ModuleID: "m"})
			return err
		}, "video_url"},
		{"lesson duration", func() error {
			_, err := e.admin.CreateLesson(ctx, admin, LessonDraft{Title: "L", VideoURL: "https://v", ModuleID: "m", Duration: &negative})
			return err
		}, "duration"},
		{"grant user", func() error {
			_, err := e.entitlements.Grant(ctx, admin, GrantDraft{ProductID: p.ID})
			return err
		}, "user_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := apperr.FieldOf(err); got != tc.field {
				t.Fatalf("field = %q, want %q", got, tc.field)
			}
		})
	}
}

func TestRoleCheckComesFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.admin.CreateProduct(ctx, alice, ProductDraft{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden before validation, got %v", err)
	}
	if _, err := e.entitlements.Grant(ctx, alice, GrantDraft{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden before validation, got %v", err)
	}
}

func TestNonAdminCannotDeleteLesson(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	e.grant(t, alice.UserID, p.ID)
	before := len(e.events.Events())

	if err := e.admin.DeleteLesson(ctx, alice, lessons[0].ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := e.store.Lessons().GetByID(ctx, lessons[0].ID); err != nil {
		t.Fatalf("lesson gone after forbidden delete: %v", err)
	}
	if len(e.events.Events()) != before {
		t.Fatal("forbidden delete published an event")
	}
}

func TestOrderIndexAssignment(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.product(t, "kit-a")
	other := e.product(t, "kit-b")

	five := 5
	m0 := e.module(t, p.ID, "first")
	m5, err := e.admin.CreateModule(ctx, admin, ModuleDraft{Title: "fifth", ProductID: p.ID, OrderIndex: &five})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m6 := e.module(t, p.ID, "after")
	if m0.OrderIndex != 0 || m5.OrderIndex != 5 || m6.OrderIndex != 6 {
		t.Fatalf("order = %d %d %d", m0.OrderIndex, m5.OrderIndex, m6.OrderIndex)
	}

	if _, err := e.admin.CreateModule(ctx, admin, ModuleDraft{Title: "clash", ProductID: p.ID, OrderIndex: &five}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on reused order, got %v", err)
	}

	e.module(t, other.ID, "other first")
	moved, err := e.admin.UpdateModule(ctx, admin, m0.ID, ModuleDraft{Title: "moved", ProductID: other.ID})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.ProductID != other.ID || moved.OrderIndex != 1 {
		t.Fatalf("moved module = %+v", moved)
	}

	l0 := e.lesson(t, m5.ID, "l0")
	l1 := e.lesson(t, m5.ID, "l1")
	if l0.OrderIndex != 0 || l1.OrderIndex != 1 {
		t.Fatalf("lesson order = %d %d", l0.OrderIndex, l1.OrderIndex)
	}
}

func TestDeleteProductEmitsCascadedEvents(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	grant := e.grant(t, alice.UserID, p.ID)
	if _, err := e.progress.SetCompleted(ctx, alice, lessons[0].ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := e.admin.DeleteProduct(ctx, admin, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	evs := e.events.Events()
	var deletedLessons int
	var sawProduct bool
	for _, ev := range evs {
		switch ev.Type {
		case events.ProductDeleted:
			sawProduct = ev.ProductID == p.ID && ev.ActorID == admin.UserID
		case events.LessonDeleted:
			deletedLessons++
		}
	}
	if !sawProduct || deletedLessons != len(lessons) {
		t.Fatalf("events = %v", e.events.Types())
	}

	if _, err := e.store.Lessons().GetByID(ctx, lessons[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("lesson survived: %v", err)
	}
	if err := e.entitlements.Revoke(ctx, admin, grant.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("entitlement survived: %v", err)
	}
	if err := e.admin.DeleteProduct(ctx, admin, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestDeleteModuleCascadesLessons(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	modules, _ := e.store.Modules().List(ctx, p.ID)

	if err := e.admin.DeleteModule(ctx, admin, modules[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	left, err := e.store.Lessons().ListByProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 || left[0].ID != lessons[3].ID {
		t.Fatalf("remaining lessons = %+v", left)
	}
}

func TestCatalogEventsCarryActor(t *testing.T) {
	e := newEnv(t)
	e.course(t, "kit-a")

	for _, ev := range e.events.Events() {
		if ev.Type.Catalog() && ev.ActorID != admin.UserID {
			t.Fatalf("event %s without actor", ev.Type)
		}
	}
	if got := e.events.Types(); len(got) != 1+2+5 {
		t.Fatalf("expected 8 creation events, got %v", got)
	}
}

func TestUpdateKeepsUploadedImages(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	cover, thumb := "https://cdn.test/cover.png", "https://cdn.test/thumb.png"
	if _, err := e.admin.SetProductImages(ctx, admin, p.ID, &cover, &thumb); err != nil {
		t.Fatalf("set images: %v", err)
	}
	if _, err := e.admin.SetLessonThumbnail(ctx, admin, lessons[0].ID, thumb); err != nil {
		t.Fatalf("set lesson thumbnail: %v", err)
	}

	updated, err := e.admin.UpdateProduct(ctx, admin, p.ID, ProductDraft{Name: "Kit A v2", Slug: "kit-a"})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.CoverImage == nil || *updated.CoverImage != cover || updated.Thumbnail == nil || *updated.Thumbnail != thumb {
		t.Fatalf("images lost: %+v", updated)
	}

	blank := ""
	cleared, err := e.admin.UpdateProduct(ctx, admin, p.ID, ProductDraft{Name: "Kit A v2", Slug: "kit-a", Thumbnail: &blank})
	if err != nil {
		t.Fatalf("clear thumbnail: %v", err)
	}
	if cleared.Thumbnail != nil || cleared.CoverImage == nil {
		t.Fatalf("expected only the thumbnail cleared: %+v", cleared)
	}

	lesson, err := e.admin.UpdateLesson(ctx, admin, lessons[0].ID, LessonDraft{
		Title:    "renamed",
		VideoURL: lessons[0].VideoURL,
		ModuleID: lessons[0].ModuleID,
	})
	if err != nil {
		t.Fatalf("update lesson: %v", err)
	}
	if lesson.Thumbnail == nil || *lesson.Thumbnail != thumb {
		t.Fatalf("lesson thumbnail lost: %+v", lesson)
	}
}

func TestRoleAssignment(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.store.PutProfile(models.Profile{ID: alice.UserID})
	e.store.PutProfile(models.Profile{ID: admin.UserID})
	e.store.SetRoles(admin.UserID, models.RoleAdmin)

	if err := e.admin.AssignRole(ctx, alice, alice.UserID, RoleDraft{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-admin assign: expected forbidden, got %v", err)
	}
	if err := e.admin.AssignRole(ctx, admin, alice.UserID, RoleDraft{}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	roles, _ := e.store.Users().Roles(ctx, alice.UserID)
	if models.RoleFor(roles) != models.RoleAdmin {
		t.Fatalf("roles = %v", roles)
	}

	cases := []struct {
		name string
		err  error
		kind *apperr.Error
	}{
		{"duplicate", e.admin.AssignRole(ctx, admin, alice.UserID, RoleDraft{Role: "Admin"}), apperr.ErrConflict},
		{"unknown profile", e.admin.AssignRole(ctx, admin, "ghost", RoleDraft{}), apperr.ErrNotFound},
		{"unknown role", e.admin.AssignRole(ctx, admin, alice.UserID, RoleDraft{Role: "owner"}), apperr.ErrValidation},
		{"own admin role", e.admin.RevokeRole(ctx, admin, admin.UserID, RoleDraft{}), apperr.ErrConflict},
		{"role not held", e.admin.RevokeRole(ctx, admin, alice.UserID, RoleDraft{Role: "user"}), apperr.ErrNotFound},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Errorf("%s: expected %s, got %v", tc.name, tc.kind.Kind, tc.err)
		}
	}
	if got := apperr.FieldOf(cases[2].err); got != "role" {
		t.Errorf("unknown role field = %q", got)
	}

	if err := e.admin.RevokeRole(ctx, admin, alice.UserID, RoleDraft{}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if roles, _ := e.store.Users().Roles(ctx, alice.UserID); len(roles) != 0 {
		t.Fatalf("roles after revoke = %v", roles)
	}
}

func TestSlugTagIsRegistered(t *testing.T) {
	err := drafts.check("test", ProductDraft{Name: "Kit A", Slug: "Kit A"})
	if !errors.Is(err, apperr.ErrValidation) || apperr.FieldOf(err) != "slug" {
		t.Fatalf("expected slug validation error, got %v", err)
	}
	if err := drafts.check("test", ProductDraft{Name: "Kit A", Slug: "kit-a"}); err != nil {
		t.Fatalf("valid slug rejected: %v", err)
	}
}
