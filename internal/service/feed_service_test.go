package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/feed"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

func TestHomeSplitsOwnedAndLocked(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.product(t, "kit-a")
	b := e.product(t, "kit-b")
	e.grant(t, alice.UserID, a.ID)

	view, err := e.feed.Home(ctx, alice, feed.NewScopeAll)
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if len(view.Owned) != 1 || view.Owned[0].Product.ID != a.ID {
		t.Fatalf("owned = %+v", view.Owned)
	}
	if len(view.Locked) != 1 || view.Locked[0].Product.ID != b.ID {
		t.Fatalf("locked = %+v", view.Locked)
	}
	if view.Featured == nil || view.Featured.Product.ID != a.ID {
		t.Fatalf("featured = %+v", view.Featured)
	}
	if view.Owned[0].Progress == nil || view.Locked[0].Progress != nil {
		t.Fatal("progress must be attached to owned cards only")
	}
	if len(view.Categories) != 1 || view.Categories[0].Name != "Outros" {
		t.Fatalf("categories = %+v", view.Categories)
	}

	owned, err := e.feed.Home(ctx, alice, feed.NewScopeOwned)
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if len(owned.NewItems) != 1 || owned.NewItems[0].Product.ID != a.ID {
		t.Fatalf("owned scope new items = %+v", owned.NewItems)
	}
}

func TestHomeNewItemsDecay(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.product(t, "kit-a")

	e.clock.t = e.clock.t.Add(7*24*time.Hour + 23*time.Hour)
	view, err := e.feed.Home(ctx, bob, "")
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if len(view.NewItems) != 1 {
		t.Fatalf("expected the product to be new on day 7, got %d", len(view.NewItems))
	}

	e.clock.t = e.clock.t.Add(time.Hour)
	view, err = e.feed.Home(ctx, bob, "")
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if len(view.NewItems) != 0 {
		t.Fatalf("expected no new items on day 8, got %d", len(view.NewItems))
	}
}

func TestHomeDegradesMissingInputs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	e.grant(t, alice.UserID, p.ID)
	if _, err := e.progress.Touch(ctx, alice, lessons[0].ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	e.store.Fail("progress.list_incomplete", pgx.ErrNoRows)
	view, err := e.feed.Home(ctx, alice, "")
	if err != nil {
		t.Fatalf("home with missing activity: %v", err)
	}
	if len(view.ContinueWatching) != 0 || len(view.Owned) != 1 {
		t.Fatalf("view = %+v", view)
	}

	e.store.Fail("progress.list_incomplete", context.DeadlineExceeded)
	if _, err := e.feed.Home(ctx, alice, ""); !apperr.IsRetryable(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestHomeForNewUser(t *testing.T) {
	e := newEnv(t)
	e.course(t, "kit-a")

	view, err := e.feed.Home(context.Background(), models.Actor{UserID: "carol", Role: models.RoleUser}, "")
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if view.Featured != nil || len(view.Owned) != 0 || len(view.ContinueWatching) != 0 {
		t.Fatalf("new user view = %+v", view)
	}
	if len(view.Locked) != 1 {
		t.Fatalf("locked = %+v", view.Locked)
	}
}

func TestHomeClampsContinueWatchingLimit(t *testing.T) {
	for _, limit := range []int{0, -3, 200} {
		e := newEnv(t)
		p, lessons := e.course(t, "kit-a")
		e.grant(t, alice.UserID, p.ID)
		if _, err := e.progress.SetCompleted(context.Background(), alice, lessons[0].ID, false); err != nil {
			t.Fatalf("touch lesson: %v", err)
		}

		opts := feed.DefaultOptions()
		opts.ContinueWatchingLimit = limit
		svc := NewFeedService(e.catalog, e.entitlements, e.progress, opts, zerolog.New(io.Discard)).WithClock(e.clock.now)

		view, err := svc.Home(context.Background(), alice, feed.NewScopeAll)
		if err != nil {
			t.Fatalf("limit %d: home: %v", limit, err)
		}
		if len(view.ContinueWatching) != 1 || view.ContinueWatching[0].Product.ID != p.ID {
			t.Fatalf("limit %d: continue watching = %+v", limit, view.ContinueWatching)
		}
	}
}
