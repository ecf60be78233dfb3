package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
)

func TestSetCompletedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	e.grant(t, alice.UserID, p.ID)
	lesson := lessons[0].ID

	first, err := e.progress.SetCompleted(ctx, alice, lesson, true)
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if first.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	stamp := *first.CompletedAt

	e.clock.t = e.clock.t.Add(time.Hour)
	second, err := e.progress.SetCompleted(ctx, alice, lesson, true)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a second row: %s vs %s", second.ID, first.ID)
	}
	if second.CompletedAt == nil || !second.CompletedAt.Equal(stamp) {
		t.Fatalf("completed_at moved: %v -> %v", stamp, second.CompletedAt)
	}

	undone, err := e.progress.SetCompleted(ctx, alice, lesson, false)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.Completed || undone.CompletedAt != nil {
		t.Fatalf("undo left completion behind: %+v", undone)
	}

	rows, err := e.progress.ListForLessons(ctx, alice, []string{lesson, lesson})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
}

func TestPercentCompleteIsMonotonic(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	e.grant(t, alice.UserID, p.ID)

	last := -1.0
	for i, l := range lessons {
		if _, err := e.progress.SetCompleted(ctx, alice, l.ID, true); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		pct, err := e.progress.PercentComplete(ctx, alice.UserID, p.ID)
		if err != nil {
			t.Fatalf("percent: %v", err)
		}
		if pct < last || pct > 100 {
			t.Fatalf("percent went from %v to %v", last, pct)
		}
		last = pct
	}
	if last != 100 {
		t.Fatalf("expected 100%%, got %v", last)
	}

	// a product without lessons is 0%
	empty := e.product(t, "empty-kit")
	pct, err := e.progress.PercentComplete(ctx, alice.UserID, empty.ID)
	if err != nil || pct != 0 {
		t.Fatalf("empty product = %v, %v", pct, err)
	}
}

func TestProgressScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	e.grant(t, alice.UserID, p.ID)

	if _, err := e.progress.SetCompleted(ctx, alice, lessons[0].ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := e.progress.Touch(ctx, alice, lessons[1].ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	pp, err := e.progress.ProductProgress(ctx, alice.UserID, p.ID)
	if err != nil {
		t.Fatalf("product progress: %v", err)
	}
	if pp.Completion.Percent() != 20 {
		t.Fatalf("expected 20%%, got %v", pp.Completion.Percent())
	}
	if len(pp.CompletedLessonIDs) != 1 || pp.CompletedLessonIDs[0] != lessons[0].ID {
		t.Fatalf("completed ids = %v", pp.CompletedLessonIDs)
	}

	view, err := e.feed.Home(ctx, alice, "")
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if len(view.ContinueWatching) != 1 || view.ContinueWatching[0].Product.ID != p.ID {
		t.Fatalf("expected kit-a in continue watching, got %+v", view.ContinueWatching)
	}

	for _, l := range lessons {
		if _, err := e.progress.SetCompleted(ctx, alice, l.ID, true); err != nil {
			t.Fatalf("complete %s: %v", l.ID, err)
		}
	}
	pct, _ := e.progress.PercentComplete(ctx, alice.UserID, p.ID)
	if pct != 100 {
		t.Fatalf("expected 100%%, got %v", pct)
	}
	view, err = e.feed.Home(ctx, alice, "")
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if len(view.ContinueWatching) != 0 {
		t.Fatalf("finished product still in continue watching: %+v", view.ContinueWatching)
	}
}

func TestTouchKeepsExistingRow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p, lessons := e.course(t, "kit-a")
	e.grant(t, alice.UserID, p.ID)

	done, err := e.progress.SetCompleted(ctx, alice, lessons[0].ID, true)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	touched, err := e.progress.Touch(ctx, alice, lessons[0].ID)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !touched.Completed || touched.ID != done.ID {
		t.Fatalf("touch overwrote the row: %+v", touched)
	}

	got, found, err := e.progress.Get(ctx, alice, lessons[1].ID)
	if err != nil || found {
		t.Fatalf("untouched lesson: %+v found=%v err=%v", got, found, err)
	}
}

func TestProgressOnLockedLesson(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, lessons := e.course(t, "kit-a")

	if _, err := e.progress.SetCompleted(ctx, bob, lessons[0].ID, true); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, err := e.progress.Touch(ctx, bob, lessons[0].ID); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	rows, err := e.store.Progress().ListByLessons(ctx, bob.UserID, []string{lessons[0].ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("denied write left %d rows", len(rows))
	}

	if _, err := e.progress.SetCompleted(ctx, bob, "missing", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListLimits(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, limit := range []int{0, -1, 101} {
		_, err := e.progress.ListIncomplete(ctx, alice.UserID, limit)
		if apperr.FieldOf(err) != "limit" {
			t.Errorf("limit %d: expected validation on limit, got %v", limit, err)
		}
	}
	many := make([]string, 101)
	for i := range many {
		many[i] = "lesson"
	}
	if _, err := e.progress.ListForLessons(ctx, alice, many); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
