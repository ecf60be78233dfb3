package tasks

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/repository/memstore"
)

type fakeMedia struct {
	prefixes []string
	err      error
}

func (f *fakeMedia) RemovePrefix(_ context.Context, prefix string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.prefixes = append(f.prefixes, prefix)
	return 1, nil
}

type fakePurger struct {
	scopes []string
	err    error
}

func (f *fakePurger) Purge(_ context.Context, scope string) (int, error) {
	f.scopes = append(f.scopes, scope)
	return 0, f.err
}

func newProcessor(media *fakeMedia, purger *fakePurger) *Processor {
	return NewProcessor(media, purger, memstore.New().Integrity(), zerolog.New(io.Discard))
}

func TestProcessRoutesEvents(t *testing.T) {
	cases := []struct {
		event    events.Event
		prefixes []string
		scopes   []string
	}{
		{events.Event{Type: events.ProductDeleted, ProductID: "p1"}, []string{"products/p1/"}, []string{cache.ScopeCatalog}},
		{events.Event{Type: events.LessonDeleted, LessonID: "l1"}, []string{"lessons/l1/"}, []string{cache.ScopeCatalog}},
		{events.Event{Type: events.ModuleUpdated, ModuleID: "m1"}, nil, []string{cache.ScopeCatalog}},
		{events.Event{Type: events.EntitlementGranted, UserID: "alice"}, nil, []string{cache.AccessScope("alice")}},
		{events.Event{Type: events.IntegritySweep}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.event.Type), func(t *testing.T) {
			media, purger := &fakeMedia{}, &fakePurger{}
			if err := newProcessor(media, purger).Process(context.Background(), tc.event); err != nil {
				t.Fatalf("process: %v", err)
			}
			if !equal(media.prefixes, tc.prefixes) {
				t.Errorf("prefixes = %v, want %v", media.prefixes, tc.prefixes)
			}
			if !equal(purger.scopes, tc.scopes) {
				t.Errorf("scopes = %v, want %v", purger.scopes, tc.scopes)
			}
		})
	}
}

func TestMediaFailureKeepsMessagePending(t *testing.T) {
	media := &fakeMedia{err: errors.New("minio down")}
	p := newProcessor(media, &fakePurger{})
	if err := p.Process(context.Background(), events.Event{Type: events.ProductDeleted, ProductID: "p1"}); err == nil {
		t.Fatal("expected error so the message is retried")
	}
}

func TestPurgeFailureIsIgnored(t *testing.T) {
	p := newProcessor(&fakeMedia{}, &fakePurger{err: errors.New("redis down")})
	if err := p.Process(context.Background(), events.Event{Type: events.ProductUpdated}); err != nil {
		t.Fatalf("purge failure should not fail the message: %v", err)
	}
}

func TestHandleDropsMalformedMessages(t *testing.T) {
	p := newProcessor(&fakeMedia{}, &fakePurger{})
	if err := p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]interface{}{"productId": "p1"}}); err != nil {
		t.Fatalf("malformed message should be acked: %v", err)
	}
}

func TestSweepFailure(t *testing.T) {
	store := memstore.New()
	store.Fail("integrity.sweep", context.DeadlineExceeded)
	p := NewProcessor(nil, nil, store.Integrity(), zerolog.New(io.Discard))
	if err := p.Process(context.Background(), events.Event{Type: events.IntegritySweep}); err == nil {
		t.Fatal("expected sweep error")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
