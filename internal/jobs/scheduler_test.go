package jobs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/events"
)

func TestSchedulerEnqueuesSweep(t *testing.T) {
	rec := &events.Recorder{}
	s := NewScheduler("* * * * * *", rec, zerolog.New(io.Discard))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if types := rec.Types(); len(types) > 0 {
			if types[0] != events.IntegritySweep {
				t.Fatalf("enqueued %s", types[0])
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("no sweep enqueued")
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler("every night", &events.Recorder{}, zerolog.New(io.Discard))
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
