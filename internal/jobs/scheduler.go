package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/events"
)

// Scheduler enqueues periodic maintenance onto the event stream; the worker
// does the actual work.
type Scheduler struct {
	cron      *cron.Cron
	publisher events.Publisher
	sweep     string
	log       zerolog.Logger
}

// NewScheduler takes a six-field cron expression (with seconds).
func NewScheduler(sweepSchedule string, publisher events.Publisher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		publisher: publisher,
		sweep:     sweepSchedule,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.publisher == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(s.sweep, s.enqueueSweep); err != nil {
		return fmt.Errorf("schedule integrity sweep %q: %w", s.sweep, err)
	}
	s.cron.Start()
	s.log.Info().Str("integrity_sweep", s.sweep).Msg("scheduler started")
	return nil
}

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, events.Event{Type: events.IntegritySweep}); err != nil {
		s.log.Error().Err(err).Msg("enqueue integrity sweep failed")
	}
}
