// Package tasks handles catalog events in the worker: media cleanup for
// deleted entities, purging stale cache generations and the integrity sweep.
package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
	"github.com/vblendo1/koisando-green-alien/internal/storage"
)

type MediaRemover interface {
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

type CachePurger interface {
	Purge(ctx context.Context, scope string) (int, error)
}

type Processor struct {
	media     MediaRemover
	cache     CachePurger
	integrity repository.IntegrityStore
	logger    zerolog.Logger
}

// NewProcessor accepts nil collaborators; the matching work is skipped.
func NewProcessor(media MediaRemover, purger CachePurger, integrity repository.IntegrityStore, logger zerolog.Logger) *Processor {
	return &Processor{
		media:     media,
		cache:     purger,
		integrity: integrity,
		logger:    logger,
	}
}

// Handle implements queue.MessageHandler. Undecodable messages are logged and
// acked so they do not block the group.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	ev, err := events.Decode(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}
	return p.Process(ctx, ev)
}

func (p *Processor) Process(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.ProductDeleted:
		if err := p.removeMedia(ctx, storage.ProductPrefix(ev.ProductID)); err != nil {
			return err
		}
	case events.LessonDeleted:
		if err := p.removeMedia(ctx, storage.LessonPrefix(ev.LessonID)); err != nil {
			return err
		}
	case events.EntitlementGranted, events.EntitlementRevoked:
		return p.purge(ctx, cache.AccessScope(ev.UserID))
	case events.IntegritySweep:
		return p.sweep(ctx)
	}

	if ev.Type.Catalog() {
		return p.purge(ctx, cache.ScopeCatalog)
	}
	p.logger.Warn().Str("type", string(ev.Type)).Msg("unknown event type")
	return nil
}

func (p *Processor) removeMedia(ctx context.Context, prefix string) error {
	if p.media == nil {
		return nil
	}
	n, err := p.media.RemovePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("remove media %s: %w", prefix, err)
	}
	if n > 0 {
		p.logger.Info().Str("prefix", prefix).Int("objects", n).Msg("media removed")
	}
	return nil
}

// purge is best effort; the generation bump already hid the stale keys.
func (p *Processor) purge(ctx context.Context, scope string) error {
	if p.cache == nil {
		return nil
	}
	n, err := p.cache.Purge(ctx, scope)
	if err != nil {
		p.logger.Warn().Err(err).Str("scope", scope).Msg("cache purge failed")
		return nil
	}
	p.logger.Debug().Str("scope", scope).Int("keys", n).Msg("cache purged")
	return nil
}

func (p *Processor) sweep(ctx context.Context) error {
	if p.integrity == nil {
		return nil
	}
	report, err := p.integrity.SweepOrphans(ctx)
	if err != nil {
		return fmt.Errorf("integrity sweep: %w", err)
	}
	event := p.logger.Info()
	if report.Total() > 0 {
		event = p.logger.Warn()
	}
	event.
		Int64("modules", report.Modules).
		Int64("lessons", report.Lessons).
		Int64("entitlements", report.Entitlements).
		Int64("progress", report.Progress).
		Msg("integrity sweep finished")
	return nil
}
