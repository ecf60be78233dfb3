package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/feed"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

// FeedService loads the inputs of the home page concurrently and hands them
// to feed.Compose.
type FeedService struct {
	catalog      *CatalogService
	entitlements *EntitlementService
	progress     *ProgressService
	opts         feed.Options
	now          func() time.Time
	log          zerolog.Logger
}

// NewFeedService clamps the continue watching limit into the range accepted
// by ProgressService.ListIncomplete; an unset limit takes the feed default.
func NewFeedService(catalog *CatalogService, entitlements *EntitlementService, progress *ProgressService, opts feed.Options, log zerolog.Logger) *FeedService {
	switch {
	case opts.ContinueWatchingLimit <= 0:
		opts.ContinueWatchingLimit = feed.DefaultOptions().ContinueWatchingLimit
	case opts.ContinueWatchingLimit > maxListLimit:
		opts.ContinueWatchingLimit = maxListLimit
	}
	return &FeedService{
		catalog:      catalog,
		entitlements: entitlements,
		progress:     progress,
		opts:         opts,
		now:          time.Now,
		log:          log,
	}
}

// WithClock replaces the wall clock used for the new items window.
func (s *FeedService) WithClock(now func() time.Time) *FeedService {
	s.now = now
	return s
}

func (s *FeedService) Home(ctx context.Context, actor models.Actor, scope feed.NewScope) (feed.View, error) {
	var (
		products []models.Product
		owned    map[string]bool
		activity []models.ProgressActivity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.ListProducts(gctx, models.ProductFilter{})
		return s.degrade("products", actor, err)
	})
	g.Go(func() error {
		var err error
		owned, err = s.entitlements.AccessibleSet(gctx, actor.UserID)
		return s.degrade("entitlements", actor, err)
	})
	g.Go(func() error {
		var err error
		activity, err = s.progress.ListIncomplete(gctx, actor.UserID, s.opts.ContinueWatchingLimit)
		return s.degrade("activity", actor, err)
	})
	if err := g.Wait(); err != nil {
		return feed.View{}, err
	}

	var ownedIDs []string
	for _, p := range products {
		if owned[p.ID] {
			ownedIDs = append(ownedIDs, p.ID)
		}
	}
	completion, err := s.progress.Completions(ctx, actor.UserID, ownedIDs)
	if err := s.degrade("completion", actor, err); err != nil {
		return feed.View{}, err
	}

	opts := s.opts
	opts.NewScope = scope
	return feed.Compose(feed.Input{
		Products:   products,
		Owned:      owned,
		Activity:   activity,
		Completion: completion,
		Now:        s.now(),
	}, opts), nil
}

// degrade turns a NotFound from one of the feed inputs into an empty input.
func (s *FeedService) degrade(input string, actor models.Actor, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.KindNotFound {
		s.log.Debug().Err(err).Str("input", input).Str("user_id", actor.UserID).Msg("feed input missing, using empty")
		return nil
	}
	return err
}
