package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/ids"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

// EntitlementService answers whether a user may read a product and manages
// grants from the back office.
type EntitlementService struct {
	entitlements repository.EntitlementStore
	cache        *cache.ReadCache
	ttl          time.Duration
	events       events.Publisher
	log          zerolog.Logger
}

func NewEntitlementService(
	entitlements repository.EntitlementStore,
	readCache *cache.ReadCache,
	ttl time.Duration,
	publisher events.Publisher,
	log zerolog.Logger,
) *EntitlementService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &EntitlementService{
		entitlements: entitlements,
		cache:        readCache,
		ttl:          ttl,
		events:       publisher,
		log:          log,
	}
}

func (s *EntitlementService) ListAccessibleProductIDs(ctx context.Context, userID string) ([]string, error) {
	return cache.Fetch(ctx, s.cache, cache.AccessScope(userID), s.ttl, []string{"product_ids"},
		func(ctx context.Context) ([]string, error) {
			return s.entitlements.ProductIDs(ctx, userID)
		})
}

// AccessibleSet is ListAccessibleProductIDs as a set.
func (s *EntitlementService) AccessibleSet(ctx context.Context, userID string) (map[string]bool, error) {
	productIDs, err := s.ListAccessibleProductIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		set[id] = true
	}
	return set, nil
}

func (s *EntitlementService) HasAccess(ctx context.Context, userID, productID string) (bool, error) {
	set, err := s.AccessibleSet(ctx, userID)
	if err != nil {
		return false, err
	}
	return set[productID], nil
}

// Authorize fails with AccessDenied unless actor may read productID. Admins
// read every product.
func (s *EntitlementService) Authorize(ctx context.Context, actor models.Actor, productID string) error {
	if actor.IsAdmin() {
		return nil
	}
	ok, err := s.HasAccess(ctx, actor.UserID, productID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug().
			Str("user_id", actor.UserID).
			Str("product_id", productID).
			Msg("access denied")
		return apperr.AccessDenied("entitlements.authorize")
	}
	return nil
}

func (s *EntitlementService) Grant(ctx context.Context, actor models.Actor, draft GrantDraft) (models.Entitlement, error) {
	const op = "entitlements.grant"
	if !actor.IsAdmin() {
		return models.Entitlement{}, apperr.Forbidden(op)
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Entitlement{}, err
	}

	granted, err := s.entitlements.Create(ctx, models.Entitlement{
		ID:        ids.New(),
		UserID:    draft.UserID,
		ProductID: draft.ProductID,
	})
	if err != nil {
		return models.Entitlement{}, err
	}

	s.cache.Invalidate(ctx, cache.AccessScope(granted.UserID))
	s.publish(ctx, events.Event{
		Type:          events.EntitlementGranted,
		EntitlementID: granted.ID,
		UserID:        granted.UserID,
		ProductID:     granted.ProductID,
		ActorID:       actor.UserID,
	})
	s.log.Info().
		Str("user_id", granted.UserID).
		Str("product_id", granted.ProductID).
		Str("actor_id", actor.UserID).
		Msg("entitlement granted")
	return granted, nil
}

func (s *EntitlementService) Revoke(ctx context.Context, actor models.Actor, entitlementID string) error {
	const op = "entitlements.revoke"
	if !actor.IsAdmin() {
		return apperr.Forbidden(op)
	}

	revoked, err := s.entitlements.Delete(ctx, entitlementID)
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, cache.AccessScope(revoked.UserID))
	s.publish(ctx, events.Event{
		Type:          events.EntitlementRevoked,
		EntitlementID: revoked.ID,
		UserID:        revoked.UserID,
		ProductID:     revoked.ProductID,
		ActorID:       actor.UserID,
	})
	s.log.Info().
		Str("user_id", revoked.UserID).
		Str("product_id", revoked.ProductID).
		Str("actor_id", actor.UserID).
		Msg("entitlement revoked")
	return nil
}

func (s *EntitlementService) List(ctx context.Context, actor models.Actor) ([]models.EntitlementView, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("entitlements.list")
	}
	return s.entitlements.List(ctx)
}

func (s *EntitlementService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("publish event failed")
	}
}
