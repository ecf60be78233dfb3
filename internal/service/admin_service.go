package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/ids"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

// AdminService is the back office write surface over the catalog. Every
// method checks the admin role before it looks at its input.
type AdminService struct {
	products repository.ProductStore
	modules  repository.ModuleStore
	lessons  repository.LessonStore
	users    repository.UserStore
	cache    *cache.ReadCache
	events   events.Publisher
	log      zerolog.Logger
}

func NewAdminService(
	products repository.ProductStore,
	modules repository.ModuleStore,
	lessons repository.LessonStore,
	users repository.UserStore,
	readCache *cache.ReadCache,
	publisher events.Publisher,
	log zerolog.Logger,
) *AdminService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AdminService{
		products: products,
		modules:  modules,
		lessons:  lessons,
		users:    users,
		cache:    readCache,
		events:   publisher,
		log:      log,
	}
}

func requireAdmin(op string, actor models.Actor) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden(op)
	}
	return nil
}

// changed invalidates cached catalog reads and notifies the worker.
func (s *AdminService) changed(ctx context.Context, actor models.Actor, evs ...events.Event) {
	s.cache.Invalidate(ctx, cache.ScopeCatalog)
	for _, ev := range evs {
		ev.ActorID = actor.UserID
		if err := s.events.Publish(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("publish event failed")
		}
	}
}

func (s *AdminService) ensureSlugFree(ctx context.Context, op, slug, exceptID string) error {
	existing, err := s.products.GetBySlug(ctx, slug)
	switch {
	case err == nil && existing.ID != exceptID:
		return apperr.Conflict(op, "slug already in use")
	case err == nil, apperr.KindOf(err) == apperr.KindNotFound:
		return nil
	}
	return err
}

func (s *AdminService) CreateProduct(ctx context.Context, actor models.Actor, draft ProductDraft) (models.Product, error) {
	const op = "admin.create_product"
	if err := requireAdmin(op, actor); err != nil {
		return models.Product{}, err
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Product{}, err
	}
	if err := s.ensureSlugFree(ctx, op, draft.Slug, ""); err != nil {
		return models.Product{}, err
	}

	product, err := s.products.Create(ctx, models.Product{
		ID:          ids.New(),
		Name:        draft.Name,
		Slug:        draft.Slug,
		Description: draft.Description,
		CoverImage:  draft.CoverImage,
		Thumbnail:   draft.Thumbnail,
		Category:    draft.Category,
		Featured:    draft.Featured,
	})
	if err != nil {
		return models.Product{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.ProductCreated, ProductID: product.ID})
	s.log.Info().Str("product_id", product.ID).Str("slug", product.Slug).Msg("product created")
	return product, nil
}

func (s *AdminService) UpdateProduct(ctx context.Context, actor models.Actor, id string, draft ProductDraft) (models.Product, error) {
	const op = "admin.update_product"
	if err := requireAdmin(op, actor); err != nil {
		return models.Product{}, err
	}
	// Omitted image fields keep the uploaded URLs; an empty string clears them.
	keepCover, keepThumbnail := draft.CoverImage == nil, draft.Thumbnail == nil
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Product{}, err
	}
	current, err := s.products.GetByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	if keepCover {
		draft.CoverImage = current.CoverImage
	}
	if keepThumbnail {
		draft.Thumbnail = current.Thumbnail
	}
	if err := s.ensureSlugFree(ctx, op, draft.Slug, id); err != nil {
		return models.Product{}, err
	}

	product, err := s.products.Update(ctx, models.Product{
		ID:          id,
		Name:        draft.Name,
		Slug:        draft.Slug,
		Description: draft.Description,
		CoverImage:  draft.CoverImage,
		Thumbnail:   draft.Thumbnail,
		Category:    draft.Category,
		Featured:    draft.Featured,
	})
	if err != nil {
		return models.Product{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.ProductUpdated, ProductID: product.ID})
	return product, nil
}

// DeleteProduct removes the product and, by cascade, its modules, lessons,
// entitlements and progress. A lesson.deleted event is emitted for every
// cascaded lesson so the worker can drop their media too.
func (s *AdminService) DeleteProduct(ctx context.Context, actor models.Actor, id string) error {
	const op = "admin.delete_product"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	cascaded, err := s.lessons.ListByProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	evs := []events.Event{{Type: events.ProductDeleted, ProductID: id}}
	for _, l := range cascaded {
		evs = append(evs, events.Event{Type: events.LessonDeleted, ProductID: id, ModuleID: l.ModuleID, LessonID: l.ID})
	}
	s.changed(ctx, actor, evs...)
	s.log.Info().Str("product_id", id).Int("lessons", len(cascaded)).Msg("product deleted")
	return nil
}

// SetProductImages stores uploaded image URLs on the product. Nil leaves a
// field unchanged.
func (s *AdminService) SetProductImages(ctx context.Context, actor models.Actor, id string, cover, thumbnail *string) (models.Product, error) {
	const op = "admin.set_product_images"
	if err := requireAdmin(op, actor); err != nil {
		return models.Product{}, err
	}
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	if cover != nil {
		product.CoverImage = cover
	}
	if thumbnail != nil {
		product.Thumbnail = thumbnail
	}
	product, err = s.products.Update(ctx, product)
	if err != nil {
		return models.Product{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.ProductUpdated, ProductID: product.ID})
	return product, nil
}

func (s *AdminService) ListProducts(ctx context.Context, actor models.Actor) ([]models.Product, error) {
	if err := requireAdmin("admin.list_products", actor); err != nil {
		return nil, err
	}
	return s.products.List(ctx, models.ProductFilter{})
}

func (s *AdminService) ListModules(ctx context.Context, actor models.Actor, productID string) ([]models.Module, error) {
	if err := requireAdmin("admin.list_modules", actor); err != nil {
		return nil, err
	}
	return s.modules.List(ctx, productID)
}

func (s *AdminService) CreateModule(ctx context.Context, actor models.Actor, draft ModuleDraft) (models.Module, error) {
	const op = "admin.create_module"
	if err := requireAdmin(op, actor); err != nil {
		return models.Module{}, err
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Module{}, err
	}
	if _, err := s.products.GetByID(ctx, draft.ProductID); err != nil {
		return models.Module{}, err
	}

	order, err := s.moduleOrder(ctx, draft.ProductID, draft.OrderIndex)
	if err != nil {
		return models.Module{}, err
	}
	module, err := s.modules.Create(ctx, models.Module{
		ID:          ids.New(),
		ProductID:   draft.ProductID,
		Title:       draft.Title,
		Description: draft.Description,
		OrderIndex:  order,
	})
	if err != nil {
		return models.Module{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.ModuleCreated, ProductID: module.ProductID, ModuleID: module.ID})
	return module, nil
}

func (s *AdminService) UpdateModule(ctx context.Context, actor models.Actor, id string, draft ModuleDraft) (models.Module, error) {
	const op = "admin.update_module"
	if err := requireAdmin(op, actor); err != nil {
		return models.Module{}, err
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Module{}, err
	}
	current, err := s.modules.GetByID(ctx, id)
	if err != nil {
		return models.Module{}, err
	}
	if draft.ProductID != current.ProductID {
		if _, err := s.products.GetByID(ctx, draft.ProductID); err != nil {
			return models.Module{}, err
		}
	}

	order := current.OrderIndex
	if draft.OrderIndex != nil {
		order = *draft.OrderIndex
	} else if draft.ProductID != current.ProductID {
		if order, err = s.modules.NextOrderIndex(ctx, draft.ProductID); err != nil {
			return models.Module{}, err
		}
	}
	module, err := s.modules.Update(ctx, models.Module{
		ID:          id,
		ProductID:   draft.ProductID,
		Title:       draft.Title,
		Description: draft.Description,
		OrderIndex:  order,
	})
	if err != nil {
		return models.Module{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.ModuleUpdated, ProductID: module.ProductID, ModuleID: module.ID})
	return module, nil
}

func (s *AdminService) DeleteModule(ctx context.Context, actor models.Actor, id string) error {
	const op = "admin.delete_module"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	module, err := s.modules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	cascaded, err := s.lessons.List(ctx, id)
	if err != nil {
		return err
	}
	if err := s.modules.Delete(ctx, id); err != nil {
		return err
	}

	evs := []events.Event{{Type: events.ModuleDeleted, ProductID: module.ProductID, ModuleID: id}}
	for _, l := range cascaded {
		evs = append(evs, events.Event{Type: events.LessonDeleted, ProductID: module.ProductID, ModuleID: id, LessonID: l.ID})
	}
	s.changed(ctx, actor, evs...)
	return nil
}

func (s *AdminService) moduleOrder(ctx context.Context, productID string, requested *int) (int, error) {
	if requested != nil {
		return *requested, nil
	}
	return s.modules.NextOrderIndex(ctx, productID)
}

func (s *AdminService) ListLessons(ctx context.Context, actor models.Actor, moduleID string) ([]models.Lesson, error) {
	if err := requireAdmin("admin.list_lessons", actor); err != nil {
		return nil, err
	}
	return s.lessons.List(ctx, moduleID)
}

func (s *AdminService) CreateLesson(ctx context.Context, actor models.Actor, draft LessonDraft) (models.Lesson, error) {
	const op = "admin.create_lesson"
	if err := requireAdmin(op, actor); err != nil {
		return models.Lesson{}, err
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Lesson{}, err
	}
	module, err := s.modules.GetByID(ctx, draft.ModuleID)
	if err != nil {
		return models.Lesson{}, err
	}

	order := 0
	if draft.OrderIndex != nil {
		order = *draft.OrderIndex
	} else if order, err = s.lessons.NextOrderIndex(ctx, draft.ModuleID); err != nil {
		return models.Lesson{}, err
	}
	lesson, err := s.lessons.Create(ctx, models.Lesson{
		ID:          ids.New(),
		ModuleID:    draft.ModuleID,
		Title:       draft.Title,
		Description: draft.Description,
		VideoURL:    draft.VideoURL,
		Thumbnail:   draft.Thumbnail,
		OrderIndex:  order,
		Duration:    draft.Duration,
	})
	if err != nil {
		return models.Lesson{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.LessonCreated, ProductID: module.ProductID, ModuleID: module.ID, LessonID: lesson.ID})
	return lesson, nil
}

func (s *AdminService) UpdateLesson(ctx context.Context, actor models.Actor, id string, draft LessonDraft) (models.Lesson, error) {
	const op = "admin.update_lesson"
	if err := requireAdmin(op, actor); err != nil {
		return models.Lesson{}, err
	}
	keepThumbnail := draft.Thumbnail == nil
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return models.Lesson{}, err
	}
	current, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return models.Lesson{}, err
	}
	if keepThumbnail {
		draft.Thumbnail = current.Thumbnail
	}
	module, err := s.modules.GetByID(ctx, draft.ModuleID)
	if err != nil {
		return models.Lesson{}, err
	}

	order := current.OrderIndex
	if draft.OrderIndex != nil {
		order = *draft.OrderIndex
	} else if draft.ModuleID != current.ModuleID {
		if order, err = s.lessons.NextOrderIndex(ctx, draft.ModuleID); err != nil {
			return models.Lesson{}, err
		}
	}
	lesson, err := s.lessons.Update(ctx, models.Lesson{
		ID:          id,
		ModuleID:    draft.ModuleID,
		Title:       draft.Title,
		Description: draft.Description,
		VideoURL:    draft.VideoURL,
		Thumbnail:   draft.Thumbnail,
		OrderIndex:  order,
		Duration:    draft.Duration,
	})
	if err != nil {
		return models.Lesson{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.LessonUpdated, ProductID: module.ProductID, ModuleID: module.ID, LessonID: lesson.ID})
	return lesson, nil
}

// SetLessonThumbnail stores an uploaded thumbnail URL on the lesson.
func (s *AdminService) SetLessonThumbnail(ctx context.Context, actor models.Actor, id, url string) (models.Lesson, error) {
	const op = "admin.set_lesson_thumbnail"
	if err := requireAdmin(op, actor); err != nil {
		return models.Lesson{}, err
	}
	loc, err := s.lessons.GetLocation(ctx, id)
	if err != nil {
		return models.Lesson{}, err
	}
	lesson := loc.Lesson
	lesson.Thumbnail = &url
	lesson, err = s.lessons.Update(ctx, lesson)
	if err != nil {
		return models.Lesson{}, err
	}
	s.changed(ctx, actor, events.Event{Type: events.LessonUpdated, ProductID: loc.ProductID, ModuleID: lesson.ModuleID, LessonID: lesson.ID})
	return lesson, nil
}

func (s *AdminService) DeleteLesson(ctx context.Context, actor models.Actor, id string) error {
	const op = "admin.delete_lesson"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	loc, err := s.lessons.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.lessons.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, actor, events.Event{Type: events.LessonDeleted, ProductID: loc.ProductID, ModuleID: loc.Lesson.ModuleID, LessonID: id})
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, actor models.Actor) ([]models.UserSummary, error) {
	if err := requireAdmin("admin.list_users", actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// AssignRole adds a user_roles row for an existing profile. Presence of the
// admin row is what makes a user an admin.
func (s *AdminService) AssignRole(ctx context.Context, actor models.Actor, userID string, draft RoleDraft) error {
	const op = "admin.assign_role"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return err
	}
	if err := s.users.AddRole(ctx, userID, models.Role(draft.Role)); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("role", draft.Role).Str("actor_id", actor.UserID).Msg("role assigned")
	return nil
}

// RevokeRole removes a role row. Admins cannot revoke their own admin role.
func (s *AdminService) RevokeRole(ctx context.Context, actor models.Actor, userID string, draft RoleDraft) error {
	const op = "admin.revoke_role"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	draft.normalize()
	if err := drafts.check(op, draft); err != nil {
		return err
	}
	if userID == actor.UserID && models.Role(draft.Role) == models.RoleAdmin {
		return apperr.Conflict(op, "cannot revoke your own admin role")
	}
	if err := s.users.RemoveRole(ctx, userID, models.Role(draft.Role)); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("role", draft.Role).Str("actor_id", actor.UserID).Msg("role revoked")
	return nil
}
