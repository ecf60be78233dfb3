package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

// Authorizer decides whether an actor may read a product's content.
type Authorizer interface {
	Authorize(ctx context.Context, actor models.Actor, productID string) error
}

type ProductOutline struct {
	Product models.Product
	Modules []models.ModuleOutline
}

type LessonDetail struct {
	Location models.LessonLocation
	EmbedURL string
}

// CatalogService serves the product, module and lesson reads. Product cards
// are public; anything below a product goes through the Authorizer first.
type CatalogService struct {
	products repository.ProductStore
	modules  repository.ModuleStore
	lessons  repository.LessonStore
	access   Authorizer
	cache    *cache.ReadCache
	ttl      time.Duration
	log      zerolog.Logger
}

func NewCatalogService(
	products repository.ProductStore,
	modules repository.ModuleStore,
	lessons repository.LessonStore,
	access Authorizer,
	readCache *cache.ReadCache,
	ttl time.Duration,
	log zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		products: products,
		modules:  modules,
		lessons:  lessons,
		access:   access,
		cache:    readCache,
		ttl:      ttl,
		log:      log,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	parts := []string{"products", filter.Category, strconv.FormatBool(filter.FeaturedOnly), filter.Search}
	return cache.Fetch(ctx, s.cache, cache.ScopeCatalog, s.ttl, parts, func(ctx context.Context) ([]models.Product, error) {
		return s.products.List(ctx, filter)
	})
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (models.Product, error) {
	return cache.Fetch(ctx, s.cache, cache.ScopeCatalog, s.ttl, []string{"product_slug", slug}, func(ctx context.Context) (models.Product, error) {
		return s.products.GetBySlug(ctx, slug)
	})
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// ListModules returns the modules of a product sorted by order_index.
func (s *CatalogService) ListModules(ctx context.Context, actor models.Actor, productID string) ([]models.Module, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, actor, productID); err != nil {
		return nil, err
	}
	return s.modules.List(ctx, productID)
}

// ListLessons returns the lessons of a module sorted by order_index.
func (s *CatalogService) ListLessons(ctx context.Context, actor models.Actor, moduleID string) ([]models.Lesson, error) {
	module, err := s.modules.GetByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, actor, module.ProductID); err != nil {
		return nil, err
	}
	return s.lessons.List(ctx, moduleID)
}

func (s *CatalogService) GetLesson(ctx context.Context, actor models.Actor, lessonID string) (LessonDetail, error) {
	loc, err := s.lessons.GetLocation(ctx, lessonID)
	if err != nil {
		return LessonDetail{}, err
	}
	if err := s.access.Authorize(ctx, actor, loc.ProductID); err != nil {
		return LessonDetail{}, err
	}
	return LessonDetail{Location: loc, EmbedURL: EmbedURL(loc.Lesson.VideoURL)}, nil
}

// Outline returns the product with its modules and their lessons in display
// order.
func (s *CatalogService) Outline(ctx context.Context, actor models.Actor, slug string) (ProductOutline, error) {
	product, err := s.GetProductBySlug(ctx, slug)
	if err != nil {
		return ProductOutline{}, err
	}
	if err := s.access.Authorize(ctx, actor, product.ID); err != nil {
		return ProductOutline{}, err
	}

	modules, err := cache.Fetch(ctx, s.cache, cache.ScopeCatalog, s.ttl, []string{"outline", product.ID},
		func(ctx context.Context) ([]models.ModuleOutline, error) {
			return s.buildOutline(ctx, product.ID)
		})
	if err != nil {
		return ProductOutline{}, err
	}
	return ProductOutline{Product: product, Modules: modules}, nil
}

func (s *CatalogService) buildOutline(ctx context.Context, productID string) ([]models.ModuleOutline, error) {
	modules, err := s.modules.List(ctx, productID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	byModule := make(map[string][]models.Lesson, len(modules))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}
	outline := make([]models.ModuleOutline, 0, len(modules))
	for _, m := range modules {
		outline = append(outline, models.ModuleOutline{Module: m, Lessons: byModule[m.ID]})
	}
	return outline, nil
}
