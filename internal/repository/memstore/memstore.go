// Package memstore is an in-memory implementation of every repository
// contract. It enforces the same unique keys and cascades as the Postgres
// schema and is used by the service and handler tests and by the api when no
// database DSN is configured.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

type Option func(*Store)

// WithClock replaces time.Now for created_at/updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	products     map[string]record[models.Product]
	modules      map[string]record[models.Module]
	lessons      map[string]record[models.Lesson]
	entitlements map[string]record[models.Entitlement]
	progress     map[string]record[models.Progress]
	profiles     map[string]models.Profile
	roles        map[string][]models.Role

	failures map[string]error
}

// record keeps insertion order next to the row so ties on created_at sort
// deterministically.
type record[T any] struct {
	row T
	seq int64
}

func New(opts ...Option) *Store {
	s := &Store{
		now:          func() time.Time { return time.Now().UTC() },
		products:     map[string]record[models.Product]{},
		modules:      map[string]record[models.Module]{},
		lessons:      map[string]record[models.Lesson]{},
		entitlements: map[string]record[models.Entitlement]{},
		progress:     map[string]record[models.Progress]{},
		profiles:     map[string]models.Profile{},
		roles:        map[string][]models.Role{},
		failures:     map[string]error{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Products() *Products         { return &Products{s} }
func (s *Store) Modules() *Modules           { return &Modules{s} }
func (s *Store) Lessons() *Lessons           { return &Lessons{s} }
func (s *Store) Entitlements() *Entitlements { return &Entitlements{s} }
func (s *Store) Progress() *Progress         { return &Progress{s} }
func (s *Store) Users() *Users               { return &Users{s} }
func (s *Store) Integrity() *Integrity       { return &Integrity{s} }

// Stores exposes the store through the repository contracts.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Products:     s.Products(),
		Modules:      s.Modules(),
		Lessons:      s.Lessons(),
		Entitlements: s.Entitlements(),
		Progress:     s.Progress(),
		Users:        s.Users(),
		Integrity:    s.Integrity(),
	}
}

// Fail makes every call of op return err until Fail(op, nil) is called. Op
// names match the Postgres repositories ("products.list", "progress.upsert").
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// PutProfile and SetRoles seed the identity tables directly.
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles[p.ID] = p
}

func (s *Store) SetRoles(userID string, roles ...models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = append([]models.Role(nil), roles...)
}

func (s *Store) fail(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Transient(op, err)
	}
	if err, ok := s.failures[op]; ok {
		return apperr.FromStore(op, err)
	}
	return nil
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func progressKey(userID, lessonID string) string {
	return userID + "\x00" + lessonID
}

func (s *Store) productOfModule(moduleID string) string {
	return s.modules[moduleID].row.ProductID
}

func (s *Store) productOfLesson(lessonID string) (string, bool) {
	l, ok := s.lessons[lessonID]
	if !ok {
		return "", false
	}
	m, ok := s.modules[l.row.ModuleID]
	if !ok {
		return "", false
	}
	return m.row.ProductID, true
}

func (s *Store) deleteProductLocked(id string) {
	delete(s.products, id)
	for mid, m := range s.modules {
		if m.row.ProductID == id {
			s.deleteModuleLocked(mid)
		}
	}
	for eid, e := range s.entitlements {
		if e.row.ProductID == id {
			delete(s.entitlements, eid)
		}
	}
}

func (s *Store) deleteModuleLocked(id string) {
	delete(s.modules, id)
	for lid, l := range s.lessons {
		if l.row.ModuleID == id {
			s.deleteLessonLocked(lid)
		}
	}
}

func (s *Store) deleteLessonLocked(id string) {
	delete(s.lessons, id)
	for key, p := range s.progress {
		if p.row.LessonID == id {
			delete(s.progress, key)
		}
	}
}

// Products implements repository.ProductStore.
type Products struct{ s *Store }

var _ repository.ProductStore = (*Products)(nil)

func (r *Products) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "products.list"); err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var recs []record[models.Product]
	for _, rec := range s.products {
		p := rec.row
		if filter.Category != "" && (p.Category == nil || *p.Category != filter.Category) {
			continue
		}
		if filter.FeaturedOnly && !p.Featured {
			continue
		}
		if search != "" {
			hay := strings.ToLower(p.Name)
			if p.Description != nil {
				hay += "\n" + strings.ToLower(*p.Description)
			}
			if !strings.Contains(hay, search) {
				continue
			}
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].row.CreatedAt.Equal(recs[j].row.CreatedAt) {
			return recs[i].row.CreatedAt.After(recs[j].row.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	return rows(recs), nil
}

func (r *Products) GetByID(ctx context.Context, id string) (models.Product, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "products.get"); err != nil {
		return models.Product{}, err
	}
	rec, ok := s.products[id]
	if !ok {
		return models.Product{}, repository.ErrProductNotFound
	}
	return rec.row, nil
}

func (r *Products) GetBySlug(ctx context.Context, slug string) (models.Product, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "products.get_by_slug"); err != nil {
		return models.Product{}, err
	}
	for _, rec := range s.products {
		if rec.row.Slug == slug {
			return rec.row, nil
		}
	}
	return models.Product{}, repository.ErrProductNotFound
}

func (r *Products) slugTaken(slug, exceptID string) bool {
	for id, rec := range r.s.products {
		if id != exceptID && rec.row.Slug == slug {
			return true
		}
	}
	return false
}

func (r *Products) Create(ctx context.Context, product models.Product) (models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "products.create"); err != nil {
		return models.Product{}, err
	}
	if _, ok := s.products[product.ID]; ok {
		return models.Product{}, apperr.Conflict("products.create", "duplicate key")
	}
	if r.slugTaken(product.Slug, "") {
		return models.Product{}, apperr.Conflict("products.create", "slug already in use")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = s.now()
	}
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = record[models.Product]{row: product, seq: s.next()}
	return product, nil
}

func (r *Products) Update(ctx context.Context, product models.Product) (models.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "products.update"); err != nil {
		return models.Product{}, err
	}
	rec, ok := s.products[product.ID]
	if !ok {
		return models.Product{}, repository.ErrProductNotFound
	}
	if r.slugTaken(product.Slug, product.ID) {
		return models.Product{}, apperr.Conflict("products.update", "slug already in use")
	}
	product.CreatedAt = rec.row.CreatedAt
	product.UpdatedAt = s.now()
	rec.row = product
	s.products[product.ID] = rec
	return product, nil
}

func (r *Products) Delete(ctx context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "products.delete"); err != nil {
		return err
	}
	if _, ok := s.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	s.deleteProductLocked(id)
	return nil
}

func rows[T any](recs []record[T]) []T {
	if len(recs) == 0 {
		return nil
	}
	out := make([]T, len(recs))
	for i, rec := range recs {
		out[i] = rec.row
	}
	return out
}
