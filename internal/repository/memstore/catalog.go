package memstore

import (
	"context"
	"sort"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

// Modules implements repository.ModuleStore.
type Modules struct{ s *Store }

var _ repository.ModuleStore = (*Modules)(nil)

func (r *Modules) List(ctx context.Context, productID string) ([]models.Module, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "modules.list"); err != nil {
		return nil, err
	}

	var out []models.Module
	for _, rec := range s.modules {
		if productID == "" || rec.row.ProductID == productID {
			out = append(out, rec.row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (r *Modules) GetByID(ctx context.Context, id string) (models.Module, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "modules.get"); err != nil {
		return models.Module{}, err
	}
	rec, ok := s.modules[id]
	if !ok {
		return models.Module{}, repository.ErrModuleNotFound
	}
	return rec.row, nil
}

func (r *Modules) orderTaken(productID string, order int, exceptID string) bool {
	for id, rec := range r.s.modules {
		if id != exceptID && rec.row.ProductID == productID && rec.row.OrderIndex == order {
			return true
		}
	}
	return false
}

func (r *Modules) Create(ctx context.Context, module models.Module) (models.Module, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "modules.create"); err != nil {
		return models.Module{}, err
	}
	if _, ok := s.products[module.ProductID]; !ok {
		return models.Module{}, repository.ErrProductNotFound
	}
	if r.orderTaken(module.ProductID, module.OrderIndex, "") {
		return models.Module{}, apperr.Conflict("modules.create", "order_index already used in this parent")
	}
	module.CreatedAt = s.now()
	s.modules[module.ID] = record[models.Module]{row: module, seq: s.next()}
	return module, nil
}

func (r *Modules) Update(ctx context.Context, module models.Module) (models.Module, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "modules.update"); err != nil {
		return models.Module{}, err
	}
	rec, ok := s.modules[module.ID]
	if !ok {
		return models.Module{}, repository.ErrModuleNotFound
	}
	if _, ok := s.products[module.ProductID]; !ok {
		return models.Module{}, apperr.NotFound("modules.update", "referenced record does not exist")
	}
	if r.orderTaken(module.ProductID, module.OrderIndex, module.ID) {
		return models.Module{}, apperr.Conflict("modules.update", "order_index already used in this parent")
	}
	module.CreatedAt = rec.row.CreatedAt
	rec.row = module
	s.modules[module.ID] = rec
	return module, nil
}

func (r *Modules) Delete(ctx context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "modules.delete"); err != nil {
		return err
	}
	if _, ok := s.modules[id]; !ok {
		return repository.ErrModuleNotFound
	}
	s.deleteModuleLocked(id)
	return nil
}

func (r *Modules) NextOrderIndex(ctx context.Context, productID string) (int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "modules.next_order_index"); err != nil {
		return 0, err
	}
	next := 0
	for _, rec := range s.modules {
		if rec.row.ProductID == productID && rec.row.OrderIndex >= next {
			next = rec.row.OrderIndex + 1
		}
	}
	return next, nil
}

// Lessons implements repository.LessonStore.
type Lessons struct{ s *Store }

var _ repository.LessonStore = (*Lessons)(nil)

func (r *Lessons) List(ctx context.Context, moduleID string) ([]models.Lesson, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "lessons.list"); err != nil {
		return nil, err
	}

	var out []models.Lesson
	for _, rec := range s.lessons {
		if moduleID == "" || rec.row.ModuleID == moduleID {
			out = append(out, rec.row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModuleID != out[j].ModuleID {
			return out[i].ModuleID < out[j].ModuleID
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (r *Lessons) ListByProduct(ctx context.Context, productID string) ([]models.Lesson, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "lessons.list_by_product"); err != nil {
		return nil, err
	}

	var out []models.Lesson
	for _, rec := range s.lessons {
		if s.productOfModule(rec.row.ModuleID) == productID {
			out = append(out, rec.row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := s.modules[out[i].ModuleID].row.OrderIndex, s.modules[out[j].ModuleID].row.OrderIndex
		if mi != mj {
			return mi < mj
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (r *Lessons) GetByID(ctx context.Context, id string) (models.Lesson, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "lessons.get"); err != nil {
		return models.Lesson{}, err
	}
	rec, ok := s.lessons[id]
	if !ok {
		return models.Lesson{}, repository.ErrLessonNotFound
	}
	return rec.row, nil
}

func (r *Lessons) GetLocation(ctx context.Context, id string) (models.LessonLocation, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "lessons.get_location"); err != nil {
		return models.LessonLocation{}, err
	}
	rec, ok := s.lessons[id]
	if !ok {
		return models.LessonLocation{}, repository.ErrLessonNotFound
	}
	module := s.modules[rec.row.ModuleID].row
	product := s.products[module.ProductID].row
	return models.LessonLocation{
		Lesson:      rec.row,
		ModuleTitle: module.Title,
		ProductID:   product.ID,
		ProductSlug: product.Slug,
	}, nil
}

func (r *Lessons) orderTaken(moduleID string, order int, exceptID string) bool {
	for id, rec := range r.s.lessons {
		if id != exceptID && rec.row.ModuleID == moduleID && rec.row.OrderIndex == order {
			return true
		}
	}
	return false
}

func (r *Lessons) Create(ctx context.Context, lesson models.Lesson) (models.Lesson, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "lessons.create"); err != nil {
		return models.Lesson{}, err
	}
	if _, ok := s.modules[lesson.ModuleID]; !ok {
		return models.Lesson{}, repository.ErrModuleNotFound
	}
	if r.orderTaken(lesson.ModuleID, lesson.OrderIndex, "") {
		return models.Lesson{}, apperr.Conflict("lessons.create", "order_index already used in this parent")
	}
	lesson.CreatedAt = s.now()
	lesson.UpdatedAt = lesson.CreatedAt
	s.lessons[lesson.ID] = record[models.Lesson]{row: lesson, seq: s.next()}
	return lesson, nil
}

func (r *Lessons) Update(ctx context.Context, lesson models.Lesson) (models.Lesson, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "lessons.update"); err != nil {
		return models.Lesson{}, err
	}
	rec, ok := s.lessons[lesson.ID]
	if !ok {
		return models.Lesson{}, repository.ErrLessonNotFound
	}
	if _, ok := s.modules[lesson.ModuleID]; !ok {
		return models.Lesson{}, repository.ErrModuleNotFound
	}
	if r.orderTaken(lesson.ModuleID, lesson.OrderIndex, lesson.ID) {
		return models.Lesson{}, apperr.Conflict("lessons.update", "order_index already used in this parent")
	}
	lesson.CreatedAt = rec.row.CreatedAt
	lesson.UpdatedAt = s.now()
	rec.row = lesson
	s.lessons[lesson.ID] = rec
	return lesson, nil
}

func (r *Lessons) Delete(ctx context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "lessons.delete"); err != nil {
		return err
	}
	if _, ok := s.lessons[id]; !ok {
		return repository.ErrLessonNotFound
	}
	s.deleteLessonLocked(id)
	return nil
}

func (r *Lessons) NextOrderIndex(ctx context.Context, moduleID string) (int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "lessons.next_order_index"); err != nil {
		return 0, err
	}
	next := 0
	for _, rec := range s.lessons {
		if rec.row.ModuleID == moduleID && rec.row.OrderIndex >= next {
			next = rec.row.OrderIndex + 1
		}
	}
	return next, nil
}

func (r *Lessons) CountByProducts(ctx context.Context, productIDs []string) (map[string]int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "lessons.count_by_products"); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	counts := make(map[string]int, len(productIDs))
	for _, rec := range s.lessons {
		if pid := s.productOfModule(rec.row.ModuleID); wanted[pid] {
			counts[pid]++
		}
	}
	return counts, nil
}
