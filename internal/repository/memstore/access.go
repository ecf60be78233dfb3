package memstore

import (
	"context"
	"sort"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

// Entitlements implements repository.EntitlementStore.
type Entitlements struct{ s *Store }

var _ repository.EntitlementStore = (*Entitlements)(nil)

func (r *Entitlements) Exists(ctx context.Context, userID, productID string) (bool, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "entitlements.exists"); err != nil {
		return false, err
	}
	for _, rec := range s.entitlements {
		if rec.row.UserID == userID && rec.row.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Entitlements) ProductIDs(ctx context.Context, userID string) ([]string, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "entitlements.product_ids"); err != nil {
		return nil, err
	}

	var recs []record[models.Entitlement]
	for _, rec := range s.entitlements {
		if rec.row.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	var ids []string
	for _, rec := range recs {
		ids = append(ids, rec.row.ProductID)
	}
	return ids, nil
}

func (r *Entitlements) Create(ctx context.Context, entitlement models.Entitlement) (models.Entitlement, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "entitlements.create"); err != nil {
		return models.Entitlement{}, err
	}
	if _, ok := s.products[entitlement.ProductID]; !ok {
		return models.Entitlement{}, repository.ErrProductNotFound
	}
	for _, rec := range s.entitlements {
		if rec.row.UserID == entitlement.UserID && rec.row.ProductID == entitlement.ProductID {
			return models.Entitlement{}, apperr.Conflict("entitlements.create", "user already has access to this product")
		}
	}
	entitlement.PurchasedAt = s.now()
	s.entitlements[entitlement.ID] = record[models.Entitlement]{row: entitlement, seq: s.next()}
	return entitlement, nil
}

func (r *Entitlements) Delete(ctx context.Context, id string) (models.Entitlement, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "entitlements.delete"); err != nil {
		return models.Entitlement{}, err
	}
	rec, ok := s.entitlements[id]
	if !ok {
		return models.Entitlement{}, repository.ErrEntitlementNotFound
	}
	delete(s.entitlements, id)
	return rec.row, nil
}

func (r *Entitlements) List(ctx context.Context) ([]models.EntitlementView, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "entitlements.list"); err != nil {
		return nil, err
	}

	var recs []record[models.Entitlement]
	for _, rec := range s.entitlements {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	var views []models.EntitlementView
	for _, rec := range recs {
		view := models.EntitlementView{
			Entitlement: rec.row,
			ProductName: s.products[rec.row.ProductID].row.Name,
		}
		if profile, ok := s.profiles[rec.row.UserID]; ok {
			view.UserName = profile.Name
		}
		views = append(views, view)
	}
	return views, nil
}

// Progress implements repository.ProgressStore.
type Progress struct{ s *Store }

var _ repository.ProgressStore = (*Progress)(nil)

func (r *Progress) Get(ctx context.Context, userID, lessonID string) (models.Progress, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "progress.get"); err != nil {
		return models.Progress{}, err
	}
	rec, ok := s.progress[progressKey(userID, lessonID)]
	if !ok {
		return models.Progress{}, repository.ErrProgressNotFound
	}
	return rec.row, nil
}

func (r *Progress) Upsert(ctx context.Context, progress models.Progress) (models.Progress, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "progress.upsert"); err != nil {
		return models.Progress{}, err
	}
	if _, ok := s.lessons[progress.LessonID]; !ok {
		return models.Progress{}, repository.ErrLessonNotFound
	}

	now := s.now()
	key := progressKey(progress.UserID, progress.LessonID)
	rec, ok := s.progress[key]
	if !ok {
		row := models.Progress{
			ID:        progress.ID,
			UserID:    progress.UserID,
			LessonID:  progress.LessonID,
			Completed: progress.Completed,
			CreatedAt: now,
		}
		if row.Completed {
			row.CompletedAt = &now
		}
		s.progress[key] = record[models.Progress]{row: row, seq: s.next()}
		return row, nil
	}

	switch {
	case !progress.Completed:
		rec.row.CompletedAt = nil
	case !rec.row.Completed:
		rec.row.CompletedAt = &now
	}
	rec.row.Completed = progress.Completed
	s.progress[key] = rec
	return rec.row, nil
}

func (r *Progress) Touch(ctx context.Context, progress models.Progress) (models.Progress, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "progress.touch"); err != nil {
		return models.Progress{}, err
	}
	if _, ok := s.lessons[progress.LessonID]; !ok {
		return models.Progress{}, repository.ErrLessonNotFound
	}

	key := progressKey(progress.UserID, progress.LessonID)
	if rec, ok := s.progress[key]; ok {
		return rec.row, nil
	}
	row := models.Progress{
		ID:        progress.ID,
		UserID:    progress.UserID,
		LessonID:  progress.LessonID,
		CreatedAt: s.now(),
	}
	s.progress[key] = record[models.Progress]{row: row, seq: s.next()}
	return row, nil
}

func (r *Progress) ListByLessons(ctx context.Context, userID string, lessonIDs []string) ([]models.Progress, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "progress.list_by_lessons"); err != nil {
		return nil, err
	}

	var recs []record[models.Progress]
	seen := make(map[string]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if rec, ok := s.progress[progressKey(userID, id)]; ok {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	return rows(recs), nil
}

func (r *Progress) ListIncomplete(ctx context.Context, userID string, limit int) ([]models.ProgressActivity, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "progress.list_incomplete"); err != nil {
		return nil, err
	}

	var recs []record[models.Progress]
	for _, rec := range s.progress {
		if rec.row.UserID == userID && !rec.row.Completed {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].row.CreatedAt.Equal(recs[j].row.CreatedAt) {
			return recs[i].row.CreatedAt.After(recs[j].row.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	var out []models.ProgressActivity
	for _, rec := range recs {
		productID, ok := s.productOfLesson(rec.row.LessonID)
		if !ok {
			continue
		}
		out = append(out, models.ProgressActivity{Progress: rec.row, ProductID: productID})
	}
	return out, nil
}

func (r *Progress) CompletedLessonIDs(ctx context.Context, userID, productID string) ([]string, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "progress.completed_lessons"); err != nil {
		return nil, err
	}

	var lessons []models.Lesson
	for _, rec := range s.progress {
		if rec.row.UserID != userID || !rec.row.Completed {
			continue
		}
		if pid, ok := s.productOfLesson(rec.row.LessonID); ok && pid == productID {
			lessons = append(lessons, s.lessons[rec.row.LessonID].row)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		mi, mj := s.modules[lessons[i].ModuleID].row.OrderIndex, s.modules[lessons[j].ModuleID].row.OrderIndex
		if mi != mj {
			return mi < mj
		}
		return lessons[i].OrderIndex < lessons[j].OrderIndex
	})

	var ids []string
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (r *Progress) CountCompletedByProducts(ctx context.Context, userID string, productIDs []string) (map[string]int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "progress.count_completed"); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	counts := make(map[string]int, len(productIDs))
	for _, rec := range s.progress {
		if rec.row.UserID != userID || !rec.row.Completed {
			continue
		}
		if pid, ok := s.productOfLesson(rec.row.LessonID); ok && wanted[pid] {
			counts[pid]++
		}
	}
	return counts, nil
}

// Users implements repository.UserStore.
type Users struct{ s *Store }

var _ repository.UserStore = (*Users)(nil)

func (r *Users) Roles(ctx context.Context, userID string) ([]models.Role, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "users.roles"); err != nil {
		return nil, err
	}
	return append([]models.Role(nil), s.roles[userID]...), nil
}

func (r *Users) List(ctx context.Context) ([]models.UserSummary, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(ctx, "users.list"); err != nil {
		return nil, err
	}

	var users []models.UserSummary
	for _, p := range s.profiles {
		users = append(users, models.UserSummary{
			Profile: p,
			Roles:   append([]models.Role(nil), s.roles[p.ID]...),
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (r *Users) AddRole(ctx context.Context, userID string, role models.Role) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "users.add_role"); err != nil {
		return err
	}
	if _, ok := s.profiles[userID]; !ok {
		return repository.ErrProfileNotFound
	}
	for _, existing := range s.roles[userID] {
		if existing == role {
			return apperr.Conflict("users.add_role", "user already has this role")
		}
	}
	roles := append(s.roles[userID], role)
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	s.roles[userID] = roles
	return nil
}

func (r *Users) RemoveRole(ctx context.Context, userID string, role models.Role) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "users.remove_role"); err != nil {
		return err
	}
	roles := s.roles[userID]
	for i, existing := range roles {
		if existing == role {
			s.roles[userID] = append(roles[:i:i], roles[i+1:]...)
			return nil
		}
	}
	return repository.ErrRoleNotFound
}

// Integrity implements repository.IntegrityStore. The memory store cascades
// eagerly, so a sweep only ever finds rows seeded around the cascades.
type Integrity struct{ s *Store }

var _ repository.IntegrityStore = (*Integrity)(nil)

func (r *Integrity) SweepOrphans(ctx context.Context) (repository.SweepReport, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "integrity.sweep"); err != nil {
		return repository.SweepReport{}, err
	}

	var report repository.SweepReport
	for id, rec := range s.modules {
		if _, ok := s.products[rec.row.ProductID]; !ok {
			delete(s.modules, id)
			report.Modules++
		}
	}
	for id, rec := range s.lessons {
		if _, ok := s.modules[rec.row.ModuleID]; !ok {
			delete(s.lessons, id)
			report.Lessons++
		}
	}
	for id, rec := range s.entitlements {
		if _, ok := s.products[rec.row.ProductID]; !ok {
			delete(s.entitlements, id)
			report.Entitlements++
		}
	}
	for key, rec := range s.progress {
		if _, ok := s.lessons[rec.row.LessonID]; !ok {
			delete(s.progress, key)
			report.Progress++
		}
	}
	return report, nil
}
