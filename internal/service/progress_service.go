package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/ids"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
)

const maxListLimit = 100

type ProductProgress struct {
	Completion         models.Completion
	CompletedLessonIDs []string
}

// ProgressService tracks lesson completion. Every call is scoped to the
// caller's own user id; there is no way to address another user's rows.
type ProgressService struct {
	progress repository.ProgressStore
	lessons  repository.LessonStore
	access   Authorizer
	log      zerolog.Logger
}

func NewProgressService(progress repository.ProgressStore, lessons repository.LessonStore, access Authorizer, log zerolog.Logger) *ProgressService {
	return &ProgressService{
		progress: progress,
		lessons:  lessons,
		access:   access,
		log:      log,
	}
}

func (s *ProgressService) authorizeLesson(ctx context.Context, actor models.Actor, lessonID string) (models.LessonLocation, error) {
	loc, err := s.lessons.GetLocation(ctx, lessonID)
	if err != nil {
		return models.LessonLocation{}, err
	}
	if err := s.access.Authorize(ctx, actor, loc.ProductID); err != nil {
		return models.LessonLocation{}, err
	}
	return loc, nil
}

// Get returns the caller's progress row for the lesson; found is false when
// the caller never interacted with it.
func (s *ProgressService) Get(ctx context.Context, actor models.Actor, lessonID string) (progress models.Progress, found bool, err error) {
	if _, err := s.authorizeLesson(ctx, actor, lessonID); err != nil {
		return models.Progress{}, false, err
	}
	progress, err = s.progress.Get(ctx, actor.UserID, lessonID)
	if errors.Is(err, repository.ErrProgressNotFound) {
		return models.Progress{}, false, nil
	}
	if err != nil {
		return models.Progress{}, false, err
	}
	return progress, true, nil
}

func (s *ProgressService) SetCompleted(ctx context.Context, actor models.Actor, lessonID string, completed bool) (models.Progress, error) {
	loc, err := s.authorizeLesson(ctx, actor, lessonID)
	if err != nil {
		return models.Progress{}, err
	}
	progress, err := s.progress.Upsert(ctx, models.Progress{
		ID:        ids.New(),
		UserID:    actor.UserID,
		LessonID:  lessonID,
		Completed: completed,
	})
	if err != nil {
		return models.Progress{}, err
	}
	s.log.Debug().
		Str("user_id", actor.UserID).
		Str("lesson_id", lessonID).
		Str("product_id", loc.ProductID).
		Bool("completed", completed).
		Msg("progress updated")
	return progress, nil
}

// Touch records the first interaction with a lesson. An existing row is
// returned untouched.
func (s *ProgressService) Touch(ctx context.Context, actor models.Actor, lessonID string) (models.Progress, error) {
	if _, err := s.authorizeLesson(ctx, actor, lessonID); err != nil {
		return models.Progress{}, err
	}
	return s.progress.Touch(ctx, models.Progress{
		ID:       ids.New(),
		UserID:   actor.UserID,
		LessonID: lessonID,
	})
}

// ListForLessons returns the caller's rows among lessonIDs. Lessons without
// a row are simply absent.
func (s *ProgressService) ListForLessons(ctx context.Context, actor models.Actor, lessonIDs []string) ([]models.Progress, error) {
	if len(lessonIDs) > maxListLimit {
		return nil, apperr.Validation("progress.list_for_lessons", "lesson_ids", "at most 100 lesson ids per request")
	}
	return s.progress.ListByLessons(ctx, actor.UserID, lessonIDs)
}

func (s *ProgressService) ListIncomplete(ctx context.Context, userID string, limit int) ([]models.ProgressActivity, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, apperr.Validation("progress.list_incomplete", "limit", "limit must be between 1 and 100")
	}
	return s.progress.ListIncomplete(ctx, userID, limit)
}

// Completions counts completed and total lessons per product, computed from
// the raw rows on every call.
func (s *ProgressService) Completions(ctx context.Context, userID string, productIDs []string) (map[string]models.Completion, error) {
	totals, err := s.lessons.CountByProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	done, err := s.progress.CountCompletedByProducts(ctx, userID, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Completion, len(productIDs))
	for _, id := range productIDs {
		out[id] = models.Completion{Completed: done[id], Total: totals[id]}
	}
	return out, nil
}

func (s *ProgressService) PercentComplete(ctx context.Context, userID, productID string) (float64, error) {
	c, err := s.Completions(ctx, userID, []string{productID})
	if err != nil {
		return 0, err
	}
	return c[productID].Percent(), nil
}

func (s *ProgressService) ProductProgress(ctx context.Context, userID, productID string) (ProductProgress, error) {
	c, err := s.Completions(ctx, userID, []string{productID})
	if err != nil {
		return ProductProgress{}, err
	}
	completed, err := s.progress.CompletedLessonIDs(ctx, userID, productID)
	if err != nil {
		return ProductProgress{}, err
	}
	return ProductProgress{Completion: c[productID], CompletedLessonIDs: completed}, nil
}
