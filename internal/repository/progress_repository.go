package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

const progressColumns = `id, user_id, lesson_id, completed, completed_at, created_at`

type ProgressRepository struct {
	db DB
}

func NewProgressRepository(db DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func scanProgress(row pgx.Row) (models.Progress, error) {
	var p models.Progress
	err := row.Scan(&p.ID, &p.UserID, &p.LessonID, &p.Completed, &p.CompletedAt, &p.CreatedAt)
	return p, err
}

func (r *ProgressRepository) Get(ctx context.Context, userID, lessonID string) (models.Progress, error) {
	p, err := scanProgress(r.db.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 AND lesson_id = $2`,
		userID, lessonID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Progress{}, ErrProgressNotFound
		}
		return models.Progress{}, apperr.FromStore("progress.get", err)
	}
	return p, nil
}

// Upsert is a single statement so concurrent writers for the same pair can
// never produce two rows. completed_at is stamped on the false->true
// transition, kept while the lesson stays complete and cleared otherwise.
func (r *ProgressRepository) Upsert(ctx context.Context, progress models.Progress) (models.Progress, error) {
	const query = `
		INSERT INTO user_progress (id, user_id, lesson_id, completed, completed_at, created_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN NOW() END, NOW())
		ON CONFLICT ON CONSTRAINT user_progress_user_lesson_key DO UPDATE
		SET completed = EXCLUDED.completed,
		    completed_at = CASE
		        WHEN NOT EXCLUDED.completed THEN NULL
		        WHEN user_progress.completed THEN user_progress.completed_at
		        ELSE NOW()
		    END
		RETURNING ` + progressColumns

	p, err := scanProgress(r.db.QueryRow(ctx, query,
		progress.ID,
		progress.UserID,
		progress.LessonID,
		progress.Completed,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Progress{}, ErrLessonNotFound
		}
		return models.Progress{}, apperr.FromStore("progress.upsert", err)
	}
	return p, nil
}

func (r *ProgressRepository) Touch(ctx context.Context, progress models.Progress) (models.Progress, error) {
	const insert = `
		INSERT INTO user_progress (id, user_id, lesson_id, completed, completed_at, created_at)
		VALUES ($1, $2, $3, false, NULL, NOW())
		ON CONFLICT ON CONSTRAINT user_progress_user_lesson_key DO NOTHING`

	if _, err := r.db.Exec(ctx, insert, progress.ID, progress.UserID, progress.LessonID); err != nil {
		if isForeignKeyViolation(err) {
			return models.Progress{}, ErrLessonNotFound
		}
		return models.Progress{}, apperr.FromStore("progress.touch", err)
	}
	return r.Get(ctx, progress.UserID, progress.LessonID)
}

func (r *ProgressRepository) ListByLessons(ctx context.Context, userID string, lessonIDs []string) ([]models.Progress, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 AND lesson_id = ANY($2) ORDER BY created_at, id`,
		userID, lessonIDs,
	)
	if err != nil {
		return nil, apperr.FromStore("progress.list_by_lessons", err)
	}
	defer rows.Close()

	var out []models.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, apperr.FromStore("progress.list_by_lessons", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("progress.list_by_lessons", err)
	}
	return out, nil
}

func (r *ProgressRepository) ListIncomplete(ctx context.Context, userID string, limit int) ([]models.ProgressActivity, error) {
	const query = `
		SELECT up.id, up.user_id, up.lesson_id, up.completed, up.completed_at, up.created_at, m.product_id
		FROM user_progress up
		JOIN lessons l ON l.id = up.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE up.user_id = $1 AND NOT up.completed
		ORDER BY up.created_at DESC, up.id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, apperr.FromStore("progress.list_incomplete", err)
	}
	defer rows.Close()

	var out []models.ProgressActivity
	for rows.Next() {
		var a models.ProgressActivity
		if err := rows.Scan(&a.ID, &a.UserID, &a.LessonID, &a.Completed, &a.CompletedAt, &a.CreatedAt, &a.ProductID); err != nil {
			return nil, apperr.FromStore("progress.list_incomplete", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("progress.list_incomplete", err)
	}
	return out, nil
}

func (r *ProgressRepository) CompletedLessonIDs(ctx context.Context, userID, productID string) ([]string, error) {
	const query = `
		SELECT up.lesson_id
		FROM user_progress up
		JOIN lessons l ON l.id = up.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE up.user_id = $1 AND m.product_id = $2 AND up.completed
		ORDER BY m.order_index, l.order_index`

	rows, err := r.db.Query(ctx, query, userID, productID)
	if err != nil {
		return nil, apperr.FromStore("progress.completed_lessons", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.FromStore("progress.completed_lessons", err)
	}
	return ids, nil
}

func (r *ProgressRepository) CountCompletedByProducts(ctx context.Context, userID string, productIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}

	const query = `
		SELECT m.product_id, COUNT(*)
		FROM user_progress up
		JOIN lessons l ON l.id = up.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE up.user_id = $1 AND up.completed AND m.product_id = ANY($2)
		GROUP BY m.product_id`

	rows, err := r.db.Query(ctx, query, userID, productIDs)
	if err != nil {
		return nil, apperr.FromStore("progress.count_completed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			n         int
		)
		if err := rows.Scan(&productID, &n); err != nil {
			return nil, apperr.FromStore("progress.count_completed", err)
		}
		counts[productID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("progress.count_completed", err)
	}
	return counts, nil
}
