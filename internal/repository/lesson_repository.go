package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

const lessonColumns = `l.id, l.module_id, l.title, l.description, l.video_url, l.thumbnail, l.order_index, l.duration, l.created_at, l.updated_at`

type LessonRepository struct {
	db DB
}

func NewLessonRepository(db DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func lessonDest(l *models.Lesson) []any {
	return []any{
		&l.ID,
		&l.ModuleID,
		&l.Title,
		&l.Description,
		&l.VideoURL,
		&l.Thumbnail,
		&l.OrderIndex,
		&l.Duration,
		&l.CreatedAt,
		&l.UpdatedAt,
	}
}

func (r *LessonRepository) collect(ctx context.Context, op, query string, args ...any) ([]models.Lesson, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(lessonDest(&l)...); err != nil {
			return nil, apperr.FromStore(op, err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return lessons, nil
}

func (r *LessonRepository) List(ctx context.Context, moduleID string) ([]models.Lesson, error) {
	if moduleID == "" {
		return r.collect(ctx, "lessons.list",
			`SELECT `+lessonColumns+` FROM lessons l ORDER BY l.module_id, l.order_index`)
	}
	return r.collect(ctx, "lessons.list",
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.module_id = $1 ORDER BY l.order_index`, moduleID)
}

// ListByProduct returns every lesson of the product in outline order: by
// module order_index, then lesson order_index.
func (r *LessonRepository) ListByProduct(ctx context.Context, productID string) ([]models.Lesson, error) {
	const query = `
		SELECT ` + lessonColumns + `
		FROM lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE m.product_id = $1
		ORDER BY m.order_index, l.order_index`
	return r.collect(ctx, "lessons.list_by_product", query, productID)
}

func (r *LessonRepository) GetByID(ctx context.Context, id string) (models.Lesson, error) {
	var l models.Lesson
	err := r.db.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons l WHERE l.id = $1`, id).Scan(lessonDest(&l)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Lesson{}, ErrLessonNotFound
		}
		return models.Lesson{}, apperr.FromStore("lessons.get", err)
	}
	return l, nil
}

func (r *LessonRepository) GetLocation(ctx context.Context, id string) (models.LessonLocation, error) {
	const query = `
		SELECT ` + lessonColumns + `, m.title, p.id, p.slug
		FROM lessons l
		JOIN modules m ON m.id = l.module_id
		JOIN products p ON p.id = m.product_id
		WHERE l.id = $1`

	var loc models.LessonLocation
	dest := append(lessonDest(&loc.Lesson), &loc.ModuleTitle, &loc.ProductID, &loc.ProductSlug)
	if err := r.db.QueryRow(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LessonLocation{}, ErrLessonNotFound
		}
		return models.LessonLocation{}, apperr.FromStore("lessons.get_location", err)
	}
	return loc, nil
}

func (r *LessonRepository) Create(ctx context.Context, lesson models.Lesson) (models.Lesson, error) {
	const query = `
		INSERT INTO lessons AS l (
			id, module_id, title, description, video_url, thumbnail, order_index, duration, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		RETURNING ` + lessonColumns

	var l models.Lesson
	err := r.db.QueryRow(ctx, query,
		lesson.ID,
		lesson.ModuleID,
		lesson.Title,
		lesson.Description,
		lesson.VideoURL,
		lesson.Thumbnail,
		lesson.OrderIndex,
		lesson.Duration,
	).Scan(lessonDest(&l)...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Lesson{}, ErrModuleNotFound
		}
		return models.Lesson{}, apperr.FromStore("lessons.create", err)
	}
	return l, nil
}

func (r *LessonRepository) Update(ctx context.Context, lesson models.Lesson) (models.Lesson, error) {
	const query = `
		UPDATE lessons AS l
		SET module_id = $2,
		    title = $3,
		    description = $4,
		    video_url = $5,
		    thumbnail = $6,
		    order_index = $7,
		    duration = $8,
		    updated_at = NOW()
		WHERE l.id = $1
		RETURNING ` + lessonColumns

	var l models.Lesson
	err := r.db.QueryRow(ctx, query,
		lesson.ID,
		lesson.ModuleID,
		lesson.Title,
		lesson.Description,
		lesson.VideoURL,
		lesson.Thumbnail,
		lesson.OrderIndex,
		lesson.Duration,
	).Scan(lessonDest(&l)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Lesson{}, ErrLessonNotFound
		}
		if isForeignKeyViolation(err) {
			return models.Lesson{}, ErrModuleNotFound
		}
		return models.Lesson{}, apperr.FromStore("lessons.update", err)
	}
	return l, nil
}

func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStore("lessons.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLessonNotFound
	}
	return nil
}

func (r *LessonRepository) NextOrderIndex(ctx context.Context, moduleID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM lessons WHERE module_id = $1`, moduleID,
	).Scan(&next)
	if err != nil {
		return 0, apperr.FromStore("lessons.next_order_index", err)
	}
	return next, nil
}

func (r *LessonRepository) CountByProducts(ctx context.Context, productIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}

	const query = `
		SELECT m.product_id, COUNT(l.id)
		FROM modules m
		JOIN lessons l ON l.module_id = m.id
		WHERE m.product_id = ANY($1)
		GROUP BY m.product_id`

	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, apperr.FromStore("lessons.count_by_products", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			n         int
		)
		if err := rows.Scan(&productID, &n); err != nil {
			return nil, apperr.FromStore("lessons.count_by_products", err)
		}
		counts[productID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("lessons.count_by_products", err)
	}
	return counts, nil
}
