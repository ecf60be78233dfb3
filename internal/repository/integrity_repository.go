package repository

import (
	"context"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
)

// IntegrityRepository removes rows whose parent is gone. With the cascading
// foreign keys in place the sweep finds nothing; it exists for data loaded
// around the constraints (bulk imports, restored dumps).
type IntegrityRepository struct {
	db TxDB
}

func NewIntegrityRepository(db TxDB) *IntegrityRepository {
	return &IntegrityRepository{db: db}
}

func (r *IntegrityRepository) SweepOrphans(ctx context.Context) (SweepReport, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return SweepReport{}, apperr.FromStore("integrity.sweep", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var report SweepReport
	steps := []struct {
		query string
		dst   *int64
	}{
		{`DELETE FROM modules m WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.id = m.product_id)`, &report.Modules},
		{`DELETE FROM lessons l WHERE NOT EXISTS (SELECT 1 FROM modules m WHERE m.id = l.module_id)`, &report.Lessons},
		{`DELETE FROM user_products up WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.id = up.product_id)`, &report.Entitlements},
		{`DELETE FROM user_progress up WHERE NOT EXISTS (SELECT 1 FROM lessons l WHERE l.id = up.lesson_id)`, &report.Progress},
	}
	for _, step := range steps {
		tag, err := tx.Exec(ctx, step.query)
		if err != nil {
			return SweepReport{}, apperr.FromStore("integrity.sweep", err)
		}
		*step.dst = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return SweepReport{}, apperr.FromStore("integrity.sweep", err)
	}
	return report, nil
}
