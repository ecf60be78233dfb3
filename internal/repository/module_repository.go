package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

const moduleColumns = `id, product_id, title, description, order_index, created_at`

type ModuleRepository struct {
	db DB
}

func NewModuleRepository(db DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

func scanModule(row pgx.Row) (models.Module, error) {
	var m models.Module
	err := row.Scan(&m.ID, &m.ProductID, &m.Title, &m.Description, &m.OrderIndex, &m.CreatedAt)
	return m, err
}

func (r *ModuleRepository) List(ctx context.Context, productID string) ([]models.Module, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if productID == "" {
		rows, err = r.db.Query(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY product_id, order_index`)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+moduleColumns+` FROM modules WHERE product_id = $1 ORDER BY order_index`, productID)
	}
	if err != nil {
		return nil, apperr.FromStore("modules.list", err)
	}
	defer rows.Close()

	var modules []models.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, apperr.FromStore("modules.list", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("modules.list", err)
	}
	return modules, nil
}

func (r *ModuleRepository) GetByID(ctx context.Context, id string) (models.Module, error) {
	m, err := scanModule(r.db.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Module{}, ErrModuleNotFound
		}
		return models.Module{}, apperr.FromStore("modules.get", err)
	}
	return m, nil
}

func (r *ModuleRepository) Create(ctx context.Context, module models.Module) (models.Module, error) {
	const query = `
		INSERT INTO modules (id, product_id, title, description, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + moduleColumns

	m, err := scanModule(r.db.QueryRow(ctx, query,
		module.ID,
		module.ProductID,
		module.Title,
		module.Description,
		module.OrderIndex,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Module{}, ErrProductNotFound
		}
		return models.Module{}, apperr.FromStore("modules.create", err)
	}
	return m, nil
}

func (r *ModuleRepository) Update(ctx context.Context, module models.Module) (models.Module, error) {
	const query = `
		UPDATE modules
		SET product_id = $2,
		    title = $3,
		    description = $4,
		    order_index = $5
		WHERE id = $1
		RETURNING ` + moduleColumns

	m, err := scanModule(r.db.QueryRow(ctx, query,
		module.ID,
		module.ProductID,
		module.Title,
		module.Description,
		module.OrderIndex,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Module{}, ErrModuleNotFound
		}
		return models.Module{}, apperr.FromStore("modules.update", err)
	}
	return m, nil
}

func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStore("modules.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func (r *ModuleRepository) NextOrderIndex(ctx context.Context, productID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM modules WHERE product_id = $1`, productID,
	).Scan(&next)
	if err != nil {
		return 0, apperr.FromStore("modules.next_order_index", err)
	}
	return next, nil
}
