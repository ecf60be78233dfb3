package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

const productColumns = `id, name, slug, description, cover_image, thumbnail, category, featured, created_at, updated_at`

type ProductRepository struct {
	db DB
}

func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.CoverImage,
		&p.Thumbnail,
		&p.Category,
		&p.Featured,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.FeaturedOnly {
		where = append(where, "featured")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromStore("products.list", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.FromStore("products.list", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("products.list", err)
	}
	return products, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (models.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, apperr.FromStore("products.get", err)
	}
	return p, nil
}

func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (models.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, apperr.FromStore("products.get_by_slug", err)
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, product models.Product) (models.Product, error) {
	const query = `
		INSERT INTO products (
			id, name, slug, description, cover_image, thumbnail, category, featured, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		RETURNING ` + productColumns

	p, err := scanProduct(r.db.QueryRow(ctx, query,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.CoverImage,
		product.Thumbnail,
		product.Category,
		product.Featured,
	))
	if err != nil {
		return models.Product{}, apperr.FromStore("products.create", err)
	}
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, product models.Product) (models.Product, error) {
	const query = `
		UPDATE products
		SET name = $2,
		    slug = $3,
		    description = $4,
		    cover_image = $5,
		    thumbnail = $6,
		    category = $7,
		    featured = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	p, err := scanProduct(r.db.QueryRow(ctx, query,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.CoverImage,
		product.Thumbnail,
		product.Category,
		product.Featured,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, apperr.FromStore("products.update", err)
	}
	return p, nil
}

// Delete removes the product; modules, lessons, entitlements and progress
// rows go with it through the foreign key cascades.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStore("products.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
