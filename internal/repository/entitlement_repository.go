package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

type EntitlementRepository struct {
	db DB
}

func NewEntitlementRepository(db DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_products WHERE user_id = $1 AND product_id = $2)`,
		userID, productID,
	).Scan(&exists)
	if err != nil {
		return false, apperr.FromStore("entitlements.exists", err)
	}
	return exists, nil
}

func (r *EntitlementRepository) ProductIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT product_id FROM user_products WHERE user_id = $1 ORDER BY purchased_at, product_id`, userID)
	if err != nil {
		return nil, apperr.FromStore("entitlements.product_ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.FromStore("entitlements.product_ids", err)
	}
	return ids, nil
}

func (r *EntitlementRepository) Create(ctx context.Context, entitlement models.Entitlement) (models.Entitlement, error) {
	const query = `
		INSERT INTO user_products (id, user_id, product_id, purchased_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, user_id, product_id, purchased_at`

	var e models.Entitlement
	err := r.db.QueryRow(ctx, query, entitlement.ID, entitlement.UserID, entitlement.ProductID).
		Scan(&e.ID, &e.UserID, &e.ProductID, &e.PurchasedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Entitlement{}, ErrProductNotFound
		}
		return models.Entitlement{}, apperr.FromStore("entitlements.create", err)
	}
	return e, nil
}

func (r *EntitlementRepository) Delete(ctx context.Context, id string) (models.Entitlement, error) {
	var e models.Entitlement
	err := r.db.QueryRow(ctx,
		`DELETE FROM user_products WHERE id = $1 RETURNING id, user_id, product_id, purchased_at`, id,
	).Scan(&e.ID, &e.UserID, &e.ProductID, &e.PurchasedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Entitlement{}, ErrEntitlementNotFound
		}
		return models.Entitlement{}, apperr.FromStore("entitlements.delete", err)
	}
	return e, nil
}

func (r *EntitlementRepository) List(ctx context.Context) ([]models.EntitlementView, error) {
	const query = `
		SELECT up.id, up.user_id, up.product_id, up.purchased_at, p.name, pr.name
		FROM user_products up
		JOIN products p ON p.id = up.product_id
		LEFT JOIN profiles pr ON pr.id = up.user_id
		ORDER BY up.purchased_at DESC, up.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.FromStore("entitlements.list", err)
	}
	defer rows.Close()

	var views []models.EntitlementView
	for rows.Next() {
		var v models.EntitlementView
		if err := rows.Scan(&v.ID, &v.UserID, &v.ProductID, &v.PurchasedAt, &v.ProductName, &v.UserName); err != nil {
			return nil, apperr.FromStore("entitlements.list", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("entitlements.list", err)
	}
	return views, nil
}
