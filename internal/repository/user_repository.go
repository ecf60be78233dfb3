package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

// UserRepository reads profiles and manages role assignments. Profiles are
// owned by the identity provider and never written here.
type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Roles(ctx context.Context, userID string) ([]models.Role, error) {
	rows, err := r.db.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, apperr.FromStore("users.roles", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[models.Role])
	if err != nil {
		return nil, apperr.FromStore("users.roles", err)
	}
	return roles, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.UserSummary, error) {
	const query = `
		SELECT p.id, p.name, p.profile_picture, p.created_at,
		       COALESCE(array_agg(ur.role ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')
		FROM profiles p
		LEFT JOIN user_roles ur ON ur.user_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.FromStore("users.list", err)
	}
	defer rows.Close()

	var users []models.UserSummary
	for rows.Next() {
		var (
			u     models.UserSummary
			roles []string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.ProfilePicture, &u.CreatedAt, &roles); err != nil {
			return nil, apperr.FromStore("users.list", err)
		}
		for _, role := range roles {
			u.Roles = append(u.Roles, models.Role(role))
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("users.list", err)
	}
	return users, nil
}

func (r *UserRepository) AddRole(ctx context.Context, userID string, role models.Role) error {
	const query = `
		INSERT INTO user_roles (user_id, role)
		SELECT id, $2 FROM profiles WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID, string(role))
	if err != nil {
		return apperr.FromStore("users.add_role", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *UserRepository) RemoveRole(ctx context.Context, userID string, role models.Role) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role))
	if err != nil {
		return apperr.FromStore("users.remove_role", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}
