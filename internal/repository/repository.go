// Package repository holds the Postgres implementations of the catalog,
// entitlement and progress stores together with the contracts the services
// depend on. Every error leaving this package is classified by apperr.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

// DB is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxDB is a DB that can open transactions; *pgxpool.Pool satisfies it.
type TxDB interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	ErrProductNotFound     = apperr.NotFound("", "product not found")
	ErrModuleNotFound      = apperr.NotFound("", "module not found")
	ErrLessonNotFound      = apperr.NotFound("", "lesson not found")
	ErrEntitlementNotFound = apperr.NotFound("", "entitlement not found")
	ErrProgressNotFound    = apperr.NotFound("", "progress not found")
	ErrProfileNotFound     = apperr.NotFound("", "profile not found")
	ErrRoleNotFound        = apperr.NotFound("", "role not assigned")
)

type ProductStore interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (models.Product, error)
	GetBySlug(ctx context.Context, slug string) (models.Product, error)
	Create(ctx context.Context, product models.Product) (models.Product, error)
	Update(ctx context.Context, product models.Product) (models.Product, error)
	Delete(ctx context.Context, id string) error
}

type ModuleStore interface {
	// List returns the modules of productID ordered by order_index, or every
	// module when productID is empty.
	List(ctx context.Context, productID string) ([]models.Module, error)
	GetByID(ctx context.Context, id string) (models.Module, error)
	Create(ctx context.Context, module models.Module) (models.Module, error)
	Update(ctx context.Context, module models.Module) (models.Module, error)
	Delete(ctx context.Context, id string) error
	NextOrderIndex(ctx context.Context, productID string) (int, error)
}

type LessonStore interface {
	// List returns the lessons of moduleID ordered by order_index, or every
	// lesson when moduleID is empty.
	List(ctx context.Context, moduleID string) ([]models.Lesson, error)
	ListByProduct(ctx context.Context, productID string) ([]models.Lesson, error)
	GetByID(ctx context.Context, id string) (models.Lesson, error)
	GetLocation(ctx context.Context, id string) (models.LessonLocation, error)
	Create(ctx context.Context, lesson models.Lesson) (models.Lesson, error)
	Update(ctx context.Context, lesson models.Lesson) (models.Lesson, error)
	Delete(ctx context.Context, id string) error
	NextOrderIndex(ctx context.Context, moduleID string) (int, error)
	CountByProducts(ctx context.Context, productIDs []string) (map[string]int, error)
}

type EntitlementStore interface {
	Exists(ctx context.Context, userID, productID string) (bool, error)
	ProductIDs(ctx context.Context, userID string) ([]string, error)
	Create(ctx context.Context, entitlement models.Entitlement) (models.Entitlement, error)
	// Delete removes the entitlement and returns the row that was removed.
	Delete(ctx context.Context, id string) (models.Entitlement, error)
	List(ctx context.Context) ([]models.EntitlementView, error)
}

type ProgressStore interface {
	Get(ctx context.Context, userID, lessonID string) (models.Progress, error)
	// Upsert stores the completion flag for (UserID, LessonID). ID is only
	// used when no row exists yet.
	Upsert(ctx context.Context, progress models.Progress) (models.Progress, error)
	// Touch inserts an incomplete row when none exists and returns the
	// current row either way.
	Touch(ctx context.Context, progress models.Progress) (models.Progress, error)
	ListByLessons(ctx context.Context, userID string, lessonIDs []string) ([]models.Progress, error)
	ListIncomplete(ctx context.Context, userID string, limit int) ([]models.ProgressActivity, error)
	CompletedLessonIDs(ctx context.Context, userID, productID string) ([]string, error)
	CountCompletedByProducts(ctx context.Context, userID string, productIDs []string) (map[string]int, error)
}

type UserStore interface {
	Roles(ctx context.Context, userID string) ([]models.Role, error)
	List(ctx context.Context) ([]models.UserSummary, error)
	// AddRole fails with NotFound for an unknown profile and Conflict when
	// the role is already assigned.
	AddRole(ctx context.Context, userID string, role models.Role) error
	RemoveRole(ctx context.Context, userID string, role models.Role) error
}

// SweepReport counts the rows removed by an integrity sweep, per table.
type SweepReport struct {
	Modules      int64
	Lessons      int64
	Entitlements int64
	Progress     int64
}

func (r SweepReport) Total() int64 {
	return r.Modules + r.Lessons + r.Entitlements + r.Progress
}

type IntegrityStore interface {
	SweepOrphans(ctx context.Context) (SweepReport, error)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
