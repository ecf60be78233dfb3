// Package apperr is the error taxonomy shared by the catalog, entitlement and
// progress services. Repositories classify infrastructure failures into a Kind,
// services add their own, and handlers translate a Kind into an HTTP status.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindInternal     Kind = "internal"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation_error"
	KindAccessDenied Kind = "access_denied"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
)

type Error struct {
	Kind  Kind
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Field != "" && e.Msg == "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so callers can write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Field == "" && t.Msg == "" && t.Err == nil
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrTransient    = &Error{Kind: KindTransient}
)

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func Validation(op, field, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Msg: msg}
}

func AccessDenied(op string) error {
	return &Error{Kind: KindAccessDenied, Op: op, Msg: "no entitlement for this product"}
}

func Forbidden(op string) error {
	return &Error{Kind: KindForbidden, Op: op, Msg: "admin role required"}
}

func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg}
}

func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldOf returns the offending field of a validation error.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// FromStore classifies a storage or network failure. Errors already carrying a
// Kind pass through untouched.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &Error{Kind: KindConflict, Op: op, Msg: conflictMessage(pgErr), Err: err}
		case "23503": // foreign_key_violation
			return &Error{Kind: KindNotFound, Op: op, Msg: "referenced record does not exist", Err: err}
		case "23502", "23514": // not_null_violation, check_violation
			return &Error{Kind: KindValidation, Op: op, Field: pgErr.ColumnName, Err: err}
		case "40001", "40P01", "55P03", "57P01":
			return &Error{Kind: KindTransient, Op: op, Err: err}
		}
		return &Error{Kind: KindInternal, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}

	return &Error{Kind: KindInternal, Op: op, Err: err}
}

func conflictMessage(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "products_slug_key":
		return "slug already in use"
	case "user_products_user_product_key":
		return "user already has access to this product"
	case "user_roles_pkey":
		return "user already has this role"
	case "modules_product_order_key", "lessons_module_order_key":
		return "order_index already used in this parent"
	}
	return "duplicate key"
}
