// Package postgres implements simplestore.UserRepository on PostgreSQL via pgx.
//
// The repository expects a users table shaped like SchemaSQL. Every statement
// binds caller input as parameters; the only text assembled at runtime is the
// SET list of an update, built from the closed simplestore.UserFields set.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-store/pkg/simplestore"
)

// SchemaSQL is the table layout the repository reads and writes.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_email_key UNIQUE (email)
)`

const userColumns = "id, email, name, created_at, updated_at"

// DBTX is an interface that allows us to use either a database connection or a transaction.
// Exec, Query and QueryRow are the execute, all-rows and first-row modes.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplestore.UserRepository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// handlePostgresError maps driver failures onto the simplestore taxonomy
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simplestore.ErrUserNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &simplestore.UniqueViolationError{
				Constraint: pgErr.ConstraintName,
				Field:      fieldForConstraint(pgErr.ConstraintName),
				Err:        err,
			}
		case pgerrcode.UndefinedTable:
			return fmt.Errorf("table does not exist - database migration required: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func fieldForConstraint(constraint string) string {
	if strings.Contains(constraint, string(simplestore.UserFieldEmail)) {
		return string(simplestore.UserFieldEmail)
	}
	return ""
}

func (r *Repository) CreateUser(ctx context.Context, email, name string) (*simplestore.User, error) {
	query := `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, email, name))
	if err != nil {
		return nil, r.handlePostgresError("create user", err)
	}
	return user, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*simplestore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get user", err)
	}
	return user, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*simplestore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list users", err)
	}
	defer rows.Close()

	users := []*simplestore.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.handlePostgresError("list users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list users", err)
	}

	return users, nil
}

func (r *Repository) UpdateUser(ctx context.Context, id int64, patch simplestore.UserPatch) (*simplestore.User, error) {
	query, args, err := buildUpdateQuery(id, patch)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, r.handlePostgresError("update user", err)
	}
	return user, nil
}

func (r *Repository) UserExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.handlePostgresError("check user", err)
	}
	return true, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return simplestore.ErrUserNotFound
	}
	return nil
}

// buildUpdateQuery turns a field patch into a parameterized UPDATE that
// touches only the present fields and always refreshes updated_at.
func buildUpdateQuery(id int64, patch simplestore.UserPatch) (string, []interface{}, error) {
	if len(patch) == 0 {
		return "", nil, simplestore.NewValidationError("", "No fields to update")
	}
	if !patch.Valid() {
		return "", nil, simplestore.NewValidationError("", "Unknown field in update")
	}

	sets := make([]string, 0, len(patch)+1)
	args := make([]interface{}, 0, len(patch)+1)
	for _, field := range simplestore.UserFields {
		value, ok := patch[field]
		if !ok {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), userColumns)
	return query, args, nil
}

func scanUser(row pgx.Row) (*simplestore.User, error) {
	var user simplestore.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
