package user

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/wichananm65/storefront/internal/storage"
)

type PostgresRepository struct {
	db *sqlx.DB
}

const (
	userColumns = `user_id, email, password_hash, first_name, last_name, phone, role, main_address_id, created_at, updated_at`

	getUserByIDQuery    = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	insertUserQuery     = `
		INSERT INTO users (email, password_hash, first_name, last_name, phone, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + userColumns
	updateUserQuery = `
		UPDATE users
		SET first_name=$2, last_name=$3, phone=$4, main_address_id=$5, updated_at=$6
		WHERE user_id=$1
		RETURNING ` + userColumns
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (User, error) {
	return r.one(ctx, getUserByIDQuery, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, getUserByEmailQuery, email)
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	created, err := r.one(ctx, insertUserQuery,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if storage.IsUniqueViolation(err) {
		return User{}, ErrEmailExists
	}
	return created, err
}

func (r *PostgresRepository) Update(ctx context.Context, u User) (User, error) {
	return r.one(ctx, updateUserQuery, u.ID, u.FirstName, u.LastName, u.Phone, u.MainAddressID, u.UpdatedAt)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (User, error) {
	var u User
	if err := sqlx.GetContext(ctx, storage.Conn(ctx, r.db), &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, errors.Wrap(err, "user query")
	}
	return u, nil
}
