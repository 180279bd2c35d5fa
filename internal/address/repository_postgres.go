package address

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/wichananm65/storefront/internal/storage"
)

// PostgresRepository stores addresses in the address table, scoped by
// user_id on every statement.
type PostgresRepository struct {
	db *sqlx.DB
}

const (
	addressColumns = `address_id, user_id, address_desc, phone, address_name, created_at, updated_at`

	listAddressQuery   = `SELECT ` + addressColumns + ` FROM address WHERE user_id = $1 ORDER BY address_id`
	getAddressQuery    = `SELECT ` + addressColumns + ` FROM address WHERE user_id = $1 AND address_id = $2`
	insertAddressQuery = `
		INSERT INTO address (user_id, address_desc, phone, address_name)
		VALUES ($1,$2,$3,$4)
		RETURNING ` + addressColumns
	updateAddressQuery = `
		UPDATE address
		SET address_desc=$3, phone=$4, address_name=$5, updated_at=now()
		WHERE user_id=$1 AND address_id=$2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM address WHERE user_id=$1 AND address_id=$2`
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]Address, error) {
	out := make([]Address, 0)
	if err := sqlx.SelectContext(ctx, storage.Conn(ctx, r.db), &out, listAddressQuery, userID); err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, addressID int) (Address, error) {
	return r.one(ctx, getAddressQuery, userID, addressID)
}

func (r *PostgresRepository) Add(ctx context.Context, userID int, in Input) (Address, error) {
	return r.one(ctx, insertAddressQuery, userID, in.AddressDesc, in.Phone, in.AddressName)
}

func (r *PostgresRepository) Update(ctx context.Context, userID, addressID int, in Input) (Address, error) {
	return r.one(ctx, updateAddressQuery, userID, addressID, in.AddressDesc, in.Phone, in.AddressName)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, addressID int) error {
	res, err := storage.Conn(ctx, r.db).ExecContext(ctx, deleteAddressQuery, userID, addressID)
	if err != nil {
		return errors.Wrap(err, "delete address")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete address")
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Address, error) {
	var a Address
	if err := sqlx.GetContext(ctx, storage.Conn(ctx, r.db), &a, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Address{}, ErrNotFound
		}
		return Address{}, errors.Wrap(err, "address")
	}
	return a, nil
}
