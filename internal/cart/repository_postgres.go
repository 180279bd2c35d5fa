package cart

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront/internal/storage"
)

type PostgresRepository struct {
	db *sqlx.DB
	tx storage.Transactor
}

const (
	cartColumns = `cart_id, user_id, session_id, subtotal, item_count, expires_at, created_at, updated_at`

	getCartByIDQuery      = `SELECT ` + cartColumns + ` FROM carts WHERE cart_id = $1`
	getCartByUserQuery    = `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
	getCartBySessionQuery = `SELECT ` + cartColumns + ` FROM carts WHERE session_id = $1`
	listItemsQuery        = `
		SELECT product_id, variant_id, quantity, price, name, image, size, color
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`
	upsertCartQuery = `
		INSERT INTO carts (cart_id, user_id, session_id, subtotal, item_count, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (cart_id) DO UPDATE
		SET subtotal = EXCLUDED.subtotal,
			item_count = EXCLUDED.item_count,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`
	clearItemsQuery = `DELETE FROM cart_items WHERE cart_id = $1`
	insertItemQuery = `
		INSERT INTO cart_items (cart_id, position, product_id, variant_id, quantity, price, name, image, size, color)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	deleteCartQuery        = `DELETE FROM carts WHERE cart_id = $1`
	deleteExpiredCartQuery = `DELETE FROM carts WHERE expires_at <= $1`
)

type cartRow struct {
	ID        uuid.UUID       `db:"cart_id"`
	UserID    sql.NullInt64   `db:"user_id"`
	SessionID sql.NullString  `db:"session_id"`
	Subtotal  decimal.Decimal `db:"subtotal"`
	ItemCount int             `db:"item_count"`
	ExpiresAt time.Time       `db:"expires_at"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type itemRow struct {
	ProductID int             `db:"product_id"`
	VariantID uuid.NullUUID   `db:"variant_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	Name      string          `db:"name"`
	Image     string          `db:"image"`
	Size      string          `db:"size"`
	Color     string          `db:"color"`
}

func NewPostgresRepository(db *sqlx.DB, tx storage.Transactor) *PostgresRepository {
	return &PostgresRepository{db: db, tx: tx}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Cart, error) {
	return r.get(ctx, getCartByIDQuery, id)
}

func (r *PostgresRepository) GetByOwner(ctx context.Context, owner Owner) (Cart, error) {
	switch o := owner.(type) {
	case UserOwner:
		return r.get(ctx, getCartByUserQuery, o.UserID)
	case GuestOwner:
		return r.get(ctx, getCartBySessionQuery, o.SessionID)
	default:
		return Cart{}, ErrNotFound
	}
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (Cart, error) {
	conn := storage.Conn(ctx, r.db)

	var row cartRow
	if err := sqlx.GetContext(ctx, conn, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, errors.Wrap(err, "get cart")
	}
	var items []itemRow
	if err := sqlx.SelectContext(ctx, conn, &items, listItemsQuery, row.ID); err != nil {
		return Cart{}, errors.Wrap(err, "list cart items")
	}

	c := Cart{
		ID:        row.ID,
		Items:     make([]Item, 0, len(items)),
		Subtotal:  row.Subtotal,
		ItemCount: row.ItemCount,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.UserID.Valid {
		c.Owner = UserOwner{UserID: int(row.UserID.Int64)}
	} else {
		c.Owner = GuestOwner{SessionID: row.SessionID.String}
	}
	for _, it := range items {
		item := Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Name:      it.Name,
			Image:     it.Image,
			Size:      it.Size,
			Color:     it.Color,
		}
		if it.VariantID.Valid {
			id := it.VariantID.UUID
			item.VariantID = &id
		}
		c.Items = append(c.Items, item)
	}
	return c, nil
}

func (r *PostgresRepository) Save(ctx context.Context, c Cart) (Cart, error) {
	var userID sql.NullInt64
	var sessionID sql.NullString
	switch o := c.Owner.(type) {
	case UserOwner:
		userID = sql.NullInt64{Int64: int64(o.UserID), Valid: true}
	case GuestOwner:
		sessionID = sql.NullString{String: o.SessionID, Valid: true}
	default:
		return Cart{}, errors.New("cart has no owner")
	}

	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := storage.Conn(ctx, r.db)
		if _, err := conn.ExecContext(ctx, upsertCartQuery,
			c.ID, userID, sessionID, c.Subtotal, c.ItemCount, c.ExpiresAt, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "save cart")
		}
		if _, err := conn.ExecContext(ctx, clearItemsQuery, c.ID); err != nil {
			return errors.Wrap(err, "clear cart items")
		}
		for i, it := range c.Items {
			var variantID uuid.NullUUID
			if it.VariantID != nil {
				variantID = uuid.NullUUID{UUID: *it.VariantID, Valid: true}
			}
			if _, err := conn.ExecContext(ctx, insertItemQuery,
				c.ID, i, it.ProductID, variantID, it.Quantity, it.Price, it.Name, it.Image, it.Size, it.Color,
			); err != nil {
				return errors.Wrap(err, "insert cart item")
			}
		}
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := storage.Conn(ctx, r.db).ExecContext(ctx, deleteCartQuery, id)
	if err != nil {
		return errors.Wrap(err, "delete cart")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete cart")
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := storage.Conn(ctx, r.db).ExecContext(ctx, deleteExpiredCartQuery, now)
	if err != nil {
		return 0, errors.Wrap(err, "purge carts")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "purge carts")
	}
	return int(affected), nil
}
