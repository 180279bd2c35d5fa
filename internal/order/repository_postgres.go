package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront/internal/storage"
)

type PostgresRepository struct {
	db *sqlx.DB
	tx storage.Transactor
}

const (
	selectOrderQuery = `
		SELECT order_id, order_number, user_id, subtotal, tax, shipping, discount, total,
			status, payment_status, payment_method, COALESCE(payment_ref, '') AS payment_ref,
			payment_details, shipping_address, notes, COALESCE(tracking_number, '') AS tracking_number,
			estimated_delivery, delivered_at, cancelled_at, COALESCE(cancel_reason, '') AS cancel_reason,
			paid_at, inventory_restored_at, created_at, updated_at
		FROM orders`
	getOrderQuery       = selectOrderQuery + ` WHERE order_id = $1`
	lockOrderQuery      = selectOrderQuery + ` WHERE order_id = $1 FOR UPDATE`
	listUserOrdersQuery = selectOrderQuery + ` WHERE user_id = $1 ORDER BY created_at DESC, order_id DESC LIMIT $2 OFFSET $3`
	countUserOrderQuery = `SELECT count(*) FROM orders WHERE user_id = $1`
	listItemsQuery      = `
		SELECT order_id, product_id, variant_id, name, image, size, color, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`
	insertOrderQuery = `
		INSERT INTO orders (order_number, user_id, subtotal, tax, shipping, discount, total,
			status, payment_status, payment_method, payment_ref, payment_details, shipping_address,
			notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13,$14,$15,$16)
		ON CONFLICT (order_number) DO NOTHING
		RETURNING order_id`
	insertItemQuery = `
		INSERT INTO order_items (order_id, position, product_id, variant_id, name, image, size, color, quantity, unit_price, line_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	updateOrderQuery = `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_ref = NULLIF($4, ''), payment_details = $5,
			tracking_number = NULLIF($6, ''), estimated_delivery = $7, delivered_at = $8,
			cancelled_at = $9, cancel_reason = NULLIF($10, ''), paid_at = $11, notes = $12, updated_at = $13
		WHERE order_id = $1`
	markRestoredQuery = `
		UPDATE orders SET inventory_restored_at = $2
		WHERE order_id = $1 AND inventory_restored_at IS NULL`
)

type orderRow struct {
	ID                  int             `db:"order_id"`
	Number              string          `db:"order_number"`
	UserID              int             `db:"user_id"`
	Subtotal            decimal.Decimal `db:"subtotal"`
	Tax                 decimal.Decimal `db:"tax"`
	Shipping            decimal.Decimal `db:"shipping"`
	Discount            decimal.Decimal `db:"discount"`
	Total               decimal.Decimal `db:"total"`
	Status              Status          `db:"status"`
	PaymentStatus       PaymentStatus   `db:"payment_status"`
	PaymentMethod       string          `db:"payment_method"`
	PaymentRef          string          `db:"payment_ref"`
	PaymentDetails      PaymentDetails  `db:"payment_details"`
	ShippingAddress     Address         `db:"shipping_address"`
	Notes               string          `db:"notes"`
	TrackingNumber      string          `db:"tracking_number"`
	EstimatedDelivery   *time.Time      `db:"estimated_delivery"`
	DeliveredAt         *time.Time      `db:"delivered_at"`
	CancelledAt         *time.Time      `db:"cancelled_at"`
	CancelReason        string          `db:"cancel_reason"`
	PaidAt              *time.Time      `db:"paid_at"`
	InventoryRestoredAt *time.Time      `db:"inventory_restored_at"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

func (r orderRow) order() Order {
	return Order{
		ID:                  r.ID,
		Number:              r.Number,
		UserID:              r.UserID,
		Items:               []Item{},
		Subtotal:            r.Subtotal,
		Tax:                 r.Tax,
		Shipping:            r.Shipping,
		Discount:            r.Discount,
		Total:               r.Total,
		Status:              r.Status,
		PaymentStatus:       r.PaymentStatus,
		PaymentMethod:       r.PaymentMethod,
		PaymentRef:          r.PaymentRef,
		PaymentDetails:      r.PaymentDetails,
		ShippingAddress:     r.ShippingAddress,
		Notes:               r.Notes,
		TrackingNumber:      r.TrackingNumber,
		EstimatedDelivery:   r.EstimatedDelivery,
		DeliveredAt:         r.DeliveredAt,
		CancelledAt:         r.CancelledAt,
		CancelReason:        r.CancelReason,
		PaidAt:              r.PaidAt,
		InventoryRestoredAt: r.InventoryRestoredAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type itemRow struct {
	OrderID   int             `db:"order_id"`
	ProductID int             `db:"product_id"`
	VariantID uuid.NullUUID   `db:"variant_id"`
	Name      string          `db:"name"`
	Image     string          `db:"image"`
	Size      string          `db:"size"`
	Color     string          `db:"color"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	LineTotal decimal.Decimal `db:"line_total"`
}

func (r itemRow) item() Item {
	it := Item{
		ProductID: r.ProductID,
		Name:      r.Name,
		Image:     r.Image,
		Size:      r.Size,
		Color:     r.Color,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		LineTotal: r.LineTotal,
	}
	if r.VariantID.Valid {
		id := r.VariantID.UUID
		it.VariantID = &id
	}
	return it
}

func NewPostgresRepository(db *sqlx.DB, tx storage.Transactor) *PostgresRepository {
	return &PostgresRepository{db: db, tx: tx}
}

// Create inserts the order and its items. A taken order number leaves the
// transaction usable and returns ErrDuplicateNumber.
func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := storage.Conn(ctx, r.db)
		err := sqlx.GetContext(ctx, conn, &o.ID, insertOrderQuery,
			o.Number, o.UserID, o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
			string(o.Status), string(o.PaymentStatus), o.PaymentMethod, o.PaymentRef, o.PaymentDetails, o.ShippingAddress,
			o.Notes, o.CreatedAt, o.UpdatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateNumber
		}
		if err != nil {
			return errors.Wrap(err, "insert order")
		}
		for i, it := range o.Items {
			var variantID uuid.NullUUID
			if it.VariantID != nil {
				variantID = uuid.NullUUID{UUID: *it.VariantID, Valid: true}
			}
			if _, err := conn.ExecContext(ctx, insertItemQuery,
				o.ID, i, it.ProductID, variantID, it.Name, it.Image, it.Size, it.Color, it.Quantity, it.UnitPrice, it.LineTotal,
			); err != nil {
				return errors.Wrap(err, "insert order item")
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Order, error) {
	return r.one(ctx, getOrderQuery, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id int) (Order, error) {
	return r.one(ctx, lockOrderQuery, id)
}

func (r *PostgresRepository) one(ctx context.Context, query string, id int) (Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, storage.Conn(ctx, r.db), &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, errors.Wrap(err, "get order")
	}
	out, err := r.withItems(ctx, []orderRow{row})
	if err != nil {
		return Order{}, err
	}
	return out[0], nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]Order, int, error) {
	conn := storage.Conn(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, conn, &total, countUserOrderQuery, userID); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, conn, &rows, listUserOrdersQuery, userID, limit, offset); err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	out, err := r.withItems(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// withItems loads the items of every row with one query.
func (r *PostgresRepository) withItems(ctx context.Context, rows []orderRow) ([]Order, error) {
	out := make([]Order, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(rows))
	index := make(map[int]int, len(rows))
	for i, row := range rows {
		ids = append(ids, int64(row.ID))
		index[row.ID] = i
		out = append(out, row.order())
	}

	var items []itemRow
	if err := sqlx.SelectContext(ctx, storage.Conn(ctx, r.db), &items, listItemsQuery, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	for _, it := range items {
		i := index[it.OrderID]
		out[i].Items = append(out[i].Items, it.item())
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, o Order) (Order, error) {
	res, err := storage.Conn(ctx, r.db).ExecContext(ctx, updateOrderQuery,
		o.ID, string(o.Status), string(o.PaymentStatus), o.PaymentRef, o.PaymentDetails,
		o.TrackingNumber, o.EstimatedDelivery, o.DeliveredAt,
		o.CancelledAt, o.CancelReason, o.PaidAt, o.Notes, o.UpdatedAt,
	)
	if err != nil {
		return Order{}, errors.Wrap(err, "update order")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Order{}, errors.Wrap(err, "update order")
	}
	if affected == 0 {
		return Order{}, ErrNotFound
	}
	return r.GetByID(ctx, o.ID)
}

func (r *PostgresRepository) MarkInventoryRestored(ctx context.Context, id int, at time.Time) (bool, error) {
	res, err := storage.Conn(ctx, r.db).ExecContext(ctx, markRestoredQuery, id, at)
	if err != nil {
		return false, errors.Wrap(err, "mark inventory restored")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "mark inventory restored")
	}
	return affected == 1, nil
}
