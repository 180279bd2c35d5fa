package product

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/storage"
)

type PostgresRepository struct {
	db *sqlx.DB
	tx storage.Transactor
}

const (
	productColumns = `product_id, name, description, price, images, category_id, brand, inventory, rating, review_count, created_at, updated_at`

	listProductsQuery   = `SELECT ` + productColumns + ` FROM products ORDER BY product_id`
	listProductsByIDs   = `SELECT ` + productColumns + ` FROM products WHERE product_id = ANY($1) ORDER BY product_id`
	getProductByIDQuery = `SELECT ` + productColumns + ` FROM products WHERE product_id = $1`
	listVariantsQuery   = `SELECT variant_id, product_id, sku, size, color, price, inventory FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, position`
	lockVariantsQuery   = `SELECT variant_id, product_id, sku, size, color, price, inventory FROM product_variants WHERE product_id = $1 ORDER BY variant_id FOR UPDATE`
	insertProductQuery  = `
		INSERT INTO products (name, description, price, images, category_id, brand, inventory)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING product_id
	`
	insertVariantQuery = `
		INSERT INTO product_variants (variant_id, product_id, position, sku, size, color, price, inventory)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	upsertVariantQuery = `
		INSERT INTO product_variants (variant_id, product_id, position, sku, size, color, price, inventory)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0)
		ON CONFLICT (variant_id) DO UPDATE
		SET position = EXCLUDED.position,
			sku = EXCLUDED.sku,
			size = EXCLUDED.size,
			color = EXCLUDED.color,
			price = EXCLUDED.price
	`
	deleteStaleVariantsQuery = `DELETE FROM product_variants WHERE product_id = $1 AND NOT (variant_id = ANY($2))`
	updateProductQuery       = `
		UPDATE products
		SET name = $2,
			description = $3,
			price = $4,
			images = $5,
			category_id = $6,
			brand = $7,
			updated_at = now()
		WHERE product_id = $1
	`
	sumVariantsQuery = `
		UPDATE products
		SET inventory = (SELECT COALESCE(SUM(inventory), 0) FROM product_variants WHERE product_id = $1)
		WHERE product_id = $1
	`
	deleteProductQuery = `DELETE FROM products WHERE product_id = $1`
)

type productRow struct {
	ID          int             `db:"product_id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Images      pq.StringArray  `db:"images"`
	CategoryID  *int            `db:"category_id"`
	Brand       string          `db:"brand"`
	Inventory   int             `db:"inventory"`
	Rating      float64         `db:"rating"`
	ReviewCount int             `db:"review_count"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type variantRow struct {
	ID        uuid.UUID           `db:"variant_id"`
	ProductID int                 `db:"product_id"`
	SKU       string              `db:"sku"`
	Size      string              `db:"size"`
	Color     string              `db:"color"`
	Price     decimal.NullDecimal `db:"price"`
	Inventory int                 `db:"inventory"`
}

func (v variantRow) variant() Variant {
	return Variant{ID: v.ID, SKU: v.SKU, Size: v.Size, Color: v.Color, Price: v.Price, Inventory: v.Inventory}
}

func NewPostgresRepository(db *sqlx.DB, tx storage.Transactor) *PostgresRepository {
	return &PostgresRepository{db: db, tx: tx}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, storage.Conn(ctx, r.db), &rows, listProductsQuery); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return r.withVariants(ctx, rows)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	var rows []productRow
	if err := sqlx.SelectContext(ctx, storage.Conn(ctx, r.db), &rows, listProductsByIDs, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "list products by id")
	}
	return r.withVariants(ctx, rows)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	var row productRow
	if err := sqlx.GetContext(ctx, storage.Conn(ctx, r.db), &row, getProductByIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, errors.Wrapf(err, "get product %d", id)
	}
	out, err := r.withVariants(ctx, []productRow{row})
	if err != nil {
		return Product{}, err
	}
	return out[0], nil
}

// withVariants loads the variants of every row with a single query.
func (r *PostgresRepository) withVariants(ctx context.Context, rows []productRow) ([]Product, error) {
	out := make([]Product, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]int, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var vrows []variantRow
	if err := sqlx.SelectContext(ctx, storage.Conn(ctx, r.db), &vrows, listVariantsQuery, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	byProduct := make(map[int][]Variant, len(rows))
	for _, v := range vrows {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v.variant())
	}
	for _, row := range rows {
		variants := byProduct[row.ID]
		if variants == nil {
			variants = []Variant{}
		}
		images := []string(row.Images)
		if images == nil {
			images = []string{}
		}
		out = append(out, Product{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Price:       row.Price,
			Images:      images,
			CategoryID:  row.CategoryID,
			Brand:       row.Brand,
			Variants:    variants,
			Inventory:   row.Inventory,
			Rating:      row.Rating,
			ReviewCount: row.ReviewCount,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	var id int
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := storage.Conn(ctx, r.db)
		if err := sqlx.GetContext(ctx, conn, &id, insertProductQuery,
			p.Name, p.Description, p.Price, pq.Array(p.Images), p.CategoryID, p.Brand, p.Inventory,
		); err != nil {
			return errors.Wrap(err, "insert product")
		}
		for i, v := range p.Variants {
			if _, err := conn.ExecContext(ctx, insertVariantQuery,
				v.ID, id, i, v.SKU, v.Size, v.Color, v.Price, v.Inventory,
			); err != nil {
				return skuError(err, v.SKU)
			}
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return r.GetByID(ctx, id)
}

// Update rewrites catalog fields. Variant rows are locked first, in id order,
// so the edit queues behind in-flight reservations instead of crossing them.
func (r *PostgresRepository) Update(ctx context.Context, id int, p Product) (Product, error) {
	var out Product
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := storage.Conn(ctx, r.db)

		var locked []variantRow
		if err := sqlx.SelectContext(ctx, conn, &locked, lockVariantsQuery, id); err != nil {
			return errors.Wrap(err, "lock variants")
		}
		res, err := conn.ExecContext(ctx, updateProductQuery,
			id, p.Name, p.Description, p.Price, pq.Array(p.Images), p.CategoryID, p.Brand,
		)
		if err != nil {
			return errors.Wrapf(err, "update product %d", id)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrapf(err, "update product %d", id)
		}
		if affected == 0 {
			return ErrNotFound
		}

		stored := Product{Variants: make([]Variant, len(locked))}
		for i, v := range locked {
			stored.Variants[i] = v.variant()
		}
		next := carryStock(stored, p)

		keep := make([]string, len(next.Variants))
		for i, v := range next.Variants {
			keep[i] = v.ID.String()
		}
		if _, err := conn.ExecContext(ctx, deleteStaleVariantsQuery, id, pq.Array(keep)); err != nil {
			return errors.Wrap(err, "delete variants")
		}
		for i, v := range next.Variants {
			if _, err := conn.ExecContext(ctx, upsertVariantQuery,
				v.ID, id, i, v.SKU, v.Size, v.Color, v.Price,
			); err != nil {
				return skuError(err, v.SKU)
			}
		}
		if len(next.Variants) > 0 {
			if _, err := conn.ExecContext(ctx, sumVariantsQuery, id); err != nil {
				return errors.Wrap(err, "recompute inventory")
			}
		}

		out, err = r.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int) error {
	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, deleteProductQuery, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func skuError(err error, sku string) error {
	if storage.IsUniqueViolation(err) {
		return apperr.Invalidf("duplicate sku %q", sku)
	}
	return errors.Wrapf(err, "write variant %s", sku)
}
