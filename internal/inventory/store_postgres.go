package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/storage"
)

// PostgresStore moves stock with delta updates only. The product aggregate
// is adjusted by the same delta as the variant in the same statement, so the
// sum invariant holds without re-reading sibling variants.
type PostgresStore struct {
	db *sqlx.DB
}

const (
	productLevelQuery = `
		SELECT name, inventory,
			EXISTS (SELECT 1 FROM product_variants WHERE product_id = $1) AS has_variants
		FROM products
		WHERE product_id = $1
	`
	variantLevelQuery = `SELECT sku, size, color, inventory FROM product_variants WHERE product_id = $1 AND variant_id = $2`

	decrementVariantQuery = `
		WITH v AS (
			UPDATE product_variants
			SET inventory = inventory - $3
			WHERE product_id = $1 AND variant_id = $2 AND inventory >= $3
			RETURNING product_id
		)
		UPDATE products
		SET inventory = inventory - $3, updated_at = now()
		WHERE product_id IN (SELECT product_id FROM v)
	`
	incrementVariantQuery = `
		WITH v AS (
			UPDATE product_variants
			SET inventory = inventory + $3
			WHERE product_id = $1 AND variant_id = $2
			RETURNING product_id
		)
		UPDATE products
		SET inventory = inventory + $3, updated_at = now()
		WHERE product_id IN (SELECT product_id FROM v)
	`
	decrementBaseQuery = `
		UPDATE products
		SET inventory = inventory - $2, updated_at = now()
		WHERE product_id = $1 AND inventory >= $2
			AND NOT EXISTS (SELECT 1 FROM product_variants WHERE product_id = $1)
	`
	incrementBaseQuery = `
		UPDATE products
		SET inventory = inventory + $2, updated_at = now()
		WHERE product_id = $1
			AND NOT EXISTS (SELECT 1 FROM product_variants WHERE product_id = $1)
	`
)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type productLevelRow struct {
	Name        string `db:"name"`
	Inventory   int    `db:"inventory"`
	HasVariants bool   `db:"has_variants"`
}

type variantLevelRow struct {
	SKU       string `db:"sku"`
	Size      string `db:"size"`
	Color     string `db:"color"`
	Inventory int    `db:"inventory"`
}

func (s *PostgresStore) Level(ctx context.Context, productID int, variantID *uuid.UUID) (Level, error) {
	conn := storage.Conn(ctx, s.db)

	var p productLevelRow
	if err := sqlx.GetContext(ctx, conn, &p, productLevelQuery, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Level{}, apperr.NotFoundf("product %d not found", productID)
		}
		return Level{}, errors.Wrapf(err, "read stock of product %d", productID)
	}
	lvl := Level{ProductID: productID, Label: p.Name, HasVariants: p.HasVariants, OnHand: p.Inventory}
	if variantID == nil {
		return lvl, nil
	}

	var v variantLevelRow
	if err := sqlx.GetContext(ctx, conn, &v, variantLevelQuery, productID, *variantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Level{}, apperr.NotFoundf("variant not found for product %d", productID)
		}
		return Level{}, errors.Wrapf(err, "read stock of variant %s", variantID)
	}
	lvl.VariantID = variantID
	lvl.Label = VariantLabel(p.Name, v.SKU, v.Size, v.Color)
	lvl.OnHand = v.Inventory
	return lvl, nil
}

func (s *PostgresStore) Decrement(ctx context.Context, productID int, variantID *uuid.UUID, n int) (bool, error) {
	if variantID != nil {
		return s.exec(ctx, decrementVariantQuery, productID, *variantID, n)
	}
	return s.exec(ctx, decrementBaseQuery, productID, n)
}

func (s *PostgresStore) Increment(ctx context.Context, productID int, variantID *uuid.UUID, n int) (bool, error) {
	if variantID != nil {
		return s.exec(ctx, incrementVariantQuery, productID, *variantID, n)
	}
	return s.exec(ctx, incrementBaseQuery, productID, n)
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "adjust stock")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "adjust stock")
	}
	return affected == 1, nil
}

// VariantLabel names a variant in shortage messages, e.g. "Cat Sweater (M/red)".
func VariantLabel(name, sku, size, color string) string {
	switch {
	case size != "" && color != "":
		return fmt.Sprintf("%s (%s/%s)", name, size, color)
	case size != "":
		return fmt.Sprintf("%s (%s)", name, size)
	case color != "":
		return fmt.Sprintf("%s (%s)", name, color)
	default:
		return fmt.Sprintf("%s (%s)", name, sku)
	}
}
