package product

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/storage"
)

var (
	productCols = []string{"product_id", "name", "description", "price", "images", "category_id", "brand", "inventory", "rating", "review_count", "created_at", "updated_at"}
	variantCols = []string{"variant_id", "product_id", "sku", "size", "color", "price", "inventory"}
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewPostgresRepository(db, storage.NewSQLTransactor(db, 0)), mock
}

func TestPostgresGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	vid := uuid.New()

	mock.ExpectQuery("FROM products WHERE product_id = \\$1").WithArgs(12).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(12, "Cat Sweater", "warm", "90.00", "{/img/a.png,/img/b.png}", nil, "Purrfect", 5, 4.5, 2, now, now))
	mock.ExpectQuery("FROM product_variants WHERE product_id = ANY").
		WillReturnRows(sqlmock.NewRows(variantCols).
			AddRow(vid.String(), 12, "SW-S", "S", "red", "100.00", 5))

	p, err := repo.GetByID(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Cat Sweater", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("90")))
	assert.Equal(t, []string{"/img/a.png", "/img/b.png"}, p.Images)
	assert.Equal(t, "/img/a.png", p.FirstImage())
	assert.Nil(t, p.CategoryID)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, vid, p.Variants[0].ID)
	assert.True(t, p.Variants[0].Price.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM products WHERE product_id = \\$1").WithArgs(9).
		WillReturnRows(sqlmock.NewRows(productCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestPostgresListByIDs_SingleVariantQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("WHERE product_id = ANY\\(\\$1\\) ORDER BY product_id").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "A", "", "10.00", "{}", nil, "", 4, 0, 0, now, now).
			AddRow(2, "B", "", "20.00", "{}", 3, "", 0, 0, 0, now, now))
	mock.ExpectQuery("FROM product_variants").
		WillReturnRows(sqlmock.NewRows(variantCols).
			AddRow(uuid.NewString(), 2, "B-1", "M", "", nil, 0))

	products, err := repo.ListByIDs(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Empty(t, products[0].Variants)
	require.NotNil(t, products[1].CategoryID)
	assert.Equal(t, 3, *products[1].CategoryID)
	assert.False(t, products[1].Variants[0].Price.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByIDs_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	products, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_LeavesStockAlone(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	kept := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(12).
		WillReturnRows(sqlmock.NewRows(variantCols).AddRow(kept.String(), 12, "SW-S", "S", "red", nil, 5))
	mock.ExpectExec("UPDATE products\\s+SET name").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM product_variants").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO product_variants .* ON CONFLICT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO product_variants .* ON CONFLICT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SUM\\(inventory\\)").WithArgs(12).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM products WHERE product_id = \\$1").WithArgs(12).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(12, "renamed", "", "90.00", "{}", nil, "", 5, 0, 0, now, now))
	mock.ExpectQuery("FROM product_variants").
		WillReturnRows(sqlmock.NewRows(variantCols).
			AddRow(kept.String(), 12, "SW-S", "S", "red", nil, 5).
			AddRow(uuid.NewString(), 12, "SW-L", "L", "", nil, 0))
	mock.ExpectCommit()

	p := Product{Name: "renamed", Price: decimal.NewFromInt(90), Variants: []Variant{{SKU: "SW-S"}, {SKU: "SW-L"}}}
	p.Normalize()
	out, err := repo.Update(context.Background(), 12, p)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Inventory)
	assert.Len(t, out.Variants, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(variantCols))
	mock.ExpectExec("UPDATE products\\s+SET name").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 77, Product{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate_DuplicateSKU(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO products").WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow(3))
	mock.ExpectExec("INSERT INTO product_variants").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	p := Product{Name: "x", Variants: []Variant{{SKU: "DUP"}}}
	p.Normalize()
	_, err := repo.Create(context.Background(), p)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM products").WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrNotFound)
}
