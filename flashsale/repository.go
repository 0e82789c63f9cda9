// Package flashsale persists time-boxed batch discounts.
package flashsale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/market/driver"
	"goflare.io/market/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	// Create writes the sale and every product row in one transaction.
	// Rows arrive fully formed: discount prices are computed before this
	// call, so no reader ever observes a placeholder discount.
	Create(ctx context.Context, tx pgx.Tx, sale *models.FlashSale) (*models.FlashSale, error)

	GetByID(ctx context.Context, id uint64) (*models.FlashSale, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.FlashSale, error)
	Deactivate(ctx context.Context, tx pgx.Tx, id uint64) error
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

func (r *repository) Create(ctx context.Context, tx pgx.Tx, sale *models.FlashSale) (*models.FlashSale, error) {
	const insertSale = `
INSERT INTO flash_sales (name, starts_at, ends_at, discount_pct, active, created_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, created_at
`
	err := tx.QueryRow(ctx, insertSale,
		sale.Name,
		sale.StartsAt,
		sale.EndsAt,
		sale.DiscountPct,
		sale.Active,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create flash sale", zap.String("name", sale.Name), zap.Error(err))
		return nil, err
	}

	batch := &pgx.Batch{}
	for i := range sale.Products {
		p := &sale.Products[i]
		p.FlashSaleID = sale.ID
		batch.Queue(`
INSERT INTO flash_sale_products (flash_sale_id, product_id, discount_price)
VALUES ($1, $2, $3)
`, p.FlashSaleID, p.ProductID, p.DiscountPrice)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range sale.Products {
		if _, err = results.Exec(); err != nil {
			r.logger.Error("failed to create flash sale product", zap.Uint64("flash_sale_id", sale.ID), zap.Error(err))
			return nil, err
		}
	}

	return sale, nil
}

func (r *repository) GetByID(ctx context.Context, id uint64) (*models.FlashSale, error) {
	const q = `
SELECT id, name, starts_at, ends_at, discount_pct, active, created_at
FROM flash_sales
WHERE id = $1
`
	var sale models.FlashSale
	err := r.conn.QueryRow(ctx, q, id).Scan(
		&sale.ID, &sale.Name, &sale.StartsAt, &sale.EndsAt, &sale.DiscountPct, &sale.Active, &sale.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flash sale %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get flash sale", zap.Uint64("flash_sale_id", id), zap.Error(err))
		return nil, err
	}

	if sale.Products, err = r.listProducts(ctx, id); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (r *repository) ListActive(ctx context.Context, now time.Time) ([]*models.FlashSale, error) {
	const q = `
SELECT id, name, starts_at, ends_at, discount_pct, active, created_at
FROM flash_sales
WHERE active AND starts_at <= $1 AND ends_at > $1
ORDER BY starts_at
`
	rows, err := r.conn.Query(ctx, q, now)
	if err != nil {
		r.logger.Error("failed to list active flash sales", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var sales []*models.FlashSale
	for rows.Next() {
		var sale models.FlashSale
		if err = rows.Scan(&sale.ID, &sale.Name, &sale.StartsAt, &sale.EndsAt, &sale.DiscountPct, &sale.Active, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, &sale)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for _, sale := range sales {
		if sale.Products, err = r.listProducts(ctx, sale.ID); err != nil {
			return nil, err
		}
	}

	return sales, nil
}

func (r *repository) Deactivate(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := tx.Exec(ctx, `UPDATE flash_sales SET active = false WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to deactivate flash sale", zap.Uint64("flash_sale_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flash sale %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *repository) listProducts(ctx context.Context, saleID uint64) ([]models.FlashSaleProduct, error) {
	rows, err := r.conn.Query(ctx, `
SELECT flash_sale_id, product_id, discount_price
FROM flash_sale_products
WHERE flash_sale_id = $1
ORDER BY product_id
`, saleID)
	if err != nil {
		r.logger.Error("failed to list flash sale products", zap.Uint64("flash_sale_id", saleID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var products []models.FlashSaleProduct
	for rows.Next() {
		var p models.FlashSaleProduct
		if err = rows.Scan(&p.FlashSaleID, &p.ProductID, &p.DiscountPrice); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}
