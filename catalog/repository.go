// Package catalog provides read access to the product catalog. This core
// never mutates products except for the stock decrement owned by the order
// repository.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/market/driver"
	"goflare.io/market/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Product, error)

	// VendorsByProductIDs resolves productID -> vendorID for a batch of
	// products in a single query, for order item attribution.
	VendorsByProductIDs(ctx context.Context, ids []string) (map[string]string, error)
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

const productColumns = `id, name, price, discount_price, stock, min_order_quantity, max_order_quantity, vendor_id, images`

func (r *repository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	q := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	product, err := scanProduct(r.conn.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get product", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}

	return product, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []string) ([]*models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1)`, productColumns)

	rows, err := r.conn.Query(ctx, q, ids)
	if err != nil {
		r.logger.Error("failed to list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	products := make([]*models.Product, 0, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	return products, rows.Err()
}

func (r *repository) VendorsByProductIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	rows, err := r.conn.Query(ctx, `SELECT id, vendor_id FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		r.logger.Error("failed to resolve vendors", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	vendors := make(map[string]string, len(ids))
	for rows.Next() {
		var productID, vendorID string
		if err = rows.Scan(&productID, &vendorID); err != nil {
			return nil, err
		}
		vendors[productID] = vendorID
	}

	return vendors, rows.Err()
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p        models.Product
		minQty   *int64
		maxQty   *int64
		stock    int64
		discount *float64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &discount, &stock, &minQty, &maxQty, &p.VendorID, &p.Images); err != nil {
		return nil, err
	}

	p.DiscountPrice = discount
	p.Stock = uint64(stock)
	if minQty != nil {
		v := uint64(*minQty)
		p.MinOrderQty = &v
	}
	if maxQty != nil {
		v := uint64(*maxQty)
		p.MaxOrderQty = &v
	}

	return &p, nil
}
