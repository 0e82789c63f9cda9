// Package order persists orders, order items and the stock adjustments that
// accompany them.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/market/driver"
	"goflare.io/market/models"
	"goflare.io/market/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	// CreateOrder writes the order and all of its items inside the given
	// transaction. The caller decides what else commits atomically with it.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *models.Order) (*models.Order, error)

	// GetOrder and ListOrderItems read through tx when one is given so a
	// transaction sees its own view; a nil tx reads through the pool.
	GetOrder(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Order, error)
	GetOrderByReference(ctx context.Context, reference string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, limit, offset uint64) ([]*models.Order, error)
	ListOrderItems(ctx context.Context, tx pgx.Tx, orderID uint64) ([]models.OrderItem, error)

	// UpdateOrderStatus moves the order from one status to another. It
	// fails with models.ErrConflict when the row no longer holds the
	// expected status, so racing transitions cannot both apply.
	UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uint64, from, to enum.OrderStatus) error

	// ListStockDecrements returns the out-movements recorded against an
	// order, mirroring exactly what its creation took from stock.
	ListStockDecrements(ctx context.Context, tx pgx.Tx, orderID uint64) ([]models.StockMovement, error)

	// DecrementStock conditionally takes qty units off a product's stock.
	// It fails with models.ErrInsufficientStock when fewer units remain,
	// leaving the transaction to roll back.
	DecrementStock(ctx context.Context, tx pgx.Tx, productID string, qty uint64, refType enum.StockMovementReferenceType, refID uint64) error

	// RestoreStock returns qty units to a product's stock, used when a
	// cancellable order is cancelled.
	RestoreStock(ctx context.Context, tx pgx.Tx, productID string, qty uint64, refID uint64) error
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

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repository) q(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.conn
}

func (r *repository) CreateOrder(ctx context.Context, tx pgx.Tx, order *models.Order) (*models.Order, error) {
	const insertOrder = `
INSERT INTO orders (reference, user_id, status, currency, total, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
RETURNING id, created_at, updated_at
`
	err := tx.QueryRow(ctx, insertOrder,
		order.Reference,
		order.UserID,
		string(order.Status),
		string(order.Currency),
		order.Total,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	const insertItem = `
INSERT INTO order_items (order_id, product_id, vendor_id, quantity, unit_price, size, color)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`
	batch := &pgx.Batch{}
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		batch.Queue(insertItem, item.OrderID, item.ProductID, item.VendorID, item.Quantity, item.UnitPrice, item.Size, item.Color)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range order.Items {
		if err = results.QueryRow().Scan(&order.Items[i].ID); err != nil {
			r.logger.Error("failed to create order item",
				zap.Uint64("order_id", order.ID),
				zap.String("product_id", order.Items[i].ProductID),
				zap.Error(err))
			return nil, err
		}
	}

	return order, nil
}

const orderColumns = `id, reference, user_id, status, currency, total, created_at, updated_at`

func (r *repository) GetOrder(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Order, error) {
	q := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	return r.fetchOrder(ctx, r.q(tx), q, orderID)
}

func (r *repository) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	q := fmt.Sprintf(`SELECT %s FROM orders WHERE reference = $1`, orderColumns)
	return r.fetchOrder(ctx, r.conn, q, reference)
}

func (r *repository) fetchOrder(ctx context.Context, conn querier, q string, arg any) (*models.Order, error) {
	order, err := scanOrder(conn.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get order", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *repository) ListOrders(ctx context.Context, userID string, limit, offset uint64) ([]*models.Order, error) {
	q := fmt.Sprintf(`
SELECT %s FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, orderColumns)

	rows, err := r.conn.Query(ctx, q, userID, limit, offset)
	if err != nil {
		r.logger.Error("failed to list orders", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

func (r *repository) ListOrderItems(ctx context.Context, tx pgx.Tx, orderID uint64) ([]models.OrderItem, error) {
	const q = `
SELECT id, order_id, product_id, vendor_id, quantity, unit_price, size, color
FROM order_items
WHERE order_id = $1
ORDER BY id
`
	rows, err := r.q(tx).Query(ctx, q, orderID)
	if err != nil {
		r.logger.Error("failed to list order items", zap.Uint64("order_id", orderID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err = rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VendorID, &item.Quantity, &item.UnitPrice, &item.Size, &item.Color); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *repository) UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uint64, from, to enum.OrderStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		orderID, string(from), string(to))
	if err != nil {
		r.logger.Error("failed to update order status", zap.Uint64("order_id", orderID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the order is gone or a concurrent transition won.
		return fmt.Errorf("order %d no longer %s: %w", orderID, from, models.ErrConflict)
	}
	return nil
}

func (r *repository) ListStockDecrements(ctx context.Context, tx pgx.Tx, orderID uint64) ([]models.StockMovement, error) {
	const q = `
SELECT id, product_id, quantity, type, reference_type, reference_id, created_at
FROM stock_movements
WHERE reference_id = $1 AND type = $2
ORDER BY id
`
	rows, err := r.q(tx).Query(ctx, q, orderID, string(enum.StockMovementTypeOut))
	if err != nil {
		r.logger.Error("failed to list stock decrements", zap.Uint64("order_id", orderID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var movements []models.StockMovement
	for rows.Next() {
		var mv models.StockMovement
		var mt, refType string
		if err = rows.Scan(&mv.ID, &mv.ProductID, &mv.Quantity, &mt, &refType, &mv.ReferenceID, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.Type = enum.StockMovementType(mt)
		mv.ReferenceType = enum.StockMovementReferenceType(refType)
		movements = append(movements, mv)
	}

	return movements, rows.Err()
}

func (r *repository) DecrementStock(ctx context.Context, tx pgx.Tx, productID string, qty uint64, refType enum.StockMovementReferenceType, refID uint64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		productID, qty)
	if err != nil {
		r.logger.Error("failed to decrement stock", zap.String("product_id", productID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, models.ErrInsufficientStock)
	}

	return r.recordMovement(ctx, tx, productID, -int64(qty), enum.StockMovementTypeOut, refType, refID)
}

func (r *repository) RestoreStock(ctx context.Context, tx pgx.Tx, productID string, qty uint64, refID uint64) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		r.logger.Error("failed to restore stock", zap.String("product_id", productID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
	}

	return r.recordMovement(ctx, tx, productID, int64(qty), enum.StockMovementTypeIn, enum.StockMovementReferenceTypeCancel, refID)
}

func (r *repository) recordMovement(ctx context.Context, tx pgx.Tx, productID string, qty int64, mt enum.StockMovementType, refType enum.StockMovementReferenceType, refID uint64) error {
	_, err := tx.Exec(ctx, `
INSERT INTO stock_movements (product_id, quantity, type, reference_type, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, now())
`, productID, qty, string(mt), string(refType), refID)
	if err != nil {
		r.logger.Error("failed to record stock movement", zap.String("product_id", productID), zap.Error(err))
	}
	return err
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o        models.Order
		status   string
		currency string
	)
	if err := row.Scan(&o.ID, &o.Reference, &o.UserID, &status, &currency, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = enum.OrderStatus(status)
	o.Currency = stripe.Currency(currency)
	return &o, nil
}
